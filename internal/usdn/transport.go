// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package usdn

import (
	"net"

	"github.com/mbaddeley/usdn/internal/errs"
)

// UDPTransport sends uSDN messages over a single bound UDP socket. It
// satisfies Transport; a node or controller owns exactly one of these.
type UDPTransport struct {
	conn *net.UDPConn
}

// ListenUDP binds a UDP socket on addr (host:port, or ":port" to
// listen on all interfaces) for sending and receiving uSDN traffic.
func ListenUDP(addr string) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errs.Wrapf(err, errs.KindInternal, "usdn: resolve %s", addr)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errs.Wrapf(err, errs.KindInternal, "usdn: listen %s", addr)
	}
	return &UDPTransport{conn: conn}, nil
}

// Send writes payload to addr (host:port).
func (u *UDPTransport) Send(addr string, payload []byte) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return errs.Wrapf(err, errs.KindInternal, "usdn: resolve %s", addr)
	}
	_, err = u.conn.WriteToUDP(payload, raddr)
	if err != nil {
		return errs.Wrapf(err, errs.KindInternal, "usdn: send to %s", addr)
	}
	return nil
}

// Receive blocks for the next inbound datagram, returning its sender
// and payload.
func (u *UDPTransport) Receive(buf []byte) (n int, from *net.UDPAddr, err error) {
	n, from, err = u.conn.ReadFromUDP(buf)
	if err != nil {
		return 0, nil, errs.Wrap(err, errs.KindInternal, "usdn: receive")
	}
	return n, from, nil
}

// Close releases the underlying socket.
func (u *UDPTransport) Close() error {
	return u.conn.Close()
}
