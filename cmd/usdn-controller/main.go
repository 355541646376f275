// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command usdn-controller runs the embedded Atom-style SDN controller:
// it tracks node heartbeats and links in a network graph, answers join
// requests with configuration, resolves routing queries into source
// routes, and exposes its dispatcher metrics over Prometheus.
//
// Usage:
//
//	go run ./cmd/usdn-controller -listen :9191 -metrics-listen :9192
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbaddeley/usdn/internal/apps"
	"github.com/mbaddeley/usdn/internal/config"
	"github.com/mbaddeley/usdn/internal/controller"
	"github.com/mbaddeley/usdn/internal/logging"
	"github.com/mbaddeley/usdn/internal/metrics"
	"github.com/mbaddeley/usdn/internal/netmodel"
	"github.com/mbaddeley/usdn/internal/usdn"
)

// nodeAddrTable is the node-id-to-UDP-address map shared between the
// receive loop (writer, on every inbound packet) and the connector's
// Out path (reader, resolving where to send a response) — guarded
// since both run on their own goroutines.
type nodeAddrTable struct {
	mu   sync.RWMutex
	addr map[netmodel.NodeID]string
}

func newNodeAddrTable() *nodeAddrTable {
	return &nodeAddrTable{addr: make(map[netmodel.NodeID]string)}
}

func (n *nodeAddrTable) set(id netmodel.NodeID, addr string) {
	n.mu.Lock()
	n.addr[id] = addr
	n.mu.Unlock()
}

func (n *nodeAddrTable) get(id netmodel.NodeID) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.addr[id]
}

func main() {
	listen := flag.String("listen", ":9191", "address to bind the controller's uSDN UDP socket")
	metricsListen := flag.String("metrics-listen", ":9192", "address to serve /metrics on")
	queueCap := flag.Int("queue-cap", 64, "ingress queue capacity")
	flag.Parse()

	log := logging.Default("usdn-controller")

	transport, err := usdn.ListenUDP(*listen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listen: %v\n", err)
		os.Exit(1)
	}
	defer transport.Close()

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	graph := netmodel.NewGraph(netmodel.MaxNodes, netmodel.MaxLinksPerNode)
	nodeAddrs := newNodeAddrTable()

	conn := usdn.NewConnector(transport, nodeAddrs.get, log)

	queue := controller.NewQueue(*queueCap)
	dispatcher := controller.NewDispatcher(queue, log)
	dispatcher.SetMetrics(reg)

	joinApp := apps.NewJoinApp(graph, config.DefaultConfig(), func() apps.Timer {
		return usdn.NewTimer()
	}, func(dest netmodel.NodeID, payload apps.CFGPayload) {
		err := conn.Out(&controller.Action{}, &controller.Response{
			Type: controller.ActionJoin,
			Dest: uint16(dest),
			Data: payload,
		})
		if err != nil {
			log.Errf("join resend to %d: %v", dest, err)
		}
	}, log)
	routingApp := apps.NewShortestPathApp(graph, log)

	if err := dispatcher.Register(joinApp); err != nil {
		fmt.Fprintf(os.Stderr, "register join app: %v\n", err)
		os.Exit(1)
	}
	if err := dispatcher.Register(routingApp); err != nil {
		fmt.Fprintf(os.Stderr, "register routing app: %v\n", err)
		os.Exit(1)
	}
	dispatcher.RegisterNetUpdate(func(action *controller.Action) {
		data, ok := action.Data.(usdn.NetUpdateData)
		if !ok {
			return
		}
		if _, err := graph.Update(data.NodeID, nil, data.CfgID, data.Rank); err != nil {
			log.Errf("net update: %v", err)
			reg.ObservePoolFull("netmodel")
			return
		}
		for _, l := range data.Links {
			if _, err := graph.LinkUpdate(data.NodeID, netmodel.NodeID(l.NbrID), l.RSSI); err != nil {
				log.Errf("link update: %v", err)
				reg.ObservePoolFull("netmodel")
			}
		}
	})

	if err := conn.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "init connector: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go dispatcher.Run(ctx)
	go serveMetrics(*metricsListen, log)
	go receiveLoop(ctx, dispatcher, conn, transport, nodeAddrs, log)

	waitForSignal()
	log.Infof("usdn-controller shutting down")
	cancel()
	dispatcher.Wait()
}

func receiveLoop(ctx context.Context, dispatcher *controller.Dispatcher, conn *usdn.Connector, transport *usdn.UDPTransport, nodeAddrs *nodeAddrTable, log *logging.Logger) {
	buf := make([]byte, 512)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, from, err := transport.Receive(buf)
		if err != nil {
			log.Errf("receive: %v", err)
			return
		}
		id := usdn.NodeIDFromUDPAddr(from)
		nodeAddrs.set(id, from.String())

		tagged := usdn.TagSender(id, append([]byte(nil), buf[:n]...))
		if err := dispatcher.Post(conn, tagged, 0); err != nil {
			log.Errf("post: %v", err)
		}
	}
}

func serveMetrics(addr string, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Infof("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errf("metrics server: %v", err)
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
