// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command usdn-node runs a single embedded SDN node: its flow table,
// packet buffer, and the uSDN engine that handshakes with a
// controller and applies whatever flow rules it pushes down.
//
// Usage:
//
//	go run ./cmd/usdn-node -listen :9190 -controller 127.0.0.1:9191 -config node.yaml
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbaddeley/usdn/internal/config"
	"github.com/mbaddeley/usdn/internal/flowtable"
	"github.com/mbaddeley/usdn/internal/logging"
	"github.com/mbaddeley/usdn/internal/metrics"
	"github.com/mbaddeley/usdn/internal/packetbuf"
	"github.com/mbaddeley/usdn/internal/usdn"
)

func main() {
	listen := flag.String("listen", ":9190", "address to bind this node's uSDN UDP socket")
	controllerAddr := flag.String("controller", "127.0.0.1:9191", "controller's uSDN UDP address")
	configPath := flag.String("config", "", "optional YAML file overriding the default config.Record")
	flowtableCap := flag.Int("flowtable-cap", 16, "flow table capacity")
	whitelistCap := flag.Int("whitelist-cap", 8, "whitelist capacity")
	bufCap := flag.Int("packetbuf-cap", 8, "packet buffer capacity")
	metricsListen := flag.String("metrics-listen", ":9193", "address to serve /metrics on")
	flag.Parse()

	conf := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		conf = loaded
	}

	log := logging.Default("usdn-node")

	transport, err := usdn.ListenUDP(*listen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listen: %v\n", err)
		os.Exit(1)
	}
	defer transport.Close()

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	table := flowtable.NewTable(*whitelistCap, *flowtableCap)
	table.RegisterActionHandler(defaultActionHandler)
	table.SetMetrics(reg)
	pbuf := packetbuf.New(*bufCap)
	pbuf.SetMetrics(reg)

	engine := usdn.New(transport, table, pbuf, conf, log)
	engine.Controller.Addr = *controllerAddr

	engine.ControllerJoin(usdn.TimerStart)
	go serveMetrics(*metricsListen, log)
	log.Infof("usdn-node listening on %s, controller at %s", *listen, *controllerAddr)

	runReceiveLoop(engine, transport, log)
}

func serveMetrics(addr string, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Infof("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errf("metrics server: %v", err)
	}
}

// defaultActionHandler applies an installed flow-table action to a
// matched packet. Only the verdict-producing actions are meaningful
// outside a full network stack; SRH/forward/modify actions are left
// for the surrounding IP stack to carry out once a route is known.
func defaultActionHandler(action *flowtable.ActionRule, buf []byte) (flowtable.Verdict, error) {
	switch action.Kind {
	case flowtable.ActionAccept:
		return flowtable.VerdictAccept, nil
	case flowtable.ActionDrop:
		return flowtable.VerdictDrop, nil
	default:
		return flowtable.VerdictContinue, nil
	}
}

func runReceiveLoop(engine *usdn.Engine, transport *usdn.UDPTransport, log *logging.Logger) {
	buf := make([]byte, 512)
	for {
		n, _, err := transport.Receive(buf)
		if err != nil {
			log.Errf("receive: %v", err)
			return
		}
		dispatchFrame(engine, buf[:n], log)
	}
}

func dispatchFrame(engine *usdn.Engine, frame []byte, log *logging.Logger) {
	hdr, err := usdn.DecodeHeader(frame)
	if err != nil {
		log.Errf("decode header: %v", err)
		return
	}
	payload := frame[usdn.HeaderLen:]
	switch hdr.Type {
	case usdn.MsgCFG:
		if err := engine.HandleCFG(payload); err != nil {
			log.Errf("handle cfg: %v", err)
		}
	case usdn.MsgFTS:
		if err := engine.HandleFTS(payload, true, engine.RetryQuery); err != nil {
			log.Errf("handle fts: %v", err)
		}
	default:
		log.Warnf("node: unhandled msg type %s", hdr.Type)
	}
}
