//go:build !rp2040

// negisim runs a whole Negicon chain in one process: every node from the
// topology file boots the real node service on the sim backplane, and an
// interactive console plugs modules, moves channels and injects host output
// reports. HID reports leaving the root are logged as they would reach the
// host.
//
//	negisim -topology chain.yaml
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/negimeister/negicon-v3-fw/bus"
	"github.com/negimeister/negicon-v3-fw/platform/sim"
	"github.com/negimeister/negicon-v3-fw/services/node"
	"github.com/negimeister/negicon-v3-fw/types"
	"github.com/negimeister/negicon-v3-fw/wire"

	_ "github.com/negimeister/negicon-v3-fw/services/input/modules/button"
	_ "github.com/negimeister/negicon-v3-fw/services/input/modules/encoder"
	_ "github.com/negimeister/negicon-v3-fw/services/input/modules/fader"
)

type simNode struct {
	spec   nodeSpec
	bus    *bus.Bus
	slots  *sim.SlotBus
	port   *sim.LinkPort
	uplink *sim.Uplink
	host   *sim.Host
}

func main() {
	topoPath := flag.String("topology", "chain.yaml", "chain topology file")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	if !*debug {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.InfoLevel))
	}
	defer logger.Sync()
	log := logger.Sugar()

	topo, err := loadTopology(*topoPath)
	if err != nil {
		log.Fatalf("topology: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodes := buildChain(ctx, topo, log)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		cancel()
		os.Exit(0)
	}()

	runConsole(ctx, nodes, log)
}

// buildChain instantiates every node, wires the virtual cables and starts
// the node services.
func buildChain(ctx context.Context, topo topology, log *zap.SugaredLogger) map[uint8]*simNode {
	nodes := map[uint8]*simNode{}

	for _, spec := range topo.Nodes {
		n := &simNode{
			spec:  spec,
			bus:   bus.NewBus(16),
			slots: sim.NewSlotBus(),
			port:  sim.NewLinkPort(spec.Links),
		}
		if spec.Parent == nil {
			n.host = sim.NewHost()
		}
		nodes[spec.ID] = n
	}

	// Cables after all ports exist; a child may precede its parent in the
	// file.
	for _, n := range nodes {
		if n.spec.Parent == nil {
			continue
		}
		parent := nodes[*n.spec.Parent]
		n.uplink = parent.port.Attach(n.spec.Attach)
		log.Infof("node %d attached below node %d at point %d",
			n.spec.ID, parent.spec.ID, n.spec.Attach)
	}

	for _, n := range nodes {
		deps := node.Deps{
			SlotBus:  n.slots,
			LinkPort: n.port,
		}
		if n.uplink != nil {
			deps.Uplink = n.uplink
		}
		if n.host != nil {
			deps.Host = n.host
			go logReports(ctx, n.host, log)
		}
		go node.Run(ctx, n.bus.NewConnection("negicon"), deps)

		cfg := types.NodeConfig{
			NodeID:        n.spec.ID,
			Root:          n.spec.Root,
			Slots:         n.spec.Slots,
			TickMS:        n.spec.TickMS,
			ScanMS:        n.spec.ScanMS,
			DebounceScans: n.spec.DebounceScans,
		}
		c := n.bus.NewConnection("negisim")
		c.Publish(c.NewMessage(bus.T("config", "negicon"), cfg, true))
		c.Disconnect()

		for _, m := range n.spec.Modules {
			desc, err := m.descriptor()
			if err != nil {
				log.Fatalf("node %d slot %d: %v", n.spec.ID, m.Slot, err)
			}
			n.slots.Plug(m.Slot, desc, m.Initial)
			log.Infof("node %d slot %d: %s pre-plugged", n.spec.ID, m.Slot, m.Type)
		}
	}
	return nodes
}

// logReports prints every HID report the root hands to the virtual host.
func logReports(ctx context.Context, h *sim.Host, log *zap.SugaredLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-h.Reports():
			ev, err := wire.ParseEvent(r)
			if err != nil {
				log.Warnw("bad report cell", "err", err)
				continue
			}
			log.Infow("hid report",
				"id", ev.ID,
				"value", ev.Value,
				"controller", ev.Controller,
				"seq", ev.Seq,
			)
		}
	}
}
