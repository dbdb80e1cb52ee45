//go:build !rp2040

// cmd/negisim/console.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"github.com/negimeister/negicon-v3-fw/bus"
	"github.com/negimeister/negicon-v3-fw/services/report"
	"github.com/negimeister/negicon-v3-fw/types"
)

const consoleHelp = `commands:
  plug <node> <slot> <type> [channels] [initial]   insert a module
  unplug <node> <slot>                             remove a module
  set <node> <slot> <chan> <raw>                   set a raw reading
  move <node> <slot> <chan> <delta>                adjust a raw reading
  zero <node> <slot> <chan>                        re-zero via the node bus
  hidzero <id>                                     re-zero via host output report
  pull <node>                                      disconnect the uplink cable
  attach <node>                                    reconnect the uplink cable
  busy <node> <0|1>                                force the host endpoint busy
  help                                             this text
  quit                                             exit`

func runConsole(ctx context.Context, nodes map[uint8]*simNode, log *zap.SugaredLogger) {
	fmt.Println(consoleHelp)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		args, err := shlex.Split(sc.Text())
		if err != nil {
			log.Warnf("parse: %v", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		if err := dispatch(ctx, nodes, args, log); err != nil {
			log.Warnf("%s: %v", args[0], err)
		}
	}
}

func dispatch(ctx context.Context, nodes map[uint8]*simNode, args []string, log *zap.SugaredLogger) error {
	pickNode := func(arg string) (*simNode, error) {
		id, err := strconv.ParseUint(arg, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("bad node id %q", arg)
		}
		n, ok := nodes[uint8(id)]
		if !ok {
			return nil, fmt.Errorf("no node %d", id)
		}
		return n, nil
	}
	num := func(arg string, bits int) (uint64, error) {
		return strconv.ParseUint(arg, 10, bits)
	}

	switch args[0] {
	case "help":
		fmt.Println(consoleHelp)
		return nil

	case "plug":
		if len(args) < 4 {
			return fmt.Errorf("usage: plug <node> <slot> <type> [channels] [initial]")
		}
		n, err := pickNode(args[1])
		if err != nil {
			return err
		}
		slot, err := num(args[2], 8)
		if err != nil {
			return err
		}
		spec := moduleSpec{Slot: uint8(slot), Type: args[3], Channels: 1}
		if len(args) > 4 {
			ch, err := num(args[4], 8)
			if err != nil {
				return err
			}
			spec.Channels = uint8(ch)
		}
		if len(args) > 5 {
			init, err := num(args[5], 16)
			if err != nil {
				return err
			}
			spec.Initial = uint16(init)
		}
		desc, err := spec.descriptor()
		if err != nil {
			return err
		}
		n.slots.Plug(spec.Slot, desc, spec.Initial)
		log.Infof("node %d slot %d: %s plugged", n.spec.ID, spec.Slot, spec.Type)
		return nil

	case "unplug":
		if len(args) != 3 {
			return fmt.Errorf("usage: unplug <node> <slot>")
		}
		n, err := pickNode(args[1])
		if err != nil {
			return err
		}
		slot, err := num(args[2], 8)
		if err != nil {
			return err
		}
		n.slots.Unplug(uint8(slot))
		return nil

	case "set", "move":
		if len(args) != 5 {
			return fmt.Errorf("usage: %s <node> <slot> <chan> <value>", args[0])
		}
		n, err := pickNode(args[1])
		if err != nil {
			return err
		}
		slot, err := num(args[2], 8)
		if err != nil {
			return err
		}
		ch, err := num(args[3], 8)
		if err != nil {
			return err
		}
		if args[0] == "set" {
			raw, err := num(args[4], 16)
			if err != nil {
				return err
			}
			n.slots.SetRaw(uint8(slot), uint8(ch), uint16(raw))
		} else {
			delta, err := strconv.ParseInt(args[4], 10, 16)
			if err != nil {
				return err
			}
			n.slots.Move(uint8(slot), uint8(ch), int16(delta))
		}
		return nil

	case "zero":
		if len(args) != 4 {
			return fmt.Errorf("usage: zero <node> <slot> <chan>")
		}
		n, err := pickNode(args[1])
		if err != nil {
			return err
		}
		slot, err := num(args[2], 8)
		if err != nil {
			return err
		}
		ch, err := num(args[3], 8)
		if err != nil {
			return err
		}
		return requestZero(ctx, n, int(slot), int(ch))

	case "hidzero":
		if len(args) != 2 {
			return fmt.Errorf("usage: hidzero <id>")
		}
		id, err := num(args[1], 16)
		if err != nil {
			return err
		}
		root := rootNode(nodes)
		if root == nil || root.host == nil {
			return fmt.Errorf("no host-facing root node")
		}
		root.host.Inject([]byte{report.OutZero, uint8(id >> 8), uint8(id), 0, 0, 0, 0, 0})
		return nil

	case "pull", "attach":
		if len(args) != 2 {
			return fmt.Errorf("usage: %s <node>", args[0])
		}
		n, err := pickNode(args[1])
		if err != nil {
			return err
		}
		if n.uplink == nil {
			return fmt.Errorf("node %d has no uplink", n.spec.ID)
		}
		n.uplink.SetConnected(args[0] == "attach")
		return nil

	case "busy":
		if len(args) != 3 {
			return fmt.Errorf("usage: busy <node> <0|1>")
		}
		n, err := pickNode(args[1])
		if err != nil {
			return err
		}
		if n.host == nil {
			return fmt.Errorf("node %d has no host endpoint", n.spec.ID)
		}
		n.host.SetBusy(args[2] == "1")
		return nil

	default:
		return fmt.Errorf("unknown command (try help)")
	}
}

func rootNode(nodes map[uint8]*simNode) *simNode {
	for _, n := range nodes {
		if n.spec.Parent == nil {
			return n
		}
	}
	return nil
}

// requestZero sends the control verb on the node's own bus and waits for
// the reply, the same path an on-device management client would use.
func requestZero(ctx context.Context, n *simNode, slot, channel int) error {
	c := n.bus.NewConnection("negisim-ctl")
	defer c.Disconnect()

	replyTopic := bus.T("negisim", "reply", "zero")
	sub := c.Subscribe(replyTopic)
	msg := c.NewMessage(bus.T("negicon", "slot", slot, "channel", channel, "control", "zero"), nil, false)
	msg.ReplyTo = replyTopic
	c.Publish(msg)

	select {
	case rep := <-sub.Channel():
		if er, ok := rep.Payload.(types.ErrorReply); ok && !er.OK {
			return fmt.Errorf("%s", er.Error)
		}
		return nil
	case <-time.After(2 * time.Second):
		return fmt.Errorf("no reply")
	case <-ctx.Done():
		return ctx.Err()
	}
}
