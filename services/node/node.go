// services/node/node.go
package node

import (
	"context"
	"encoding/json"
	"time"

	"github.com/negimeister/negicon-v3-fw/bus"
	"github.com/negimeister/negicon-v3-fw/errcode"
	"github.com/negimeister/negicon-v3-fw/services/chain"
	"github.com/negimeister/negicon-v3-fw/services/input"
	"github.com/negimeister/negicon-v3-fw/services/report"
	"github.com/negimeister/negicon-v3-fw/types"
	"github.com/negimeister/negicon-v3-fw/wire"
	"github.com/negimeister/negicon-v3-fw/x/timex"
)

// Deps are the hardware endpoints injected by the platform layer.
type Deps struct {
	SlotBus  types.SlotBus  // required
	LinkPort types.LinkPort // required (may expose zero links)
	Uplink   types.Uplink   // nil on boards without an upstream connector
	Host     types.HostTransport // nil on boards without USB
}

// Run starts the node service and blocks until ctx is cancelled. It waits
// for a NodeConfig on config/negicon, then drives the sampling and scan
// ticks. Everything below runs on this single goroutine; slots, channels
// and the frame buffers need no locking.
func Run(ctx context.Context, conn *bus.Connection, deps Deps) {
	s := &service{conn: conn, deps: deps}
	s.loop(ctx)
}

type service struct {
	conn *bus.Connection
	deps Deps
	cfg  types.NodeConfig

	engine  *input.Engine
	links   *chain.Manager
	emitter *report.Emitter

	// Buffers reused every tick; no allocation in steady state.
	local  []types.Entry
	merged []types.Entry
	frame  []byte

	seq        uint8
	wasRoot    bool
	tickBudget time.Duration
	overruns   uint32
	lastDiag   types.Diag
}

func (s *service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.T("config", "negicon"))
	ctrlSub := s.conn.Subscribe(bus.T("negicon", "slot", "+", "channel", "+", "control", "+"))
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle", "awaiting_config")

	// Tickers are created once configured; until then they must not fire.
	sample := time.NewTicker(time.Hour)
	scan := time.NewTicker(time.Hour)
	sample.Stop()
	scan.Stop()
	defer sample.Stop()
	defer scan.Stop()

	var outReports <-chan []byte
	if s.deps.Host != nil {
		outReports = s.deps.Host.OutputReports()
	}

	ready := false
	for {
		select {
		case <-ctx.Done():
			s.publishState("stopped", "context_cancelled")
			return

		case msg := <-cfgSub.Channel():
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed")
				continue
			}
			s.applyConfig(cfg)
			sample.Reset(timex.MS(s.cfg.TickMS))
			scan.Reset(timex.MS(s.cfg.ScanMS))
			if !ready {
				ready = true
				s.publishState("ready", "configured")
			}

		case msg := <-ctrlSub.Channel():
			if !ready {
				s.replyErr(msg, errcode.Busy)
				continue
			}
			s.handleControl(msg)

		case <-sample.C:
			if ready {
				s.sampleTick()
			}

		case <-scan.C:
			if ready {
				s.scanTick()
			}

		case rep := <-outReports:
			if ready {
				s.handleOutputReport(rep)
			}
		}
	}
}

func (s *service) applyConfig(cfg types.NodeConfig) {
	s.cfg = cfg.WithDefaults()
	if s.engine == nil {
		s.engine = input.New(s.deps.SlotBus, s.cfg)
		s.links = chain.NewManager(s.deps.LinkPort, s.cfg)
		if s.deps.Host != nil {
			s.emitter = report.NewEmitter(s.deps.Host, s.cfg.NodeID)
		}
		s.local = make([]types.Entry, 0, wire.MaxFrameEntries)
		s.merged = make([]types.Entry, 0, wire.MaxFrameEntries)
		s.frame = make([]byte, 0, wire.MaxFrameSize)
	}
	// Later configs adjust timing only; the slot table is hardware.
	s.tickBudget = timex.MS(s.cfg.TickMS) * 3 / 4
}

// -----------------------------------------------------------------------------
// Sampling tick
// -----------------------------------------------------------------------------

func (s *service) sampleTick() {
	start := time.Now()

	// Inbox first: downstream frames received after last tick's merge
	// deadline become visible now, never retroactively.
	s.links.Drain()

	s.engine.Sample()
	if s.engine.TopologyChanged() {
		s.links.NoteLocalTopologyChange()
	}

	s.local = s.engine.Snapshot(s.local[:0])
	s.merged = s.links.Tick(s.local, s.merged[:0])
	topoChanged := s.links.TopologyChanged()

	root := s.isRoot()
	if root {
		if s.emitter != nil {
			// Becoming root mid-flight (uplink lost) starts from an
			// empty address book; rebuild as if the topology changed.
			if topoChanged || !s.wasRoot {
				s.emitter.Rebuild(s.merged)
			}
			s.emitter.Emit(s.merged)
		}
	} else {
		var err error
		s.frame, err = s.links.Encode(s.frame, s.seq, s.merged)
		s.seq++
		if err == nil {
			// A busy uplink drops this tick's frame: bounded
			// staleness, never queueing.
			s.deps.Uplink.Forward(s.frame)
		}
	}

	s.wasRoot = root

	if topoChanged {
		s.publishTopology()
	}
	s.drainChanges()

	// Sampling must fit its share of the tick so chain forwarding is
	// never starved. Overrun is a latency fault: count it, keep going.
	if time.Since(start) > s.tickBudget {
		s.overruns++
	}
}

func (s *service) isRoot() bool {
	if s.cfg.Root {
		return true
	}
	up := s.deps.Uplink
	return up == nil || !up.Connected()
}

// -----------------------------------------------------------------------------
// Scan tick
// -----------------------------------------------------------------------------

func (s *service) scanTick() {
	s.engine.Scan()
	if s.engine.TopologyChanged() {
		s.links.NoteLocalTopologyChange()
	}
	s.drainChanges()
	s.publishDiag()
}

func (s *service) drainChanges() {
	for _, ch := range s.engine.Changes() {
		st := types.SlotStatus{State: ch.State.String(), TSms: timex.NowMs()}
		if ch.State == input.StateActive {
			st.Type = uint8(ch.Desc.Type)
			st.Channels = ch.Desc.Channels
		}
		s.pubRet(bus.T("negicon", "slot", int(ch.Slot), "state"), st)
	}
}

// -----------------------------------------------------------------------------
// Control and host output
// -----------------------------------------------------------------------------

func (s *service) handleControl(msg *bus.Message) {
	// negicon/slot/<slot:int>/channel/<ch:int>/control/<verb>
	if msg.Topic.Len() < 7 {
		s.replyErr(msg, errcode.InvalidTopic)
		return
	}
	slot, ok1 := asInt(msg.Topic.At(2))
	channel, ok2 := asInt(msg.Topic.At(4))
	verb, _ := msg.Topic.At(6).(string)
	if !ok1 || !ok2 {
		s.replyErr(msg, errcode.InvalidTopic)
		return
	}

	if slot < 0 || slot > 0xFF || channel < 0 || channel > 0xFF {
		s.replyErr(msg, errcode.InvalidTopic)
		return
	}

	switch verb {
	case "zero":
		if err := s.engine.Zero(uint8(slot), uint8(channel)); err != nil {
			s.replyErr(msg, errcode.Of(err))
			return
		}
		s.replyOK(msg)
	case "read":
		if slot < 0 || slot >= int(s.engine.Slots()) {
			s.replyErr(msg, errcode.UnknownSlot)
			return
		}
		sl := s.engine.Slot(uint8(slot))
		if sl.State() != input.StateActive {
			s.replyErr(msg, errcode.SlotNotActive)
			return
		}
		ch := sl.Module().Channel(uint8(channel))
		if ch == nil {
			s.replyErr(msg, errcode.UnknownChannel)
			return
		}
		s.conn.Reply(msg, map[string]any{"ok": true, "value": ch.Value()}, false)
	default:
		s.replyErr(msg, errcode.Unsupported)
	}
}

func (s *service) handleOutputReport(rep []byte) {
	out, ok := report.ParseOutput(rep)
	if !ok {
		return
	}
	switch {
	case out.Boot:
		// The platform layer owns the actual reset; it subscribes here.
		s.conn.Publish(s.conn.NewMessage(bus.T("negicon", "boot"), nil, false))
	case out.Zero:
		if s.emitter == nil {
			return
		}
		addr, ok := s.emitter.Resolve(out.ID)
		if !ok || !addr.Local() {
			// Re-zeroing remote channels rides the per-node bus, not
			// the host path.
			return
		}
		_ = s.engine.Zero(addr.Slot, addr.Channel)
	}
}

// -----------------------------------------------------------------------------
// Publishing
// -----------------------------------------------------------------------------

func (s *service) publishTopology() {
	info := types.TopologyInfo{
		Epoch: uint32(s.links.Epoch()),
		TSms:  timex.NowMs(),
	}
	info.Addresses = make([]types.Address, 0, len(s.merged))
	for _, e := range s.merged {
		info.Addresses = append(info.Addresses, e.Addr)
	}
	s.pubRet(bus.T("negicon", "topology"), info)
}

func (s *service) publishDiag() {
	d := types.Diag{
		SampleOverruns: s.overruns,
		CRCErrors:      s.links.CRCErrors,
		LinkLosses:     s.links.LinkLosses,
		IdentifyFails:  s.engine.IdentifyFails,
		Truncations:    s.links.Truncations,
	}
	if s.emitter != nil {
		d.DroppedReports = s.emitter.DroppedReports
	}
	if d == s.lastDiag {
		return
	}
	s.lastDiag = d
	d.TSms = timex.NowMs()
	s.pubRet(bus.T("negicon", "diag"), d)
}

func (s *service) publishState(level, status string) {
	s.pubRet(bus.T("negicon", "state"), types.NodeState{
		Level:  level,
		Status: status,
		TSms:   timex.NowMs(),
	})
}

func (s *service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}

func (s *service) replyOK(msg *bus.Message) {
	s.conn.Reply(msg, map[string]any{"ok": true}, false)
}

func (s *service) replyErr(msg *bus.Message, c errcode.Code) {
	s.conn.Reply(msg, types.ErrorReply{OK: false, Error: string(c)}, false)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func decodeConfig(p any) (types.NodeConfig, error) {
	switch v := p.(type) {
	case types.NodeConfig:
		return v, nil
	case []byte:
		var cfg types.NodeConfig
		err := json.Unmarshal(v, &cfg)
		return cfg, err
	case string:
		var cfg types.NodeConfig
		err := json.Unmarshal([]byte(v), &cfg)
		return cfg, err
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return types.NodeConfig{}, err
		}
		var cfg types.NodeConfig
		err = json.Unmarshal(b, &cfg)
		return cfg, err
	}
}

func asInt(t any) (int, bool) {
	switch v := t.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
