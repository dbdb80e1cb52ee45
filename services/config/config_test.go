// config/config_test.go
package config

import (
	"context"
	"testing"
	"time"

	"github.com/negimeister/negicon-v3-fw/bus"
)

func TestConfig_PublishEmbedded_RetainedPerKey(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(board string) ([]byte, bool) {
		if board != "negicon-root" {
			return nil, false
		}
		return []byte(`{
			"negicon": {"node_id": 1, "root": true, "slots": 9},
			"debug": true
		}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	svc := NewConfigService()

	ctx := context.WithValue(context.Background(), CtxBoardKey, "negicon-root")
	svc.Start(ctx, conn)

	sub := conn.Subscribe(bus.T(configPrefix, bus.WildAll))

	got := map[string]any{}
	deadline := time.Now().Add(600 * time.Millisecond)
	for len(got) < 2 && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if m.Topic.Len() < 2 {
				t.Fatalf("unexpected topic length: %#v", m.Topic)
			}
			key, ok := m.Topic.At(1).(string)
			if !ok {
				t.Fatalf("topic[1] type %T, want string", m.Topic.At(1))
			}
			if !m.Retained {
				t.Fatalf("config/%s not retained", key)
			}
			got[key] = m.Payload
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 retained messages, got %d (%v)", len(got), got)
	}

	neg, ok := got["negicon"].(map[string]any)
	if !ok {
		t.Fatalf("negicon payload type %T, want map", got["negicon"])
	}
	if id, ok := neg["node_id"].(float64); !ok || id != 1 {
		t.Fatalf("node_id = %#v, want 1", neg["node_id"])
	}
	if root, ok := neg["root"].(bool); !ok || !root {
		t.Fatalf("root = %#v, want true", neg["root"])
	}
	if dbg, ok := got["debug"].(bool); !ok || !dbg {
		t.Fatalf("debug = %#v, want true", got["debug"])
	}
}

func TestConfig_PublishConfig_MissingBoard(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test-missing-board")
	svc := NewConfigService()

	if err := svc.publishConfig(context.Background(), conn); err == nil {
		t.Fatal("expected error for missing board name, got nil")
	}
}

func TestConfig_PublishConfig_NoConfigFound(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(board string) ([]byte, bool) { return nil, false }
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(4)
	conn := b.NewConnection("test-no-config")
	svc := NewConfigService()

	ctx := context.WithValue(context.Background(), CtxBoardKey, "unknown-board")
	if err := svc.publishConfig(ctx, conn); err == nil {
		t.Fatal("expected error for missing embedded config, got nil")
	}
}

func TestConfig_EmbeddedBoardsParse(t *testing.T) {
	for board := range embeddedConfigs {
		b := bus.NewBus(8)
		conn := b.NewConnection("test-" + board)
		svc := NewConfigService()
		ctx := context.WithValue(context.Background(), CtxBoardKey, board)
		if err := svc.publishConfig(ctx, conn); err != nil {
			t.Fatalf("board %s: %v", board, err)
		}
	}
}
