// Package config publishes the board's embedded configuration onto the bus.
// Each top-level key of the board's JSON document becomes one retained
// message under config/<key>, so services subscribe to exactly the slice
// they consume and late subscribers still see it.
package config

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/negimeister/negicon-v3-fw/bus"
)

const (
	serviceName  = "config"
	configPrefix = "config"

	// CtxBoardKey is the context key naming the board whose embedded
	// config should be published.
	CtxBoardKey = "board"
)

// EmbeddedConfigLookup resolves a board name to its raw JSON config.
// Overridable for tests and for the simulator, which feeds generated
// configs instead of flash-embedded ones.
var EmbeddedConfigLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig parses the board's embedded JSON and publishes one retained
// message per top-level key.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	board, _ := ctx.Value(CtxBoardKey).(string)
	if board == "" {
		return errors.New("missing board name in context")
	}

	raw, ok := EmbeddedConfigLookup(board)
	if !ok || len(raw) == 0 {
		return errors.New("no embedded config for board: " + board)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}

	for k, v := range m {
		msg := conn.NewMessage(bus.T(configPrefix, k), v, true)
		conn.Publish(msg)
	}
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		_ = s.publishConfig(ctx, conn)
	}()
}
