//go:build !rp2040

// cmd/negisim/topology.go
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/negimeister/negicon-v3-fw/types"
)

// moduleSpec pre-plugs a module at startup.
type moduleSpec struct {
	Slot     uint8  `yaml:"slot"`
	Type     string `yaml:"type"`
	Channels uint8  `yaml:"channels"`
	Initial  uint16 `yaml:"initial"`
}

// nodeSpec describes one simulated chain node.
type nodeSpec struct {
	ID    uint8 `yaml:"id"`
	Root  bool  `yaml:"root"`
	Slots int   `yaml:"slots"`
	Links int   `yaml:"links"`

	// Parent and Attach place the node below another node's attach point.
	Parent *uint8 `yaml:"parent"`
	Attach int    `yaml:"attach"`

	TickMS        int `yaml:"tick_ms"`
	ScanMS        int `yaml:"scan_ms"`
	DebounceScans int `yaml:"debounce_scans"`

	Modules []moduleSpec `yaml:"modules"`
}

type topology struct {
	Nodes []nodeSpec `yaml:"nodes"`
}

func loadTopology(path string) (topology, error) {
	var t topology
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, err
	}
	return t, t.validate()
}

func (t topology) validate() error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("topology has no nodes")
	}
	byID := map[uint8]nodeSpec{}
	roots := 0
	for _, n := range t.Nodes {
		if _, dup := byID[n.ID]; dup {
			return fmt.Errorf("duplicate node id %d", n.ID)
		}
		byID[n.ID] = n
		if n.Parent == nil {
			roots++
		}
		if n.Slots <= 0 || n.Slots > types.MaxSlots {
			return fmt.Errorf("node %d: slots must be 1..%d", n.ID, types.MaxSlots)
		}
	}
	if roots != 1 {
		return fmt.Errorf("topology needs exactly one parentless node, got %d", roots)
	}
	for _, n := range t.Nodes {
		if n.Parent == nil {
			continue
		}
		p, ok := byID[*n.Parent]
		if !ok {
			return fmt.Errorf("node %d: unknown parent %d", n.ID, *n.Parent)
		}
		if n.Attach < 0 || n.Attach >= p.Links {
			return fmt.Errorf("node %d: attach point %d out of range for parent %d", n.ID, n.Attach, *n.Parent)
		}
	}
	return nil
}

var moduleTypes = map[string]types.ModuleType{
	"button":  types.ModuleButton,
	"encoder": types.ModuleEncoder,
	"fader":   types.ModuleFader,
}

func (m moduleSpec) descriptor() (types.Descriptor, error) {
	mt, ok := moduleTypes[m.Type]
	if !ok {
		return types.Descriptor{}, fmt.Errorf("unknown module type %q", m.Type)
	}
	ch := m.Channels
	if ch == 0 {
		ch = 1
	}
	return types.Descriptor{Type: mt, Channels: ch}, nil
}
