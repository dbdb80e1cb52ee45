package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// One JSON document per board variant, selected at boot via CtxBoardKey.
// Keys are per-service; the node service consumes config/negicon.
// -----------------------------------------------------------------------------

const cfgRoot = `{
  "negicon": {
      "node_id": 1,
      "root": true,
      "slots": 9,
      "tick_ms": 5,
      "scan_ms": 50,
      "debounce_scans": 2,
      "link_stale_ticks": 3
  }
}`

const cfgLeaf = `{
  "negicon": {
      "node_id": 2,
      "slots": 9,
      "tick_ms": 5,
      "scan_ms": 50,
      "debounce_scans": 2,
      "link_stale_ticks": 3
  }
}`

var embeddedConfigs = map[string][]byte{
	"negicon-root": []byte(cfgRoot),
	"negicon-leaf": []byte(cfgLeaf),
}
