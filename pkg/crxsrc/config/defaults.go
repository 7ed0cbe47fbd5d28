// Package config provides configuration management for crxsrc.
package config

import "time"

// Default configuration values.
const (
	// DefaultOutput is where unpack writes when no --output is given.
	DefaultOutput = "output"

	// DefaultSplitOutput is where split writes reconstructed modules.
	DefaultSplitOutput = "output"

	// DefaultPreset is the selector preset used by unpack.
	DefaultPreset = "sweep"

	// DefaultFormat is the report format used by unpack.
	DefaultFormat = "pretty"

	// DefaultWorkers of 0 sizes the pool from the host.
	DefaultWorkers = 0

	// DefaultRetentionDays is how long history entries are kept.
	DefaultRetentionDays = 30

	// DefaultDebounce is the watch folder quiet period.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultProdVersion is the browser version reported to the store.
	DefaultProdVersion = "91.0"

	// DefaultLogMaxSize is the default log rollover size.
	DefaultLogMaxSize = "5MB"
)

// DefaultWatchExtensions are the package extensions handled by watch.
var DefaultWatchExtensions = []string{".crx", ".zip"}

// DefaultComponentLevels are the per-component log levels.
var DefaultComponentLevels = map[string]string{
	"extract":   "info",
	"normalize": "info",
	"bundle":    "info",
	"watcher":   "info",
	"cache":     "warn",
	"tui":       "info",
}
