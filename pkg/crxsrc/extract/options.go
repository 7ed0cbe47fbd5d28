package extract

import (
	"runtime"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/metrics"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/normalize"
)

// Progress is a snapshot of sweep-mode progress.
type Progress struct {
	Done    int64
	Total   int64
	Current string
}

// Options configures an Extractor.
type Options struct {
	// Workers bounds concurrent entry tasks. Values below 1 use NumCPU.
	Workers int

	// Normalizers reformats written entries. Nil disables normalization.
	Normalizers *normalize.Registry

	// Metrics records counters. Nil disables metrics.
	Metrics *metrics.Recorder

	// OnProgress is called after each finished task. It must be safe to
	// call from multiple goroutines.
	OnProgress func(Progress)
}

// DefaultOptions returns options with the default normalizers.
func DefaultOptions() Options {
	return Options{
		Workers:     runtime.NumCPU(),
		Normalizers: normalize.Default(),
	}
}

func (o *Options) validate() {
	if o.Workers < 1 {
		o.Workers = runtime.NumCPU()
	}
}
