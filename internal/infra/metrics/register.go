package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors accumulate here from the per-concern init() funcs in this
// package (licenses.go, db.go) and are installed in one shot when the
// process wires its HTTP surface.
var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister installs every pending collector in the default registry.
// Only the first call does anything, so tests and main can both call it.
func MustRegister() {
	registerOnce.Do(func() {
		if len(pending) > 0 {
			prometheus.MustRegister(pending...)
		}
	})
}
