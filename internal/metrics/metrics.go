// Package metrics exposes the engine's write-path events as Prometheus
// instruments, for the same operational events filterengine and infixstore
// already report through klog: interval splits and merges, and per-store
// grow/shrink resizes (spec.md §4.3.6, §4.3.7, §4.4.2, §4.4.4).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds one filter's instruments. A nil *Collector is valid
// everywhere its methods are called: every method is a no-op on a nil
// receiver, so instrumentation stays optional without scattering nil
// checks through the engine.
type Collector struct {
	splits       prometheus.Counter
	merges       prometheus.Counter
	storeGrows   prometheus.Counter
	storeShrinks prometheus.Counter
	boundaries   prometheus.Gauge
	elements     prometheus.Gauge
}

// NewCollector builds a Collector and registers its instruments with reg.
// namespace/subsystem follow the usual Prometheus naming convention (e.g.
// namespace "diva", subsystem "filter").
func NewCollector(reg prometheus.Registerer, namespace, subsystem string) (*Collector, error) {
	c := &Collector{
		splits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "interval_splits_total", Help: "Number of boundary-key interval splits performed by Insert.",
		}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "interval_merges_total", Help: "Number of boundary-key interval merges performed by Delete.",
		}),
		storeGrows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "store_grows_total", Help: "Number of infix store size-grade increases.",
		}),
		storeShrinks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "store_shrinks_total", Help: "Number of infix store size-grade decreases.",
		}),
		boundaries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "boundaries", Help: "Current number of boundary keys (intervals).",
		}),
		elements: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "elements", Help: "Current number of partial keys held across all stores.",
		}),
	}
	for _, coll := range []prometheus.Collector{c.splits, c.merges, c.storeGrows, c.storeShrinks, c.boundaries, c.elements} {
		if err := reg.Register(coll); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) Split() {
	if c != nil {
		c.splits.Inc()
	}
}

func (c *Collector) Merge() {
	if c != nil {
		c.merges.Inc()
	}
}

func (c *Collector) StoreGrow() {
	if c != nil {
		c.storeGrows.Inc()
	}
}

func (c *Collector) StoreShrink() {
	if c != nil {
		c.storeShrinks.Inc()
	}
}

// SetPopulation records the current boundary/element counts (e.g. after a
// bulk load or periodically from the caller's own scrape loop).
func (c *Collector) SetPopulation(boundaries, elements uint64) {
	if c == nil {
		return
	}
	c.boundaries.Set(float64(boundaries))
	c.elements.Set(float64(elements))
}
