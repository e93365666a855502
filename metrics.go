package diva

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/n3slami/diva-go/internal/metrics"
)

// EnableMetrics registers this filter's Prometheus instruments (interval
// splits/merges and population gauges) with reg under the given subsystem
// name. The population gauges are set once here from Stats; split and merge
// counts are reported on every subsequent Insert/Delete.
func (f *Filter) EnableMetrics(reg prometheus.Registerer, subsystem string) error {
	c, err := metrics.NewCollector(reg, "diva", subsystem)
	if err != nil {
		return err
	}
	f.e.SetMetrics(c)
	st := f.Stats()
	c.SetPopulation(st.Boundaries, st.Elements)
	return nil
}
