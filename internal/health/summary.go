package health

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Totals gathers every counter and gauge under the sesh namespace and sums
// each family across its label values. Keys drop the namespace prefix.
func Totals(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, "sesh_") {
			continue
		}
		sum, ok := 0.0, false
		for _, m := range mf.GetMetric() {
			v, counted := value(mf.GetType(), m)
			if counted {
				sum += v
				ok = true
			}
		}
		if ok {
			out[strings.TrimPrefix(name, "sesh_")] = sum
		}
	}
	return out, nil
}

func value(t dto.MetricType, m *dto.Metric) (float64, bool) {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue(), true
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue(), true
	case dto.MetricType_HISTOGRAM:
		return float64(m.GetHistogram().GetSampleCount()), true
	}
	return 0, false
}
