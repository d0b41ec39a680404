package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver exposes pipeline events as Prometheus counters.
// Tags beyond the component name are dropped to keep cardinality bounded.
type PrometheusObserver struct {
	events *prometheus.CounterVec
}

func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reunio",
		Name:      "pipeline_events_total",
		Help:      "Recording pipeline events by name and component.",
	}, []string{"event", "component"})
	if err := reg.Register(events); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			events = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	return &PrometheusObserver{events: events}, nil
}

func (o *PrometheusObserver) RecordEvent(ev MetricsEvent) {
	component := ""
	if ev.Tags != nil {
		component = ev.Tags["component"]
	}
	o.events.WithLabelValues(ev.Name, component).Inc()
}

var _ Observer = (*PrometheusObserver)(nil)
