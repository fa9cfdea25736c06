// Package metrics exposes credential lifecycle events as Prometheus counters.
package metrics

import (
	"context"
	"net/http"

	auth "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credentials"

// Sink implements auth.ActivitySink
type Sink struct {
	events *prometheus.CounterVec
}

var _ auth.ActivitySink = (*Sink)(nil)

// NewSink registers the activity counter with reg.
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Total number of credential activity events",
		},
		[]string{"event", "reason"},
	)

	if err := reg.Register(events); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "register activity counter")
	}

	return &Sink{events: events}, nil
}

// Record implements auth.ActivitySink
func (s *Sink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.events.WithLabelValues(string(event.EventType), reason(event)).Inc()
	return nil
}

// Counter returns the counter for one label pair
func (s *Sink) Counter(eventType auth.ActivityEventType, reason string) prometheus.Counter {
	return s.events.WithLabelValues(string(eventType), reason)
}

// Handler serves the gatherer in the Prometheus text format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func reason(event auth.ActivityEvent) string {
	if event.Metadata == nil {
		return ""
	}
	if r, ok := event.Metadata["reason"].(string); ok {
		return r
	}
	return ""
}
