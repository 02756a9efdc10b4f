// Package metrics exposes Prometheus collectors for the venue server.
package metrics

import (
	"net/http"

	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "venue").
	Namespace string

	// Registry receives the collectors. Default: a fresh registry with
	// process and Go runtime collectors.
	Registry *prometheus.Registry
}

type Option func(*Config)

func WithNamespace(ns string) Option {
	return func(c *Config) { c.Namespace = ns }
}

func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *Config) { c.Registry = reg }
}

// Metrics implements core.Observer. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	connections    prometheus.Gauge
	rooms          prometheus.Gauge
	framesTotal    *prometheus.CounterVec
	rejectedTotal  *prometheus.CounterVec
	deliveredTotal *prometheus.CounterVec
	droppedTotal   *prometheus.CounterVec
	speakers       *prometheus.GaugeVec
	pending        *prometheus.GaugeVec
	evictions      prometheus.Counter
	snapshots      *prometheus.CounterVec
}

var _ core.Observer = (*Metrics)(nil)

func New(opts ...Option) *Metrics {
	cfg := Config{Namespace: "venue"}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
		cfg.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		registry: cfg.Registry,
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "connections",
			Help:      "Number of open participant connections",
		}),
		rooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "rooms",
			Help:      "Number of live rooms",
		}),
		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "frames_total",
			Help:      "Inbound frames handled, by type",
		}, []string{"room", "type"}),
		rejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "frames_rejected_total",
			Help:      "Inbound frames answered with an error, by code",
		}, []string{"room", "code"}),
		deliveredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "frames_delivered_total",
			Help:      "Outbound frames queued to recipients",
		}, []string{"room"}),
		droppedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "frames_dropped_total",
			Help:      "Outbound frames dropped because a recipient was slow or gone",
		}, []string{"room"}),
		speakers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "speakers",
			Help:      "Active speakers per room",
		}, []string{"room"}),
		pending: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "speak_requests_pending",
			Help:      "Pending speak requests per room",
		}, []string{"room"}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "evictions_total",
			Help:      "Connections closed by the slow consumer policy",
		}),
		snapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "snapshots_total",
			Help:      "Room snapshot writes, by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) FrameHandled(room domain.RoomName, msgType string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(string(room), msgType).Inc()
}

func (m *Metrics) FrameRejected(room domain.RoomName, code string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(string(room), code).Inc()
}

func (m *Metrics) Published(room domain.RoomName, res core.PublishResult) {
	if m == nil {
		return
	}
	if res.SendTo > 0 {
		m.deliveredTotal.WithLabelValues(string(room)).Add(float64(res.SendTo))
	}
	if n := len(res.Dropped); n > 0 {
		m.droppedTotal.WithLabelValues(string(room)).Add(float64(n))
	}
}

func (m *Metrics) SpeakersChanged(room domain.RoomName, speakers, pending int) {
	if m == nil {
		return
	}
	m.speakers.WithLabelValues(string(room)).Set(float64(speakers))
	m.pending.WithLabelValues(string(room)).Set(float64(pending))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) RoomsActive(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

func (m *Metrics) Evicted() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

// RoomRemoved drops the per-room series of a stopped room.
func (m *Metrics) RoomRemoved(room domain.RoomName) {
	if m == nil {
		return
	}
	m.speakers.DeleteLabelValues(string(room))
	m.pending.DeleteLabelValues(string(room))
}

func (m *Metrics) SnapshotSaved(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.snapshots.WithLabelValues(result).Inc()
}
