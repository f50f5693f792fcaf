// Package telemetry exposes chronometer activity as Prometheus metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantum-chronometer/qchrono/sim"
	"github.com/quantum-chronometer/qchrono/sim/peer"
)

const namespace = "qchrono"

// Metrics holds the collectors of one process on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	Aggregate    prometheus.Gauge
	External     prometheus.Gauge
	Accumulated  prometheus.Gauge
	Entities     prometheus.Gauge
	Entangled    prometheus.Gauge
	FeedClients  prometheus.Gauge
	Commands     *prometheus.CounterVec
}

// New creates and registers the tick and feed collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total",
			Help: "Engine ticks executed.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tick_duration_seconds",
			Help:    "Wall time spent in one engine tick.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		Aggregate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "aggregate_distortion",
			Help: "Aggregate time distortion after the last tick.",
		}),
		External: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "external_distortion",
			Help: "Last distortion value received from a peer.",
		}),
		Accumulated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "accumulated_observed_seconds",
			Help: "Observed simulation time.",
		}),
		Entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "entities",
			Help: "Entities on the board.",
		}),
		Entangled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "entangled_pairs",
			Help: "Live entangled pairs.",
		}),
		FeedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "feed_clients",
			Help: "Connected websocket feed clients.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_total",
			Help: "Board commands received, by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	m.Registry.MustRegister(
		m.Ticks, m.TickDuration, m.Aggregate, m.External, m.Accumulated,
		m.Entities, m.Entangled, m.FeedClients, m.Commands,
	)
	return m
}

// ObserveTick records one tick and the board it produced.
func (m *Metrics) ObserveTick(elapsed time.Duration, snap sim.Snapshot) {
	m.Ticks.Inc()
	m.TickDuration.Observe(elapsed.Seconds())
	m.Aggregate.Set(snap.AggregateDistortion)
	m.External.Set(snap.ExternalDistortion)
	m.Accumulated.Set(snap.AccumulatedTime)
	m.Entities.Set(float64(len(snap.Entities)))
	m.Entangled.Set(float64(len(snap.Entangled)))
}

// ObserveCommand counts a board command.
func (m *Metrics) ObserveCommand(kind string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "rejected"
	}
	m.Commands.WithLabelValues(kind, outcome).Inc()
}

// RegisterPeer exposes the peer service counters. stats is read at scrape
// time.
func (m *Metrics) RegisterPeer(stats func() peer.Stats) {
	counter := func(name, help string, pick func(peer.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "peer", Name: name, Help: help,
		}, func() float64 { return float64(pick(stats())) })
	}
	m.Registry.MustRegister(
		counter("sent_total", "Distortion datagrams sent.", func(s peer.Stats) uint64 { return s.Sent }),
		counter("send_errors_total", "Datagram send failures.", func(s peer.Stats) uint64 { return s.SendErrors }),
		counter("dropped_total", "Broadcasts dropped before sending.", func(s peer.Stats) uint64 { return s.Dropped }),
		counter("received_total", "Peer distortion values accepted.", func(s peer.Stats) uint64 { return s.Received }),
		counter("discarded_total", "Malformed or unrecognized datagrams.", func(s peer.Stats) uint64 { return s.Discarded }),
		counter("self_total", "Own broadcasts received back.", func(s peer.Stats) uint64 { return s.Self }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
