package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "heartspeak"

// Metrics is the observability sink for the signaling core. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Connections       prometheus.Gauge
	Events            *prometheus.CounterVec
	HandlerErrors     *prometheus.CounterVec
	Relayed           *prometheus.CounterVec
	Dropped           prometheus.Counter
	CallTransitions   *prometheus.CounterVec
	Recognition       *prometheus.CounterVec
	RecognitionTime   prometheus.Histogram
	EmotionPersisted  prometheus.Counter
	PersistFailures   prometheus.Counter
	FramesRateLimited prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open client connections.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound client events by name.",
		}, []string{"event"}),
		HandlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_errors_total",
			Help:      "Errors returned to clients by event and kind.",
		}, []string{"event", "kind"}),
		Relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_total",
			Help:      "Signaling payloads forwarded between participants.",
		}, []string{"kind"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Outbound messages dropped because a connection buffer was full.",
		}),
		CallTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_transitions_total",
			Help:      "Call state transitions by target status.",
		}, []string{"status"}),
		Recognition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_requests_total",
			Help:      "Recognition service calls by outcome.",
		}, []string{"outcome"}),
		RecognitionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recognition_duration_seconds",
			Help:      "Recognition service latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		EmotionPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emotion_logs_persisted_total",
			Help:      "Emotion observations written to the store.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emotion_persist_failures_total",
			Help:      "Emotion observations that could not be written.",
		}),
		FramesRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rate_limited_total",
			Help:      "Frames rejected by the per-user throttle.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Connections, m.Events, m.HandlerErrors, m.Relayed, m.Dropped,
			m.CallTransitions, m.Recognition, m.RecognitionTime,
			m.EmotionPersisted, m.PersistFailures, m.FramesRateLimited,
		)
	}
	return m
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) Event(name string) {
	if m != nil {
		m.Events.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) HandlerError(event, kind string) {
	if m != nil {
		m.HandlerErrors.WithLabelValues(event, kind).Inc()
	}
}

func (m *Metrics) Relay(kind string) {
	if m != nil {
		m.Relayed.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Drop() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) Transition(status string) {
	if m != nil {
		m.CallTransitions.WithLabelValues(status).Inc()
	}
}

// RecognitionDone records one recognition round trip
func (m *Metrics) RecognitionDone(outcome string, seconds float64) {
	if m != nil {
		m.Recognition.WithLabelValues(outcome).Inc()
		m.RecognitionTime.Observe(seconds)
	}
}

func (m *Metrics) Persisted() {
	if m != nil {
		m.EmotionPersisted.Inc()
	}
}

func (m *Metrics) PersistFailed() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) FrameRateLimited() {
	if m != nil {
		m.FramesRateLimited.Inc()
	}
}
