package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts reconciliation events. A nil *Metrics records nothing.
type Metrics struct {
	feedEvents        *prometheus.CounterVec
	feedDropped       *prometheus.CounterVec
	duplicateInserts  prometheus.Counter
	reactionResyncs   prometheus.Counter
	subscribeFailures prometheus.Counter
	pageLoads         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		feedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_feed_events_total",
			Help: "Change feed events applied to the active session, by type.",
		}, []string{"type"}),
		feedDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_feed_events_dropped_total",
			Help: "Change feed events dropped, by reason.",
		}, []string{"reason"}),
		duplicateInserts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_duplicate_inserts_total",
			Help: "Message inserts ignored because the id was already loaded.",
		}),
		reactionResyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_reaction_resyncs_total",
			Help: "Full reaction reloads for the loaded messages.",
		}),
		subscribeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huddle_feed_subscribe_failures_total",
			Help: "Change feed subscriptions that failed.",
		}),
		pageLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_page_loads_total",
			Help: "History page loads, by page (initial, older) and result.",
		}, []string{"page", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.feedEvents, m.feedDropped, m.duplicateInserts,
			m.reactionResyncs, m.subscribeFailures, m.pageLoads)
	}
	return m
}

func (m *Metrics) feedEvent(eventType string) {
	if m != nil {
		m.feedEvents.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) dropped(reason string) {
	if m != nil {
		m.feedDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) duplicateInsert() {
	if m != nil {
		m.duplicateInserts.Inc()
	}
}

func (m *Metrics) reactionResync() {
	if m != nil {
		m.reactionResyncs.Inc()
	}
}

func (m *Metrics) subscribeFailure() {
	if m != nil {
		m.subscribeFailures.Inc()
	}
}

func (m *Metrics) pageLoad(page string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.pageLoads.WithLabelValues(page, result).Inc()
}
