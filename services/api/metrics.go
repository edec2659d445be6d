package api

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters exported on /metrics.
type Metrics struct {
	authRejections *prometheus.CounterVec
	logins         *prometheus.CounterVec
	submissions    prometheus.Counter
	sessionsPruned prometheus.Counter
}

// NewMetrics creates the rollcall collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		authRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_auth_rejections_total",
			Help: "Requests rejected by the auth gate, by reason.",
		}, []string{"reason"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_attendance_submissions_total",
			Help: "Attendance sheets stored.",
		}),
		sessionsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_sessions_pruned_total",
			Help: "Expired sessions deleted by the sweeper.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.authRejections, m.logins, m.submissions, m.sessionsPruned)
	}
	return m
}

// SessionsPruned records n expired sessions removed by a sweep.
func (m *Metrics) SessionsPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsPruned.Add(float64(n))
}

func (m *Metrics) rejected(reason string) {
	if m == nil {
		return
	}
	m.authRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) submitted() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}
