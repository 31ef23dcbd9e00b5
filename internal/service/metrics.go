package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts authentication outcomes. A nil *Metrics records nothing.
type Metrics struct {
	logins      *prometheus.CounterVec
	resets      *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	sweptTokens prometheus.Counter
	roleChanges prometheus.Counter
}

// NewMetrics registers the access collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "access_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		resets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "access_password_resets_total",
			Help: "Password reset operations by stage and result",
		}, []string{"stage", "result"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "access_gate_rejections_total",
			Help: "Session tokens rejected by the access gate, by reason",
		}, []string{"reason"}),
		sweptTokens: f.NewCounter(prometheus.CounterOpts{
			Name: "access_reset_tokens_swept_total",
			Help: "Expired reset tokens cleared by the background sweeper",
		}),
		roleChanges: f.NewCounter(prometheus.CounterOpts{
			Name: "access_role_changes_total",
			Help: "Audited role changes",
		}),
	}
}

func (m *Metrics) login(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) reset(stage, result string) {
	if m != nil {
		m.resets.WithLabelValues(stage, result).Inc()
	}
}

func (m *Metrics) rejected(reason string) {
	if m != nil {
		m.rejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) swept(n int64) {
	if m != nil && n > 0 {
		m.sweptTokens.Add(float64(n))
	}
}

func (m *Metrics) roleChanged() {
	if m != nil {
		m.roleChanges.Inc()
	}
}
