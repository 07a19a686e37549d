package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EligibilityDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_decisions_total",
			Help: "Total number of eligibility verdicts by reason code.",
		},
		[]string{"scope", "reason"},
	)

	BlockChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "block_checks_total",
			Help: "Total number of block relation checks by result.",
		},
		[]string{"result"},
	)

	ModerationActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_actions_total",
			Help: "Total number of moderation actions recorded.",
		},
		[]string{"track", "action", "result"},
	)

	ResubmissionChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resubmission_checks_total",
			Help: "Total number of resubmission eligibility checks.",
		},
		[]string{"track", "result"},
	)
)

// MustRegister registers the collectors on the default registry with a constant
// service label.
func MustRegister(serviceName string) {
	registerer := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, prometheus.DefaultRegisterer)
	registerer.MustRegister(
		EligibilityDecisionsTotal,
		BlockChecksTotal,
		ModerationActionsTotal,
		ResubmissionChecksTotal,
	)
}
