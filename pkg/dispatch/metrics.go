package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	dispatchOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inboxd_dispatch_total",
		Help: "Dispatched sends by outcome status (ok, accepted).",
	}, []string{"status"})

	validationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inboxd_dispatch_validation_failures_total",
		Help: "Validation failures by kind.",
	}, []string{"kind"})

	strandDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "inboxd_strand_queue_depth",
		Help: "Tasks currently queued across all strands.",
	})

	autoRepliesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inboxd_autoreplies_sent_total",
		Help: "Out-of-office auto-replies dispatched.",
	})
)

func init() {
	prometheus.MustRegister(dispatchOutcomes, validationFailures, strandDepth, autoRepliesSent)
}
