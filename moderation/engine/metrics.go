package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messageEvalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "guardian_message_eval_duration_sec",
	Help: "Total duration of message evaluation",
}, []string{"outcome"})

var messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_messages_processed",
	Help: "Number of messages evaluated",
}, []string{"outcome"})

var violationsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_violations_detected",
	Help: "Number of violations flagged by detectors",
}, []string{"kind"})

var sanctionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_sanctions_applied",
	Help: "Number of sanctions applied",
}, []string{"kind"})

var warningsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_warnings_issued",
	Help: "Number of warnings issued",
}, []string{"level"})

var readErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_read_errors",
	Help: "Number of store reads which failed and were treated as absent state",
}, []string{"op"})

var persistErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_persist_errors",
	Help: "Number of persistence writes which failed after retry",
}, []string{"op"})

var detectorPanicCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_detector_panics",
	Help: "Number of recovered detector panics",
}, []string{"detector"})

var sweepRunCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_sweep_runs",
	Help: "Number of background sweep passes, by store",
}, []string{"store", "status"})
