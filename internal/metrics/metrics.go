package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	streamFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instalock_stream_frames_total",
		Help: "Event channel frames by decode result",
	}, []string{"result"}) // result=decoded|ignored|duplicate

	phaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instalock_phase_transitions_total",
		Help: "Applied game phase transitions by target phase",
	}, []string{"phase"})

	lockAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instalock_lock_attempts_total",
		Help: "Character lock requests by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instalock_commands_total",
		Help: "Operator commands by command and outcome",
	}, []string{"command", "outcome"}) // outcome=success|failure|dropped

	httpRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "instalock_http_retries_total",
		Help: "Outbound requests retried after a timeout",
	})

	sessionStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instalock_session_starts_total",
		Help: "Session bootstrap attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure
)

const (
	FrameDecoded   = "decoded"
	FrameIgnored   = "ignored"
	FrameDuplicate = "duplicate"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDropped = "dropped"
)

func RecordFrame(result string) {
	streamFrames.WithLabelValues(result).Inc()
}

func RecordTransition(phase string) {
	phaseTransitions.WithLabelValues(phase).Inc()
}

func RecordLockAttempt(ok bool) {
	lockAttempts.WithLabelValues(outcome(ok)).Inc()
}

func RecordCommand(command, outcome string) {
	commands.WithLabelValues(command, outcome).Inc()
}

func RecordRetry() {
	httpRetries.Inc()
}

func RecordSessionStart(ok bool) {
	sessionStarts.WithLabelValues(outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
