package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readquest",
		Subsystem: "sync",
		Name:      "remote_write_attempts_total",
		Help:      "Remote progress write attempts by outcome.",
	}, []string{"outcome"})

	pendingDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "readquest",
		Subsystem: "sync",
		Name:      "pending_queue_depth",
		Help:      "Number of progress snapshots waiting for a successful remote write.",
	})

	storiesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "readquest",
		Subsystem: "progress",
		Name:      "stories_read_total",
		Help:      "Story-read events recorded in the progress store.",
	})

	quizzesCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readquest",
		Subsystem: "progress",
		Name:      "quizzes_completed_total",
		Help:      "Quiz completions recorded in the progress store.",
	}, []string{"perfect"})
)

func init() {
	prometheus.MustRegister(syncAttempts, pendingDepth, storiesRead, quizzesCompleted)
}

// RecordSyncAttempt counts one remote write attempt.
func RecordSyncAttempt(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	syncAttempts.WithLabelValues(outcome).Inc()
}

// SetPendingDepth updates the pending-queue watermark.
func SetPendingDepth(n int) {
	pendingDepth.Set(float64(n))
}

// RecordStoryRead counts one story-read event.
func RecordStoryRead() {
	storiesRead.Inc()
}

// RecordQuizCompleted counts one quiz completion.
func RecordQuizCompleted(perfect bool) {
	label := "no"
	if perfect {
		label = "yes"
	}
	quizzesCompleted.WithLabelValues(label).Inc()
}
