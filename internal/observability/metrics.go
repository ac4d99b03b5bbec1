package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	syncChunks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "systolink",
			Subsystem: "sync",
			Name:      "chunks_total",
			Help:      "4-byte chunks inspected during alignment, by outcome.",
		},
		[]string{"port", "outcome"},
	)
	syncOffset = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "systolink",
			Subsystem: "sync",
			Name:      "offset",
			Help:      "Most recently accepted byte rotation offset.",
		},
		[]string{"port"},
	)
	transferAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "systolink",
			Subsystem: "transfer",
			Name:      "transmissions_total",
			Help:      "Payload transmissions including retransmissions.",
		},
		[]string{"port"},
	)
	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "systolink",
			Subsystem: "transfer",
			Name:      "total",
			Help:      "Completed payload transfers by success.",
		},
		[]string{"port", "success"},
	)
	discardedFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "systolink",
			Subsystem: "receive",
			Name:      "discarded_frames_total",
			Help:      "Frames discarded during result reception, by reason.",
		},
		[]string{"port", "reason"},
	)
	phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "systolink",
			Subsystem: "session",
			Name:      "phase_duration_seconds",
			Help:      "Duration of protocol phases in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"port", "phase"},
	)
	selfTests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "systolink",
			Subsystem: "session",
			Name:      "self_tests_total",
			Help:      "Self tests by mode and result.",
		},
		[]string{"port", "mode", "passed"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(syncChunks, syncOffset, transferAttempts, transfers, discardedFrames, phaseDuration, selfTests)
	})
}

func RecordSyncChunk(port, outcome string) {
	RegisterMetrics()
	syncChunks.WithLabelValues(port, outcome).Inc()
}

func RecordSyncOffset(port string, offset int) {
	RegisterMetrics()
	syncOffset.WithLabelValues(port).Set(float64(offset))
}

func RecordTransmission(port string) {
	RegisterMetrics()
	transferAttempts.WithLabelValues(port).Inc()
}

func RecordTransfer(port string, success bool, duration time.Duration) {
	RegisterMetrics()
	transfers.WithLabelValues(port, strconv.FormatBool(success)).Inc()
	phaseDuration.WithLabelValues(port, "transfer").Observe(duration.Seconds())
}

func RecordDiscardedFrame(port, reason string) {
	RegisterMetrics()
	discardedFrames.WithLabelValues(port, reason).Inc()
}

func RecordPhase(port, phase string, duration time.Duration) {
	RegisterMetrics()
	phaseDuration.WithLabelValues(port, phase).Observe(duration.Seconds())
}

func RecordSelfTest(port, mode string, passed bool) {
	RegisterMetrics()
	selfTests.WithLabelValues(port, mode, strconv.FormatBool(passed)).Inc()
}
