package observability

import (
	"testing"
	"time"

	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordSyncChunk("sim", "noise")
	RecordSyncOffset("sim", 3)
	RecordTransmission("sim")
	RecordTransfer("sim", true, 12*time.Millisecond)
	RecordDiscardedFrame("sim", "control")
	RecordPhase("sim", "receive", 24*time.Millisecond)
	RecordSelfTest("sim", "vector", true)

	log.Info().Msg("observability/metrics: registration idempotent and recording paths executed")
}
