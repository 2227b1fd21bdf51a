package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

func TestObserveQueueDepth(t *testing.T) {
	m := New()

	m.ObserveQueueDepth(models.ClassMonitoring, 42)

	assert.Equal(t, float64(42), testutil.ToFloat64(m.QueueLength.WithLabelValues("monitoring")))
}

func TestRecordIdleTxKillsIgnoresZero(t *testing.T) {
	m := New()

	m.RecordIdleTxKills(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.DBIdleTxKilledTotal))

	m.RecordIdleTxKills(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.DBIdleTxKilledTotal))
}

func TestTimeBatchRecordsObservation(t *testing.T) {
	m := New()

	stop := m.TimeBatch(models.ClassSNMP)
	time.Sleep(time.Millisecond)
	stop()

	assert.Equal(t, 1, testutil.CollectAndCount(m.BatchDurationSeconds))
}

func TestRecordHeartbeatSetsTimestamp(t *testing.T) {
	m := New()
	now := time.Now()

	m.RecordHeartbeat(models.ClassAlerts, now)

	assert.Equal(t, float64(now.Unix()), testutil.ToFloat64(m.WorkerHeartbeatSeconds.WithLabelValues("alerts")))
}

func TestRecordAlertEvaluationIncrements(t *testing.T) {
	m := New()

	m.RecordAlertEvaluation()
	m.RecordAlertEvaluation()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.AlertEvaluationsTotal))
}
