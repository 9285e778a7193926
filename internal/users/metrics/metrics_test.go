package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.IncrementRegistrations()
	m.IncrementRegistrations()
	m.IncrementNotification(OutcomeFailed)
	m.IncrementConflict(ConflictVersion)
	m.ObserveOperation("register", time.Now().Add(-10*time.Millisecond))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Registrations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Notifications.WithLabelValues(OutcomeSent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Conflicts.WithLabelValues(ConflictVersion)))

	count, err := testutil.GatherAndCount(reg, "usermgmt_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
