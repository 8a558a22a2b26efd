package registry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumented_RecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	promReg := prometheus.NewRegistry()
	recorder := NewPrometheusRecorder(promReg)
	reg := NewInstrumented(NewMemory(), recorder)

	n := nullifierFor("metrics")

	used, err := reg.IsUsed(ctx, n)
	require.NoError(t, err)
	require.False(t, used)

	ok, err := reg.TryConsume(ctx, n)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = reg.TryConsume(ctx, n)
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = reg.ConsumedAt(ctx, n)
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = reg.TryConsume(cancelled, nullifierFor("other"))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.consumeTotal.WithLabelValues(OutcomeConsumed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.consumeTotal.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.consumeTotal.WithLabelValues(OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.lookupTotal.WithLabelValues(OutcomeUnused)))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.lookupTotal.WithLabelValues(OutcomeUsed)))
}

func TestInstrumented_NilRecorder(t *testing.T) {
	reg := NewInstrumented(NewMemory(), nil)
	ok, err := reg.TryConsume(context.Background(), nullifierFor("x"))
	require.NoError(t, err)
	assert.True(t, ok)
}
