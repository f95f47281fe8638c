package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	t.Run("json production logger", func(t *testing.T) {
		logger, err := NewLogger("info", "json")
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zap.InfoLevel))
		assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	})

	t.Run("console logger at debug", func(t *testing.T) {
		logger, err := NewLogger("DEBUG", "text")
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := NewLogger("loud", "json")
		assert.Error(t, err)
	})
}

func TestInitTracer_Disabled(t *testing.T) {
	shutdown := InitTracer(context.Background(), TracingConfig{Enabled: false}, zap.NewNop())
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestMetrics_NoopProvider(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordDecision(ctx, "answer")
		m.RecordLatency(ctx, 12.5, "answer")
		m.RecordAuditFailure(ctx, "file")
	})
}

func TestMetrics_RecordedThroughSDK(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := NewMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAuditFailure(ctx, "file")
	m.RecordAuditFailure(ctx, "file")
	m.RecordAuditFailure(ctx, "kafka")
	m.RecordDecision(ctx, "no_info")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	failures := counterValues(t, rm, "audit.write_failures", "sink")
	assert.Equal(t, map[string]int64{"file": 2, "kafka": 1}, failures)
	assert.Equal(t, map[string]int64{"no_info": 1}, counterValues(t, rm, "gate.decisions", "mode"))
}

func TestInitMetrics_Disabled(t *testing.T) {
	provider, shutdown := InitMetrics(context.Background(), MetricsConfig{}, zap.NewNop())
	require.NotNil(t, provider)

	m, err := NewMetrics(provider)
	require.NoError(t, err)
	m.RecordLatency(context.Background(), 3, "answer")

	assert.NoError(t, shutdown(context.Background()))
}

// counterValues sums an int64 counter by the value of one attribute
func counterValues(t *testing.T, rm metricdata.ResourceMetrics, name string, key attribute.Key) map[string]int64 {
	t.Helper()
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(key)
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}
