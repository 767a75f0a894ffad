package telemetry_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/printship/internal/telemetry"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := telemetry.NewLogger(tt.level, "printship", "test")
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.RecordRequest("get_rates", "ups", "success", 0.12)
	m.RecordRequest("get_rates", "ups", "success", 0.3)
	m.RecordError("fedex", "timeout")
	m.RecordCacheLookup("rates", true)
	m.RecordCacheLookup("rates", false)
	m.RecordCacheLookup("rates", false)
	m.RecordHTTP("/v1/rates", "POST", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("get_rates", "ups", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CarrierErrors.WithLabelValues("fedex", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("rates", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("rates", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/v1/rates", "POST", "200")))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// Each registry gets its own collectors.
	assert.NotPanics(t, func() {
		telemetry.NewMetrics(prometheus.NewRegistry())
		telemetry.NewMetrics(prometheus.NewRegistry())
	})
}
