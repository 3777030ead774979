package logger

import (
	"github.com/maxaizer/car-tracker/internal/config"
	"github.com/maxaizer/car-tracker/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"io"
	"testing"
)

func Test_ErrorsHook_WhenErrorLogged_ShouldIncrementCounterByType(t *testing.T) {
	assert := assert.New(t)

	logger := log.New()
	logger.SetOutput(io.Discard)
	logger.AddHook(&errorsHook{})

	before := testutil.ToFloat64(metrics.ErrorsCounter.WithLabelValues(ErrorTypeScraper))
	beforeUnknown := testutil.ToFloat64(metrics.ErrorsCounter.WithLabelValues("unknown"))

	logger.WithField(ErrorTypeField, ErrorTypeScraper).Error("scraper is down")
	logger.Error("something failed")
	logger.WithField(ErrorTypeField, ErrorTypeScraper).Warn("not counted")

	assert.Equal(before+1, testutil.ToFloat64(metrics.ErrorsCounter.WithLabelValues(ErrorTypeScraper)))
	assert.Equal(beforeUnknown+1, testutil.ToFloat64(metrics.ErrorsCounter.WithLabelValues("unknown")))
}

func Test_ToLogrusLevel(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(log.DebugLevel, toLogrusLevel(config.LevelDebug))
	assert.Equal(log.WarnLevel, toLogrusLevel(config.LevelWarning))
	assert.Equal(log.InfoLevel, toLogrusLevel("VERBOSE"))
}
