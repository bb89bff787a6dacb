package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/alertkit/pkg/logger"
)

func TestNew_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithService("delivery"),
		logger.WithLevel(slog.LevelDebug),
	)

	log.Debug("dispatching", logger.NotificationID("n-1"), logger.RecipientID("u-1"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "dispatching", record["msg"])
	assert.Equal(t, "delivery", record["service"])
	assert.Equal(t, "n-1", record["notification_id"])
	assert.Equal(t, "u-1", record["recipient_id"])
}

func TestNew_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))

	log.Info("ignored")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestWithFormat_PanicsOnInvalid(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
}

func TestAttrs_NilSafety(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))
	assert.Equal(t, slog.Attr{}, logger.NotificationID(""))
	assert.Equal(t, slog.Attr{}, logger.RecipientID(""))
	assert.NotEqual(t, slog.Attr{}, logger.Error(errors.New("boom")))
}
