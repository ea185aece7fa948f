package otp

import (
	"context"
	"testing"

	"github.com/richxcame/pizzaguard/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogSenderMasksDestination(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	defer logger.Replace(zap.New(core))()

	require.NoError(t, LogSender{}.SendOTP(context.Background(), "+15551234567", "123456"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "****4567", entries[0].ContextMap()["destination"])
}
