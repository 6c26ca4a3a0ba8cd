package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetGlobalLogger(t *testing.T) {
	originalLogger := Logger
	t.Cleanup(func() { SetGlobalLogger(originalLogger) })

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	SetGlobalLogger(logger)

	Info().Msg("hello")
	require.Contains(t, buf.String(), "hello")
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	originalLogger := Logger
	t.Cleanup(func() { SetGlobalLogger(originalLogger) })

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf))

	got := Ctx(context.Background())
	got.Info().Msg("from ctx")
	require.Contains(t, buf.String(), "from ctx")
}

func TestErrHelper(t *testing.T) {
	originalLogger := Logger
	t.Cleanup(func() { SetGlobalLogger(originalLogger) })

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf))

	Err(context.DeadlineExceeded).Msg("failed")
	require.Contains(t, buf.String(), "context deadline exceeded")
}
