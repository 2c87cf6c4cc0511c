package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestFromContextFallsBackToGlobal(t *testing.T) {
	assert.Same(t, &log.Logger, FromContext(context.Background()))
}

func TestWithContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).With().Str("request_id", "req-1").Logger()

	ctx := WithContext(context.Background(), &l)
	FromContext(ctx).Info().Msg("hello")

	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
}

func TestInitJSONOutput(t *testing.T) {
	prev := log.Logger
	defer func() { log.Logger = prev }()

	var buf bytes.Buffer
	Init(Config{Level: "info", Environment: "production", Output: &buf})
	log.Info().Msg("started")

	assert.Contains(t, buf.String(), `"service":"coursehub-api"`)
	assert.Contains(t, buf.String(), `"message":"started"`)
}
