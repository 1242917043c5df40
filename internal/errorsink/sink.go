// Package errorsink records operational errors somewhere the owner of the
// bot will see them. Recording never fails back into the caller.
package errorsink

import (
	"context"

	"github.com/dvloznov/finance-bot/internal/logger"
)

// Sink receives errors from any component.
type Sink interface {
	Record(ctx context.Context, function string, err error, info map[string]interface{})
}

// LogSink writes errors to the context logger only.
type LogSink struct{}

var _ Sink = LogSink{}

// Record logs err at error level with info attached.
func (LogSink) Record(ctx context.Context, function string, err error, info map[string]interface{}) {
	log := logger.FromContext(ctx)
	log.Error().Err(err).Str("function", function).Fields(info).Msg("Recorded error")
}
