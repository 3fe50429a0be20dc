// Package logging resolves the logger for a unit of work.
package logging

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FromContext returns the logger attached to ctx by the tracing middleware, so lines
// carry the request's trace_id. Contexts without one (scheduled jobs, tests) get the
// global logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
