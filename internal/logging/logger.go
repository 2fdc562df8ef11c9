// Package logging is the structured logger shared by the client and the
// server.
package logging

import "context"

// Logger takes alternating key/value args after the message:
//
//	log.Info(ctx, "flush finished", "sent", n, "retained", r)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that adds args to every record.
	With(args ...any) Logger
}
