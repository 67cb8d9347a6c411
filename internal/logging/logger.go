// Package logging is the structured logging facade used by the vault.
// Call sites depend on Logger; the slog backed SlogLogger is the only
// production implementation.
package logging

import "context"

// Logger logs a message with key/value attributes taken from args:
//
//	log.Info(ctx, "reset token issued", "user_id", userID)
//
// Never pass master secrets, raw tokens, recovery keys or plaintext
// credentials as values.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger that adds args to every record.
	With(args ...any) Logger
}
