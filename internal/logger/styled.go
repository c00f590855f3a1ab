package logger

import (
	"context"
	"log/slog"
)

// StyledLogger is what the rest of the application logs through. The themed
// implementation colours backend names and counts for the terminal, the plain
// one is used for JSON output and tests.
type StyledLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	InfoWithCount(msg string, count int, args ...any)
	InfoWithNumbers(msg string, numbers ...int64)
	InfoWithBackend(msg string, backend string, args ...any)
	WarnWithBackend(msg string, backend string, args ...any)
	ErrorWithBackend(msg string, backend string, args ...any)
	InfoHealthStatus(msg string, backend string, healthy bool, args ...any)
	WarnFailover(msg string, from, to string, args ...any)

	InfoWithContext(msg string, backend string, ctx LogContext)
	WarnWithContext(msg string, backend string, ctx LogContext)

	GetUnderlying() *slog.Logger
	WithRequestID(requestID string) StyledLogger
	With(args ...any) StyledLogger
}

// NewWithTheme builds the slog logger and picks a styled wrapper to match
// the terminal it is writing to
func NewWithTheme(cfg *Config) (*slog.Logger, StyledLogger, func(), error) {
	logger, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	return logger, NewStyledLogger(logger, cfg.Theme), cleanup, nil
}

// LogContext separates user-facing from detailed logging context. User args
// go to the terminal, detailed args only reach the log file.
type LogContext struct {
	UserArgs     []any
	DetailedArgs []any
}

func logWithContext(logger *slog.Logger, level slog.Level, styledMsg, msg, backend string, ctx LogContext) {
	logger.Log(context.Background(), level, styledMsg, ctx.UserArgs...)

	if len(ctx.DetailedArgs) > 0 {
		allArgs := make([]any, 0, len(ctx.UserArgs)+len(ctx.DetailedArgs)+2)
		allArgs = append(allArgs, "backend", backend)
		allArgs = append(allArgs, ctx.UserArgs...)
		allArgs = append(allArgs, ctx.DetailedArgs...)

		detailedCtx := context.WithValue(context.Background(), DefaultDetailedCookie, true)
		logger.Log(detailedCtx, level, msg, allArgs...)
	}
}
