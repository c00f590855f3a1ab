package logger

import (
	"fmt"
	"log/slog"
)

// PlainStyledLogger implements StyledLogger without any colour codes
type PlainStyledLogger struct {
	logger *slog.Logger
}

func NewPlainStyledLogger(logger *slog.Logger) *PlainStyledLogger {
	return &PlainStyledLogger{
		logger: logger,
	}
}

func (sl *PlainStyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *PlainStyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *PlainStyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *PlainStyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *PlainStyledLogger) InfoWithCount(msg string, count int, args ...any) {
	sl.logger.Info(fmt.Sprintf("%s (%d)", msg, count), args...)
}

func (sl *PlainStyledLogger) InfoWithNumbers(msg string, numbers ...int64) {
	formatted := make([]any, 0, len(numbers))
	for _, num := range numbers {
		formatted = append(formatted, num)
	}
	sl.logger.Info(fmt.Sprintf(msg, formatted...))
}

func (sl *PlainStyledLogger) InfoWithBackend(msg string, backend string, args ...any) {
	sl.logger.Info(msg, append([]any{"backend", backend}, args...)...)
}

func (sl *PlainStyledLogger) WarnWithBackend(msg string, backend string, args ...any) {
	sl.logger.Warn(msg, append([]any{"backend", backend}, args...)...)
}

func (sl *PlainStyledLogger) ErrorWithBackend(msg string, backend string, args ...any) {
	sl.logger.Error(msg, append([]any{"backend", backend}, args...)...)
}

func (sl *PlainStyledLogger) InfoHealthStatus(msg string, backend string, healthy bool, args ...any) {
	sl.logger.Info(msg, append([]any{"backend", backend, "healthy", healthy}, args...)...)
}

func (sl *PlainStyledLogger) WarnFailover(msg string, from, to string, args ...any) {
	sl.logger.Warn(msg, append([]any{"from", from, "to", to}, args...)...)
}

func (sl *PlainStyledLogger) InfoWithContext(msg string, backend string, ctx LogContext) {
	logWithContext(sl.logger, slog.LevelInfo, msg, msg, backend, ctx)
}

func (sl *PlainStyledLogger) WarnWithContext(msg string, backend string, ctx LogContext) {
	logWithContext(sl.logger, slog.LevelWarn, msg, msg, backend, ctx)
}

func (sl *PlainStyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

func (sl *PlainStyledLogger) WithRequestID(requestID string) StyledLogger {
	return sl.With("request_id", requestID)
}

func (sl *PlainStyledLogger) With(args ...any) StyledLogger {
	return &PlainStyledLogger{
		logger: sl.logger.With(args...),
	}
}
