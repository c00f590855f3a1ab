package logger

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pterm/pterm"

	"github.com/corral-proxy/corral/internal/util"
	"github.com/corral-proxy/corral/theme"
)

// ThemedStyledLogger wraps slog.Logger with theme-aware formatting
type ThemedStyledLogger struct {
	logger *slog.Logger
	Theme  *theme.Theme
}

// NewStyledLogger returns a themed logger on a colour terminal and a plain
// one everywhere else
func NewStyledLogger(logger *slog.Logger, themeName string) StyledLogger {
	if util.ShouldUseColors() {
		return NewThemedStyledLogger(logger, theme.GetTheme(themeName))
	}
	return NewPlainStyledLogger(logger)
}

func NewThemedStyledLogger(logger *slog.Logger, appTheme *theme.Theme) *ThemedStyledLogger {
	return &ThemedStyledLogger{
		logger: logger,
		Theme:  appTheme,
	}
}

func (sl *ThemedStyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *ThemedStyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *ThemedStyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *ThemedStyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *ThemedStyledLogger) InfoWithCount(msg string, count int, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Counts}.Sprint("(", count, ")"))
	sl.logger.Info(styledMsg, args...)
}

func (sl *ThemedStyledLogger) InfoWithNumbers(msg string, numbers ...int64) {
	formatted := make([]any, 0, len(numbers))
	for _, num := range numbers {
		formatted = append(formatted, pterm.Style{sl.Theme.Numbers}.Sprint(num))
	}
	sl.logger.Info(fmt.Sprintf(msg, formatted...))
}

func (sl *ThemedStyledLogger) InfoWithBackend(msg string, backend string, args ...any) {
	sl.logger.Info(sl.withBackend(msg, backend), args...)
}

func (sl *ThemedStyledLogger) WarnWithBackend(msg string, backend string, args ...any) {
	sl.logger.Warn(sl.withBackend(msg, backend), args...)
}

func (sl *ThemedStyledLogger) ErrorWithBackend(msg string, backend string, args ...any) {
	sl.logger.Error(sl.withBackend(msg, backend), args...)
}

func (sl *ThemedStyledLogger) InfoHealthStatus(msg string, backend string, healthy bool, args ...any) {
	statusColor, statusText := sl.Theme.HealthHealthy, "healthy"
	if !healthy {
		statusColor, statusText = sl.Theme.HealthUnhealthy, "unhealthy"
	}
	styledMsg := fmt.Sprintf("%s is %s", sl.withBackend(msg, backend), pterm.Style{statusColor}.Sprint(statusText))
	sl.logger.Info(styledMsg, args...)
}

func (sl *ThemedStyledLogger) WarnFailover(msg string, from, to string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s %s %s", msg,
		pterm.Style{sl.Theme.Backend}.Sprint(from),
		pterm.Style{sl.Theme.Failover}.Sprint("->"),
		pterm.Style{sl.Theme.Backend}.Sprint(to))
	sl.logger.Warn(styledMsg, args...)
}

func (sl *ThemedStyledLogger) InfoWithContext(msg string, backend string, ctx LogContext) {
	logWithContext(sl.logger, slog.LevelInfo, sl.withBackend(msg, backend), msg, backend, ctx)
}

func (sl *ThemedStyledLogger) WarnWithContext(msg string, backend string, ctx LogContext) {
	logWithContext(sl.logger, slog.LevelWarn, sl.withBackend(msg, backend), msg, backend, ctx)
}

func (sl *ThemedStyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

func (sl *ThemedStyledLogger) WithRequestID(requestID string) StyledLogger {
	return sl.With("request_id", requestID)
}

func (sl *ThemedStyledLogger) With(args ...any) StyledLogger {
	return &ThemedStyledLogger{
		logger: sl.logger.With(args...),
		Theme:  sl.Theme,
	}
}

func (sl *ThemedStyledLogger) withBackend(msg, backend string) string {
	if strings.TrimSpace(backend) == "" {
		return msg
	}
	return fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Backend}.Sprint(backend))
}
