package logger

import (
	"log/slog"
	"time"
)

// LogCommand records one CLI or bot command.
func LogCommand(l *slog.Logger, name string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "cmd"),
		slog.String("name", name),
		slog.Duration("took", duration),
	}
	if err != nil {
		l.Error("Command failed", append(attrs, slog.Any("error", err))...)
		return
	}
	l.Info("Command executed", attrs...)
}

// LogQuery records a raw statement. Arguments are only logged on failure.
func LogQuery(l *slog.Logger, query string, args []any, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "db"),
		slog.String("query", query),
		slog.Duration("took", duration),
	}
	if err != nil {
		l.Error("Statement failed", append(attrs, slog.Any("args", args), slog.Any("error", err))...)
		return
	}
	l.Debug("Statement executed", attrs...)
}
