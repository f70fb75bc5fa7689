package handlers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/handler"
	"github.com/xivmarket/market-calculator/marketboard/config"
)

const slowCommandThreshold = 2 * time.Second

// WrapWithLogging wraps a command handler with start, completion and timeout logging.
func WrapWithLogging(logger *slog.Logger, name string, h handler.CommandHandler) handler.CommandHandler {
	return wrap(logger, name, config.CommandExecutionTimeout, h)
}

func wrap(logger *slog.Logger, name string, timeout time.Duration, h handler.CommandHandler) handler.CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(e *handler.CommandEvent) error {
		start := time.Now()
		user := e.User()

		logger.Info("Command started",
			slog.String("type", "cmd"),
			slog.String("name", name),
			slog.String("user_id", user.ID.String()),
			slog.String("user_name", user.Username),
			slog.String("channel_id", e.ChannelID().String()),
		)

		done := make(chan error, 1)
		go func() {
			done <- h(e)
		}()

		select {
		case err := <-done:
			duration := time.Since(start)
			attrs := []any{
				slog.String("type", "cmd"),
				slog.String("name", name),
				slog.String("user_id", user.ID.String()),
				slog.Duration("took", duration),
			}

			switch {
			case err != nil:
				logger.Error("Command failed", append(attrs,
					slog.Any("error", err),
					slog.String("status", "failed"),
				)...)
			case duration > slowCommandThreshold:
				logger.Warn("Command executed slowly", append(attrs,
					slog.String("status", "slow"),
				)...)
			default:
				logger.Info("Command completed", append(attrs,
					slog.String("status", "success"),
				)...)
			}
			return err

		case <-time.After(timeout):
			logger.Error("Command timed out",
				slog.String("type", "cmd"),
				slog.String("name", name),
				slog.String("user_id", user.ID.String()),
				slog.String("status", "timeout"),
				slog.Duration("timeout", timeout),
			)
			return fmt.Errorf("command %s timed out after %s", name, timeout)
		}
	}
}
