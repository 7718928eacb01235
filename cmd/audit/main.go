// Command audit consumes query.recorded events and appends them to
// logs/queries.log.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/edubot/internal/config"
	"github.com/iliyamo/edubot/internal/queue"
)

func main() {
	cfg, err := config.LoadAudit()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.SlogLevel(cfg.LogLevel)})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("audit consumer starting", "queue", queue.QueryRecordedQueue, "dir", cfg.LogDir)
	if err := queue.StartQueryConsumer(ctx, cfg.RabbitMQURL, cfg.LogDir); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("audit consumer stopped", "err", err)
		os.Exit(1)
	}
}
