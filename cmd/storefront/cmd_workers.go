package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/internal/auth"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/queue"
)

var queueWorkersFlag int

// storefront queue:work — run queue workers outside the web process.
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start the queue worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// A standalone worker must share the web process's queue, so Redis
		// is required here; the in-memory driver would see no jobs.
		if err := cache.Connect(); err != nil {
			return fmt.Errorf("queue:work requires redis: %w", err)
		}
		queue.SetDriver(queue.NewRedisDriver(cache.RDB))
		queue.Register("*auth.PasswordResetJob", func() queue.Job { return &auth.PasswordResetJob{} })

		workers := queueWorkersFlag
		if workers < 1 {
			workers = 5
		}

		logger.Info("queue worker started", "workers", workers)
		queue.StartWorkers(ctx, workers)

		<-ctx.Done()
		logger.Info("queue worker stopped")
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 5, "number of concurrent workers")
}
