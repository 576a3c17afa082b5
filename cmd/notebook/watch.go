package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *cli) newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow changes made by other notebook processes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				return watch(signalCtx, rt)
			})
		},
	}
}

func watch(ctx context.Context, rt *runtime) error {
	if err := rt.store.Watch(ctx); err != nil {
		rt.logger.Warn("file watching unavailable, relying on polling", zap.Error(err))
	}

	events, cleanup := rt.engine.Subscribe(ctx)
	defer cleanup()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-events:
				fmt.Fprintf(rt.out, "%s %s: %d tabs, %d notes\n",
					event.Timestamp.Local().Format(timestampLayout), event.Type,
					len(rt.engine.Tabs()), len(rt.engine.Notes()))
			}
		}
	}()

	rt.logger.Info("watching notebook", zap.String("path", rt.config.DatabasePath), zap.Duration("poll_interval", rt.config.PollInterval))
	return rt.engine.Run(ctx)
}
