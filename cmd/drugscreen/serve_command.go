package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"drugscreen/internal/api"
	"drugscreen/internal/config"
	"drugscreen/internal/logging"
	"drugscreen/internal/preflight"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return serve(runCtx, cfg, logger, skipPreflight)
		},
	}
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start even when preflight checks fail")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, skipPreflight bool) error {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another drugscreen server holds %s", cfg.LockPath())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release server lock", logging.Error(err))
		}
	}()

	if failed := preflight.Failed(preflight.RunAll(ctx, cfg)); len(failed) > 0 {
		for _, r := range failed {
			logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldErrorHint, "run drugscreen preflight for the full report"),
			)
		}
		if !skipPreflight {
			return fmt.Errorf("preflight failed: %d checks", len(failed))
		}
	}

	rt, err := openRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	switch cfg.Notifications.DispatchMode {
	case config.DispatchWorker:
		if err := rt.manager.Start(ctx); err != nil {
			return fmt.Errorf("start outbox worker: %w", err)
		}
		defer rt.manager.Stop()
	default:
		// Saves interrupted by a crash leave outbox rows behind; drain them once.
		if n, err := rt.manager.ProcessPending(ctx); err != nil {
			logger.Warn("outbox backlog drain failed", logging.Error(err))
		} else if n > 0 {
			logger.Info("outbox backlog drained", logging.Int("processed", n))
		}
	}

	server := api.NewServer(cfg, rt.manager, rt.docs, logger)
	if err := server.Start(ctx); err != nil {
		return err
	}
	logger.Info("drugscreen server started",
		logging.String("lock", cfg.LockPath()),
		logging.String("dispatch_mode", cfg.Notifications.DispatchMode),
		logging.String("documents", rt.docs.Driver()),
		logging.Bool("email_test_mode", cfg.Email.TestMode),
	)

	<-ctx.Done()
	server.Stop()
	logger.Info("drugscreen server shutting down")
	return nil
}
