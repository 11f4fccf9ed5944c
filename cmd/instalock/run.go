package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjzl/valorant-instalock/internal/catalog"
	"github.com/kjzl/valorant-instalock/internal/config"
	"github.com/kjzl/valorant-instalock/internal/httpapi"
	"github.com/kjzl/valorant-instalock/internal/hub"
	"github.com/kjzl/valorant-instalock/internal/lockfile"
	"github.com/kjzl/valorant-instalock/internal/logging"
	"github.com/kjzl/valorant-instalock/internal/progress"
	"github.com/kjzl/valorant-instalock/internal/session"
)

const shutdownTimeout = 5 * time.Second

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch the game client and instalock agents (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}
}

func run(parent context.Context, cfg config.Config, out io.Writer) (err error) {
	logger, closeLog, err := logging.New(logging.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeLog()) }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Log.Dir != "" {
		g.Go(func() error {
			n, err := logging.PurgeOld(cfg.Log.Dir, logging.MaxAge, time.Now())
			if err != nil {
				logger.Warn("failed to purge old logs", zap.Error(err))
			}
			logger.Debug("purged old logs", zap.Int("removed", n))
			return nil
		})
	}

	cat := catalog.Load(ctx, catalog.NewClient(cfg.Catalog.BaseURL), cfg.Cache.Dir, logger)
	interrupt := &session.Interrupt{}
	env := session.Env{
		ClientVersion: cat.Version.RiotClientVersion,
		Options: session.Options{
			Wait:      cfg.InstalockWait(),
			Planner:   config.NewPlanner(cfg.MapAgentConfig, cat, logger),
			Maps:      cat,
			Reporter:  progress.New(out),
			Interrupt: interrupt,
			Logger:    logger,
		},
	}

	h := hub.NewHub(ctx, hub.Options{
		Start: func(ctx context.Context, d lockfile.Descriptor) (hub.Session, error) {
			s, err := session.Start(ctx, d, env)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		RetryAfter: cfg.RetryInit(),
		Logger:     logger,
	})
	defer h.Close()

	events, err := lockfile.Watch(ctx, cfg.Lockfile, logger)
	if err != nil {
		return fmt.Errorf("watch lockfile: %w", err)
	}
	g.Go(func() error {
		h.Follow(events)
		return nil
	})

	if cfg.Control.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.Control.Listen,
			Handler:           httpapi.SetupRoutes(h, interrupt),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("control surface: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("instalock running",
		zap.String("lockfile", cfg.Lockfile),
		zap.String("control", cfg.Control.Listen),
		zap.String("strategy", string(cfg.MapAgentConfig.Strategy)),
		zap.Int("agents", len(cat.Agents)))

	err = g.Wait()
	logger.Info("instalock stopped")
	return err
}
