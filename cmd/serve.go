package cmd

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/tbayops/stormdesk/internal/agents"
	"github.com/tbayops/stormdesk/internal/broadcast"
	"github.com/tbayops/stormdesk/internal/collab"
	"github.com/tbayops/stormdesk/internal/config"
	"github.com/tbayops/stormdesk/internal/feeds"
	"github.com/tbayops/stormdesk/internal/inference"
	"github.com/tbayops/stormdesk/internal/observability"
	"github.com/tbayops/stormdesk/internal/ops"
	"github.com/tbayops/stormdesk/internal/server"
	"github.com/tbayops/stormdesk/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the coordination service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer observability.Sync()
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := observability.GetLogger()

	st, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Store.Seed {
		if err := store.Seed(ctx, st); err != nil {
			return err
		}
	}

	hub := broadcast.NewHub(64, logger)
	executor := ops.NewExecutor(st, hub, logger)

	client := buildInferenceClient(cfg.Inference, logger)
	var roster []*agents.Agent
	for _, def := range agents.Roster() {
		roster = append(roster, agents.New(def, client, cfg.Collab.PromptWindow, logger))
	}
	orchestrator := collab.NewOrchestrator(roster, st, hub, cfg.Collab, logger)

	srv := server.New(cfg.Server, server.Deps{
		Store:        st,
		Executor:     executor,
		Orchestrator: orchestrator,
		Hub:          hub,
		Logger:       logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if cfg.Feeds.Enabled {
		sim := feeds.NewSimulator(st, hub, cfg.Feeds, logger)
		g.Go(func() error { return sim.Run(gctx) })
	}

	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.Store, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := store.OpenSQLite(ctx, cfg.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}

func buildInferenceClient(cfg config.InferenceConfig, logger *zap.Logger) inference.Client {
	if cfg.APIKey == "" {
		logger.Warn("No inference API key configured; collaboration rounds will report errors")
		return inference.Unconfigured{}
	}
	client, err := inference.NewChatClient(cfg, logger)
	if err != nil {
		logger.Warn("Failed to build inference client", zap.Error(err))
		return inference.Unconfigured{}
	}
	return client
}
