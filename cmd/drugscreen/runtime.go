package main

import (
	"context"
	"log/slog"

	"drugscreen/internal/alerts"
	"drugscreen/internal/config"
	"drugscreen/internal/documents"
	"drugscreen/internal/email"
	"drugscreen/internal/notify"
	"drugscreen/internal/render"
	"drugscreen/internal/store"
	"drugscreen/internal/workflow"
)

// runtime wires the store, document backend, and notification pipeline.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	docs     *documents.Service
	resolver *notify.Resolver
	manager  *workflow.Manager
}

func openRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	docs, err := documents.Open(ctx, cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	transport, err := email.New(cfg, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	renderer, err := render.New()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	channel := alerts.NewChannel(cfg, logger)
	resolver := notify.NewResolver(st, logger)
	pipeline := notify.NewPipeline(notify.PipelineDeps{
		Records:    st,
		Recipients: resolver,
		Renderer:   renderer,
		Documents:  docs,
		Dispatcher: notify.NewDispatcher(transport, channel, notify.DispatcherConfigFrom(cfg), logger),
		Alerts:     channel,
		Enabled:    cfg.Notifications.Enabled,
		Logger:     logger,
	})

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		docs:     docs,
		resolver: resolver,
		manager:  workflow.NewManager(cfg, st, pipeline, logger),
	}, nil
}

func (r *runtime) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}
