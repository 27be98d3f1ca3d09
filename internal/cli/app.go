package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/climq/internal/config"
	"github.com/roach88/climq/internal/dataset"
	"github.com/roach88/climq/internal/engine"
	"github.com/roach88/climq/internal/geocode"
	"github.com/roach88/climq/internal/metrics"
	"github.com/roach88/climq/internal/narrate"
	"github.com/roach88/climq/internal/rpc"
	"github.com/roach88/climq/internal/vocab"
)

// app is the wired engine of one command invocation.
type app struct {
	Registry *vocab.Registry
	Source   dataset.Source
	Engine   *engine.Engine
	Metrics  *metrics.Metrics

	closers []func() error
	cancel  context.CancelFunc
	served  chan error
}

// loadRegistry returns the built-in domains, or the CUE domains in
// cfg.VocabDir when set.
func loadRegistry(cfg *config.Config) (*vocab.Registry, error) {
	if cfg.VocabDir != "" {
		return vocab.LoadDir(cfg.VocabDir)
	}
	return vocab.Builtin()
}

// openStore opens the sqlite databases of every domain in reg.
func openStore(cfg *config.Config, reg *vocab.Registry) (*dataset.Store, error) {
	var dbs []string
	for _, d := range reg.Domains() {
		dbs = append(dbs, d.Databases...)
	}
	return dataset.Open(cfg.DataDir, dbs)
}

// openApp wires registry, dataset source, gazetteer, renderer and
// metrics from the configuration. Close releases everything it opened.
func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg := opts.Config
	logger := opts.Logger

	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load vocabulary", err)
	}
	a := &app{Registry: reg}

	switch cfg.Source.Kind {
	case "rpc":
		logger.Info("starting dataset server", "command", cfg.Source.Command)
		client, err := rpc.Start(ctx, cfg.Source.Command)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to start dataset server", err)
		}
		a.Source = client
		a.closers = append(a.closers, client.Close)
	default:
		logger.Debug("opening datasets", "dir", cfg.DataDir)
		st, err := openStore(cfg, reg)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open datasets", err)
		}
		a.Source = st
		a.closers = append(a.closers, st.Close)
	}

	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithQueryTimeout(cfg.Execute.Timeout),
	}
	if cfg.Gazetteer.Enabled {
		engOpts = append(engOpts, engine.WithGazetteer(geocode.New(cfg.Gazetteer.Options), cfg.Gazetteer.Budget))
	}
	if cfg.Narrator.Kind == "chat" {
		engOpts = append(engOpts, engine.WithRenderer(narrate.NewChatClient(cfg.Narrator.Chat, logger)))
	}
	if cfg.Metrics.Addr != "" {
		m, err := metrics.New()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("metrics: %w", err)
		}
		a.Metrics = m
		engOpts = append(engOpts, engine.WithMetrics(m))

		mctx, cancel := context.WithCancel(ctx)
		a.cancel = cancel
		a.served = make(chan error, 1)
		go func() {
			logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
			a.served <- m.Serve(mctx, cfg.Metrics.Addr)
		}()
	}

	eng, err := engine.New(reg, a.Source, cfg.Domain, engOpts...)
	if err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create engine", err)
	}
	a.Engine = eng
	return a, nil
}

// Close stops the metrics endpoint and closes the dataset source.
func (a *app) Close() error {
	var errs []error
	if a.cancel != nil {
		a.cancel()
		errs = append(errs, <-a.served)
		a.cancel = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
