package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/cascade/internal/cache"
	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/config"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/metrics"
	"github.com/roach88/cascade/internal/schema"
	"github.com/roach88/cascade/internal/session"
	"github.com/roach88/cascade/internal/store"
)

// env is everything a data command needs: the resolved config, an open
// session, and the metrics registry its engine reports to.
type env struct {
	cfg      config.Config
	session  *session.Session
	registry *prometheus.Registry
	user     string
	metrics  bool
}

// loadConfig resolves the configuration: defaults, then --config, then
// the per-flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.SchemaDir != "" {
		cfg.Schema = opts.SchemaDir
	}
	if opts.User != "" {
		cfg.UserID = opts.User
	}
	return cfg, cfg.Validate()
}

// loadSchema compiles and validates the models of dir. Cycle warnings are
// logged, not fatal.
func loadSchema(dir string) ([]ir.ModelSpec, error) {
	result, loadErrs := LoadModels(dir, LoadModeFailFast)
	if len(loadErrs) > 0 {
		return nil, loadErrs[0]
	}

	if errs := compiler.ValidateModels(result.Models); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, &LoadError{
			Code:    errs[0].Code,
			Message: fmt.Sprintf("invalid schema: %v", errors.Join(joined...)),
		}
	}

	for _, w := range compiler.AnalyzeCycles(result.Models) {
		slog.Warn(w.Message, "level", w.Level)
	}
	return result.Models, nil
}

// openEnv loads config and schema and opens the database.
func openEnv(opts *RootOptions) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err).WithCode(ErrCodeBadInput)
	}

	models, err := loadSchema(cfg.Schema)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	reg, err := schema.New(models)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build schema", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err).WithCode(ErrCodeDatabase)
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	caches := cache.NewRegistry(cfg.Engine.CacheTTL, cache.WithEvictionHook(func(string) {
		m.CacheEvictions.Inc()
	}))

	engineOpts := []engine.Option{
		engine.WithMaxDepth(cfg.Engine.MaxDepth),
		engine.WithMaxSteps(cfg.Engine.MaxSteps),
		engine.WithOptimisticLocking(cfg.Engine.OptimisticLocking),
		engine.WithMetrics(m),
		engine.WithCacheRegistry(caches),
	}
	if cfg.Directory.Model != "" {
		engineOpts = append(engineOpts, engine.WithNameResolver(
			engine.NewRecordDirectory(st, cfg.Directory.Model, cfg.Directory.NameField)))
	}

	slog.Debug("environment ready",
		"database", cfg.Database,
		"schema", cfg.Schema,
		"models", len(models),
		"user_id", cfg.UserID)

	return &env{
		cfg:      cfg,
		session:  session.New(st, reg, engineOpts...),
		registry: promReg,
		user:     cfg.UserID,
		metrics:  opts.Metrics,
	}, nil
}

// close closes the database and, with --metrics, writes the collected
// metrics to w.
func (e *env) close(w io.Writer) error {
	if e.metrics {
		if err := metrics.WriteText(w, e.registry); err != nil {
			slog.Warn("failed to write metrics", "error", err)
		}
	}
	return e.session.Close()
}
