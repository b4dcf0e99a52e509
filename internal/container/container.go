package container

import (
	"context"
	"fmt"

	"gocausal/adapters/excel"
	"gocausal/adapters/sqlstore"
	"gocausal/app"
	"gocausal/internal"
	"gocausal/internal/config"
	"gocausal/internal/errors"
	"gocausal/internal/metrics"
	"gocausal/ports"
)

// Container holds the process dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Source is the workbook when Config.Engine.DataFile is set, otherwise the database.
	Source ports.UnitSource
	Store  *sqlstore.Store

	// Metrics is nil when Config.Metrics.File is empty.
	Metrics *metrics.Recorder
}

// New creates a container and opens its unit source.
func New(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.NewLogger(internal.ParseLevel(cfg.LogLevel))
	}

	c := &Container{Config: cfg, Logger: logger}
	if err := c.initSource(ctx); err != nil {
		return nil, err
	}
	if cfg.Metrics.File != "" {
		c.Metrics = metrics.NewRecorder()
	}
	return c, nil
}

// initSource prefers a data file over a database.
func (c *Container) initSource(ctx context.Context) error {
	if path := c.Config.Engine.DataFile; path != "" {
		c.Logger.Debug("reading units from %s", path)
		c.Source = excel.NewSource(path)
		return nil
	}
	if c.Config.Database.URL == "" {
		return errors.ConfigInvalid("no data source: set --data, --db, GOCAUSAL_DATA_FILE or DATABASE_URL")
	}

	c.Logger.Debug("reading units from %s database", c.Config.Database.Driver)
	store, err := sqlstore.Open(ctx, c.Config.Database.Driver, c.Config.Database.URL)
	if err != nil {
		return err
	}
	c.Store = store
	c.Source = store
	return nil
}

// EffectService builds the analysis service over the container's source.
// Options are applied after the container defaults.
func (c *Container) EffectService(opts ...app.Option) *app.EffectAnalysisService {
	base := []app.Option{
		app.WithLogger(c.Logger),
		app.WithMetrics(c.Metrics),
		app.WithParallelism(c.Config.Engine.Parallelism),
	}
	return app.NewEffectAnalysisService(c.Source, append(base, opts...)...)
}

// FlushMetrics writes the metrics textfile, if one is configured.
func (c *Container) FlushMetrics() error {
	if c.Metrics == nil {
		return nil
	}
	return c.Metrics.WriteTextfile(c.Config.Metrics.File)
}

// Close releases the database connection, if any.
func (c *Container) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}
