package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"

	"github.com/phrazzld/shelf/internal/config"
	"github.com/phrazzld/shelf/internal/metrics"
	"github.com/phrazzld/shelf/internal/platform/sqlite"
	"github.com/phrazzld/shelf/internal/store"
	"github.com/phrazzld/shelf/internal/writeq"
)

// application holds the long-lived dependencies shared by the server and
// the queue commands.
type application struct {
	config   *config.Config
	logger   *slog.Logger
	db       *sql.DB
	records  *writeq.RecordStore
	settings *config.Settings
	queue    *writeq.Queue
	registry *prometheus.Registry
}

// newApplication opens the store and builds the write queue on top of it.
func newApplication(ctx context.Context, cfg *config.Config, l *slog.Logger) (*application, error) {
	db, err := sqlite.Open(ctx, cfg.Database.Path, l)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	records, err := writeq.NewRecordStore(afero.NewOsFs(), cfg.Queue.Dir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	settings := config.NewSettings(cfg.Library)
	q := writeq.New(store.NewHandle(db), writeq.Deps{
		Stores: writeq.Stores{
			Novels:     sqlite.NewNovelStore(db, l),
			Chapters:   sqlite.NewChapterStore(db, l),
			Categories: sqlite.NewCategoryStore(db, l),
		},
		Records:  records,
		Settings: settings,
	}, queueConfig(cfg.Queue), l)

	return &application{
		config:   cfg,
		logger:   l,
		db:       db,
		records:  records,
		settings: settings,
		queue:    q,
		registry: registry,
	}, nil
}

func queueConfig(c config.QueueConfig) writeq.Config {
	return writeq.Config{
		BatchThreshold:       c.BatchThreshold,
		BatchInsertThreshold: c.BatchInsertThreshold,
		BatchFlushTimeout:    c.BatchFlushTimeout,
		ScheduleTimeout:      c.ScheduleTimeout,
	}
}

// close drains the queue before closing the database underneath it.
func (app *application) close(ctx context.Context) error {
	var errs []error
	if err := app.queue.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := app.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
