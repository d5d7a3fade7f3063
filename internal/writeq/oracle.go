package writeq

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Settings supplies user preferences consulted at validation time.
type Settings interface {
	// LibraryUpdateSkipWindow is how long after a refresh another refresh of
	// the same novel is considered redundant. Zero disables the check.
	LibraryUpdateSkipWindow() time.Duration
}

// Oracle decides whether a task's effect is still needed right before it runs.
// It fails open: when the check itself cannot be completed the task runs.
type Oracle struct {
	stores   Stores
	settings Settings
	now      func() time.Time
	logger   *slog.Logger
}

// NewOracle returns an Oracle reading through stores. settings may be nil.
func NewOracle(stores Stores, settings Settings, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{
		stores:   stores,
		settings: settings,
		now:      time.Now,
		logger:   logger,
	}
}

// Validate reports whether a task carrying p, created at ref, should run.
// Tasks without a payload always run.
func (o *Oracle) Validate(ctx context.Context, p Payload, ref time.Time) (valid bool) {
	if p == nil {
		return true
	}
	if !o.stores.complete() {
		o.logger.Debug("validation skipped, repositories not configured",
			"category", p.Category())
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("validation panicked, running task anyway",
				"category", p.Category(),
				"error", fmt.Sprint(r))
			valid = true
		}
	}()

	env := checkEnv{
		stores: o.stores,
		ref:    ref,
		now:    o.now(),
	}
	if o.settings != nil {
		env.skipWindow = o.settings.LibraryUpdateSkipWindow()
	}

	ok, err := p.check(ctx, env)
	if err != nil {
		o.logger.Warn("validation failed, running task anyway",
			"category", p.Category(),
			"error", err)
		return true
	}
	return ok
}
