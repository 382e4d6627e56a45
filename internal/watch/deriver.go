package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ipsurveil/ipmetrics/internal/document"
	"github.com/ipsurveil/ipmetrics/internal/fileutils"
	"github.com/ipsurveil/ipmetrics/internal/metrics"
	"github.com/ipsurveil/ipmetrics/internal/records"
	"github.com/ipsurveil/ipmetrics/internal/report"
	"github.com/ipsurveil/ipmetrics/internal/surveillance"
	"github.com/prometheus/client_golang/prometheus"
)

// Config selects the document to watch and the snapshots to keep up to date.
type Config struct {
	Document   string   // Path to the watched document.
	ReportsDir string   // Base directory of the snapshot reports.
	Units      []string // Scopes to derive. Empty means the facility only.
	Date       string   // Last derived day. Empty means today.
	Days       int      // Number of days derived up to Date. Values below 1 mean 1.
}

// OptionsProvider returns the derivation options currently in effect.
type OptionsProvider interface {
	Options() surveillance.Options
}

// Deriver re-derives the configured snapshots each time the watched document changes.
type Deriver struct {
	cfg     Config
	opts    OptionsProvider
	metrics *metrics.Derivations

	reload   <-chan struct{}
	debounce time.Duration
	now      func() time.Time

	log *slog.Logger
}

type deriverOptions struct {
	reload   <-chan struct{}
	debounce time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option is a function which tweaks the creation of the Deriver.
type Option func(*deriverOptions)

// WithReload triggers a derivation pass each time a value is received on ch, like a change of options.
func WithReload(ch <-chan struct{}) Option {
	return func(o *deriverOptions) {
		o.reload = ch
	}
}

// WithLogger sets the logger of the Deriver.
func WithLogger(l *slog.Logger) Option {
	return func(o *deriverOptions) {
		o.logger = l
	}
}

// NewDeriver creates a Deriver and registers its metrics on reg.
func NewDeriver(cfg Config, opts OptionsProvider, reg prometheus.Registerer, args ...Option) (*Deriver, error) {
	if cfg.Document == "" {
		return nil, errors.New("no document to watch")
	}
	if cfg.ReportsDir == "" {
		return nil, errors.New("no reports directory")
	}
	if cfg.Date != "" {
		d, ok := records.ToISODate(cfg.Date)
		if !ok {
			return nil, fmt.Errorf("invalid date %q", cfg.Date)
		}
		cfg.Date = d
	}
	if len(cfg.Units) == 0 {
		cfg.Units = []string{records.FacilityScope}
	}
	cfg.Days = max(cfg.Days, 1)

	o := deriverOptions{
		debounce: 500 * time.Millisecond,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, arg := range args {
		arg(&o)
	}

	m, err := metrics.NewDerivations(reg)
	if err != nil {
		return nil, err
	}

	return &Deriver{
		cfg:      cfg,
		opts:     opts,
		metrics:  m,
		reload:   o.reload,
		debounce: o.debounce,
		now:      o.now,
		log:      o.logger,
	}, nil
}

// Run derives once, then again after each change of the document, until ctx is done.
//
// A failing pass is logged and counted but does not stop the loop.
// Always returns a non-nil error, which is either a context error or a watcher error.
func (d *Deriver) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %v", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(d.cfg.Document)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to add directory %s to watcher: %v", dir, err)
	}
	d.log.Info("Watching document", "path", d.cfg.Document)

	if _, err := d.Pass(ctx); err != nil {
		d.log.Warn("Initial derivation failed", "err", err)
	}

	timer := time.NewTimer(d.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("Context canceled, stopping derivation loop")
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed unexpectedly")
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !fileutils.SameFile(event.Name, d.cfg.Document) {
				continue
			}
			d.log.Debug("Document changed", "op", event.Op.String())
			timer.Reset(d.debounce)

		case _, ok := <-d.reload:
			if !ok {
				d.reload = nil
				continue
			}
			d.log.Debug("Options changed")
			timer.Reset(d.debounce)

		case <-timer.C:
			if _, err := d.Pass(ctx); err != nil {
				d.log.Warn("Derivation failed", "err", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed unexpectedly")
			}
			d.log.Warn("Watcher error", "err", err)
		}
	}
}

// Pass loads the document and writes the snapshot reports of every configured unit and day.
// It returns the written reports.
func (d *Deriver) Pass(ctx context.Context) (reports []report.Report, err error) {
	defer func() {
		if err != nil {
			d.metrics.Failed()
		}
	}()

	doc, err := document.FileSource{Path: d.cfg.Document}.Document(ctx)
	if err != nil {
		return nil, err
	}

	opts := d.opts.Options()
	end := d.cfg.Date
	if end == "" {
		end = d.now().Format(records.ISOLayout)
	}
	start := records.AddDays(end, 1-d.cfg.Days)

	written := make(map[string]int, len(d.cfg.Units))
	for _, unit := range d.cfg.Units {
		for _, s := range surveillance.DeriveRange(doc, start, end, unit, opts) {
			if err := ctx.Err(); err != nil {
				return reports, err
			}
			r, err := report.Write(d.cfg.ReportsDir, s)
			if err != nil {
				return reports, err
			}
			reports = append(reports, r)
			written[s.UnitID]++
		}
	}

	d.metrics.Succeeded(d.now(), written)
	d.log.Info("Derived snapshots", "start", start, "end", end, "reports", len(reports))
	return reports, nil
}
