// Package pipeline runs one full build: reference load, source resolution,
// then one aggregation and output file per trailing window.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dvf-prices/internal/aggregate"
	"github.com/sells-group/dvf-prices/internal/communes"
	"github.com/sells-group/dvf-prices/internal/dvf"
	"github.com/sells-group/dvf-prices/internal/prices"
)

// ReferenceLoader provides the commune reference index.
type ReferenceLoader interface {
	Load(ctx context.Context) (communes.Index, error)
}

// SourceResolver makes the yearly source files available locally.
type SourceResolver interface {
	Resolve(ctx context.Context, today time.Time) ([]dvf.Source, error)
}

// Aggregator computes per-commune medians over a date window.
type Aggregator interface {
	Aggregate(ctx context.Context, paths []string, start, today time.Time) ([]aggregate.Row, error)
}

// Window is a trailing period of Days days ending today.
type Window struct {
	Days int
	File string
}

// DefaultWindows are the 12 and 24 month windows.
var DefaultWindows = []Window{{Days: 365}, {Days: 730}}

// FileName returns File, or prices_<months>.json when File is empty.
func (w Window) FileName() string {
	if w.File != "" {
		return w.File
	}
	return fmt.Sprintf("prices_%d.json", w.Days*12/365)
}

// Start returns the first day of the window ending on today.
func (w Window) Start(today time.Time) time.Time {
	return today.AddDate(0, 0, -w.Days)
}

// Today truncates t to its calendar date, expressed as midnight UTC.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces time.Now as the source of the run date.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline wires the build steps together.
type Pipeline struct {
	loader     ReferenceLoader
	resolver   SourceResolver
	aggregator Aggregator
	windows    []Window
	outDir     string
	now        func() time.Time
}

// New creates a Pipeline writing one file per window into outDir.
func New(loader ReferenceLoader, resolver SourceResolver, agg Aggregator, windows []Window, outDir string, opts ...Option) *Pipeline {
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	p := &Pipeline{
		loader:     loader,
		resolver:   resolver,
		aggregator: agg,
		windows:    windows,
		outDir:     outDir,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WindowResult describes one written output file.
type WindowResult struct {
	Days     int
	Start    time.Time
	Path     string
	Communes int
	Dropped  int
}

// Result summarizes a run.
type Result struct {
	RunID   string
	Today   time.Time
	Sources []dvf.Source
	Windows []WindowResult
}

// Run executes the build. The run date is read once and shared by every
// window so all outputs describe the same day.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		RunID: uuid.New().String(),
		Today: Today(p.now()),
	}
	log := zap.L().With(
		zap.String("run_id", result.RunID),
		zap.String("today", result.Today.Format(time.DateOnly)),
	)
	log.Info("pipeline: starting build")

	var idx communes.Index
	if err := phase(log, "load_communes", func() error {
		var err error
		idx, err = p.loader.Load(ctx)
		return err
	}); err != nil {
		return nil, eris.Wrap(err, "pipeline: load communes")
	}

	if err := phase(log, "resolve_sources", func() error {
		var err error
		result.Sources, err = p.resolver.Resolve(ctx, result.Today)
		return err
	}); err != nil {
		return nil, eris.Wrap(err, "pipeline: resolve sources")
	}
	paths := dvf.Paths(result.Sources)

	for _, w := range p.windows {
		wr, err := p.runWindow(ctx, log, w, paths, idx, result.Today)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: window %d days", w.Days)
		}
		result.Windows = append(result.Windows, wr)
	}

	log.Info("pipeline: build complete", zap.Int("files", len(result.Windows)))
	return result, nil
}

func (p *Pipeline) runWindow(ctx context.Context, log *zap.Logger, w Window, paths []string, idx communes.Index, today time.Time) (WindowResult, error) {
	wr := WindowResult{
		Days:  w.Days,
		Start: w.Start(today),
		Path:  filepath.Join(p.outDir, w.FileName()),
	}

	var rows []aggregate.Row
	if err := phase(log, fmt.Sprintf("aggregate_%d", w.Days), func() error {
		var err error
		rows, err = p.aggregator.Aggregate(ctx, paths, wr.Start, today)
		return err
	}); err != nil {
		return wr, err
	}

	doc := prices.Assemble(rows, idx, wr.Start, today)
	if err := prices.WriteFile(wr.Path, doc); err != nil {
		return wr, err
	}

	wr.Communes = len(doc.Data)
	wr.Dropped = doc.Dropped
	log.Info("pipeline: wrote prices",
		zap.String("path", wr.Path),
		zap.String("periode", doc.Periode),
		zap.Int("communes", wr.Communes),
		zap.Int("dropped", wr.Dropped),
	)
	return wr, nil
}

// phase runs fn and logs its outcome and duration.
func phase(log *zap.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start).Milliseconds()
	if err != nil {
		log.Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return err
	}
	log.Info("pipeline: phase complete",
		zap.String("phase", name),
		zap.Int64("duration_ms", duration),
	)
	return nil
}
