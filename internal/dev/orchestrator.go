// Package dev runs the watch-mode development loop: an esbuild context that
// rebuilds on source changes, a watcher for static files, and live-reload
// notifications after every pass.
package dev

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/kiln/internal/app"
	"github.com/conneroisu/kiln/internal/build"
	"github.com/conneroisu/kiln/internal/config"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/livereload"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/watcher"
)

// Orchestrator owns the esbuild watch context and publishes reloads.
type Orchestrator struct {
	opts    build.Options
	dev     config.DevConfig
	hub     *livereload.Hub
	logger  logging.Logger
	payload []byte

	metrics   *build.BuildMetrics
	collector *kerrors.ErrorCollector
	errs      *kerrors.ErrorHandler

	mu      sync.Mutex
	started bool
	ctx     api.BuildContext
	watcher *watcher.FileWatcher
}

// New creates an orchestrator. Nothing runs until Start.
func New(opts build.Options, dev config.DevConfig, hub *livereload.Hub, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	payload := dev.ReloadPayload
	if payload == "" {
		payload = "update"
	}
	logger = logger.WithComponent("dev")
	return &Orchestrator{
		opts:      opts,
		dev:       dev,
		hub:       hub,
		logger:    logger,
		payload:   []byte(payload),
		metrics:   build.NewBuildMetrics(),
		collector: kerrors.NewErrorCollector(),
		errs:      kerrors.NewErrorHandler(logger),
	}
}

// Start checks the HTML shell, starts esbuild in watch mode, runs the
// initial build and begins watching static files. A missing mount element
// is fatal and nothing is started.
func (o *Orchestrator) Start(ctx context.Context) error {
	if _, err := app.Bootstrap(o.opts.IndexPath, o.opts.MountID); err != nil {
		return err
	}

	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return errors.New("development orchestrator already started")
	}
	o.started = true
	o.mu.Unlock()

	bctx, fw, err := o.start(ctx)
	if err != nil {
		o.mu.Lock()
		o.started = false
		o.mu.Unlock()
		return err
	}

	o.mu.Lock()
	o.ctx = bctx
	o.watcher = fw
	o.mu.Unlock()

	o.logger.Info(ctx, "Watching for changes", "entry_points", o.opts.EntryPoints, "out_dir", o.opts.OutDir)
	return nil
}

// start must run without o.mu held: the initial build calls BuildComplete.
func (o *Orchestrator) start(ctx context.Context) (api.BuildContext, *watcher.FileWatcher, error) {
	bctx, cerr := api.Context(o.opts.Development(o))
	if cerr != nil {
		return nil, nil, kerrors.ErrBuildFailed(len(cerr.Errors), errors.New(build.FormatErrors(cerr.Errors)))
	}

	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		bctx.Dispose()
		return nil, nil, kerrors.NewInternalError(kerrors.ErrCodeInternalError, "failed to start esbuild watch mode", err)
	}

	// Initial build. Its outcome reaches BuildComplete like any other pass.
	bctx.Rebuild()

	fw, err := o.watchStatic(ctx)
	if err != nil {
		bctx.Dispose()
		return nil, nil, err
	}
	return bctx, fw, nil
}

func (o *Orchestrator) watchStatic(ctx context.Context) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(o.opts.WorkingDir, o.dev.Debounce, o.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	watched, err := fw.AddStatic(o.dev.WatchStatic)
	if err != nil {
		_ = fw.Stop()
		return nil, fmt.Errorf("failed to watch static files: %w", err)
	}
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoNodeModulesFilter)
	fw.AddHandler(o.staticChanged)

	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	o.logger.Debug(ctx, "Watching static files", "paths", watched)
	return fw, nil
}

// staticChanged reloads browsers after a change to a file esbuild does not
// bundle. No rebuild is needed.
func (o *Orchestrator) staticChanged(events []watcher.ChangeEvent) error {
	paths := make([]string, len(events))
	for i, e := range events {
		paths[i] = e.Path
	}
	o.logger.Info(context.Background(), "Static files changed", "paths", paths)
	o.hub.Broadcast(context.Background(), o.payload)
	return nil
}

// BuildComplete implements build.Observer. Failed passes are logged and the
// watcher keeps running; browsers are told to reload either way so the
// error overlay or the fixed bundle shows up.
func (o *Orchestrator) BuildComplete(result build.Result) {
	ctx := context.Background()

	o.metrics.RecordBuild(result)
	o.collector.Replace(append(append([]kerrors.BuildError(nil), result.Errors...), result.Warnings...))

	for i := range result.Warnings {
		w := result.Warnings[i]
		o.logger.Warn(ctx, &w, "Build warning", "file", w.File, "line", w.Line)
	}

	if result.Failed() {
		o.errs.Handle(ctx, buildFailure(result.Errors))
	} else {
		o.logger.Info(ctx, "Build finished", "duration", result.Duration, "outputs", len(result.Outputs))
	}

	sent := o.hub.Broadcast(ctx, o.payload)
	o.logger.Debug(ctx, "Reload sent", "clients", sent)
}

// buildFailure folds the diagnostics of a failed pass into one recoverable
// error located at the first failing file.
func buildFailure(diags []kerrors.BuildError) *kerrors.KilnError {
	causes := make([]error, len(diags))
	for i := range diags {
		causes[i] = &diags[i]
	}
	err := kerrors.ErrBuildFailed(len(diags), errors.Join(causes...))
	if len(diags) > 0 {
		err.WithLocation(diags[0].File, diags[0].Line, diags[0].Column)
	}
	return err
}

// Metrics returns a snapshot of the session's build metrics.
func (o *Orchestrator) Metrics() build.MetricsSnapshot {
	return o.metrics.Snapshot()
}

// Errors returns the diagnostics of the most recent pass.
func (o *Orchestrator) Errors() []kerrors.BuildError {
	return o.collector.GetErrors()
}

// Close stops the static watcher and disposes the esbuild context. It is
// safe to call more than once.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	bctx, fw := o.ctx, o.watcher
	o.ctx, o.watcher = nil, nil
	o.started = false
	o.mu.Unlock()

	var err error
	if fw != nil {
		err = fw.Stop()
	}
	if bctx != nil {
		bctx.Dispose()
	}
	return err
}
