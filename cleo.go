// Package cleo wires every subsystem into one running engine: the
// composition root a host process (or the cleo-harness CLI) embeds (spec.md
// §1 "Overview", §5 "Lifecycle").
package cleo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cleoruntime/cleo/internal/catalogue"
	"github.com/cleoruntime/cleo/internal/cheat"
	"github.com/cleoruntime/cleo/internal/hostbind"
	"github.com/cleoruntime/cleo/internal/menu"
	"github.com/cleoruntime/cleo/internal/pathmap"
	"github.com/cleoruntime/cleo/internal/script"
	"github.com/cleoruntime/cleo/internal/script/opcode"
	"github.com/cleoruntime/cleo/internal/script/scan"
	"github.com/cleoruntime/cleo/internal/settings"
	"github.com/cleoruntime/cleo/internal/streaming"
	"github.com/cleoruntime/cleo/internal/textstore"
	"github.com/cleoruntime/cleo/internal/touch"
	"github.com/cleoruntime/cleo/internal/updater"
	"github.com/cleoruntime/cleo/pkg/config"
	"github.com/cleoruntime/cleo/pkg/metrics"
)

// Options configures one Engine instance. CatalogueRoot and Logger are
// mandatory; everything else falls back to the defaults spec.md §6
// describes for a CLEO install.
type Options struct {
	CatalogueRoot string
	Host          config.HostConfig
	Streaming     config.StreamingConfig
	Updater       config.UpdaterConfig
	Version       string

	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// Engine owns one instance of every CLEO subsystem and coordinates their
// lifecycles, grounded on the teacher's flag-parse -> config-load -> logger
// -> metrics -> service-struct -> signal-wait -> graceful-stop composition
// shape, here reshaped into a library entry point instead of a main.
type Engine struct {
	logger  *slog.Logger
	metrics *metrics.Registry

	Host      *hostbind.Table
	Hooker    *hostbind.SimHooker
	Catalogue *catalogue.Catalogue
	Text      *textstore.Store
	Paths     *pathmap.Map
	Streaming *streaming.Engine
	Info      *streaming.Info
	Scripts   *script.Registry
	Opcodes   *opcode.Table
	Cheats    *cheat.Manager
	Touch     *touch.Tracker
	Settings  *settings.Store
	Updater   *updater.Checker

	streamCount int

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New builds an Engine and every subsystem it owns, but starts nothing —
// callers invoke Start once all cheats, opcode overrides, and menu tabs are
// registered.
func New(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("cleo: Options.Logger is required")
	}
	if opts.CatalogueRoot == "" {
		return nil, fmt.Errorf("cleo: Options.CatalogueRoot is required")
	}

	offsets := make(map[hostbind.Target]uint64, len(opts.Host.Targets))
	for name, addr := range opts.Host.Targets {
		offsets[hostbind.Target(name)] = addr
	}
	host := hostbind.NewTable(0, offsets)

	cat := catalogue.New(opts.CatalogueRoot, opts.Logger)
	paths := pathmap.New()

	streamEngine := streaming.NewEngine(opts.Logger, paths)
	streamCount := opts.Streaming.StreamCount
	if streamCount <= 0 {
		streamCount = 32
	}

	settingsStore, err := settings.Load(opts.CatalogueRoot + "/settings.json")
	if err != nil {
		return nil, fmt.Errorf("cleo: load settings: %w", err)
	}

	var upd *updater.Checker
	if opts.Updater.Endpoint != "" {
		ttl := config.ParseDuration(opts.Updater.CacheTTL, 6*time.Hour)
		upd, err = updater.NewChecker(
			opts.Updater.Endpoint,
			opts.CatalogueRoot+"/update_cache.jwt",
			ttl,
			opts.Version,
			[]byte(opts.Version+opts.CatalogueRoot), // process-local signing key, not a shared secret
			opts.Logger,
		)
		if err != nil {
			return nil, fmt.Errorf("cleo: build updater: %w", err)
		}
	}

	return &Engine{
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		Host:      host,
		Hooker:    hostbind.NewSimHooker(),
		Catalogue: cat,
		Text:      textstore.New(opts.Logger),
		Paths:     paths,
		Streaming: streamEngine,
		Info:      streaming.NewInfo(),
		Scripts:   script.NewRegistry(),
		Opcodes:   opcode.NewTable(),
		Cheats:    nil, // caller supplies the cheat table + activation funcs via WithCheats
		Touch:     touch.NewTracker(0, 0),
		Settings:  settingsStore,
		Updater:   upd,

		streamCount: streamCount,
	}, nil
}

// WithCheats installs the cheat manager. Separate from New because the
// cheat table (111 entries, each with a host-side activation func) is
// game-specific data the embedding host supplies (spec.md §4.3).
func (e *Engine) WithCheats(mgr *cheat.Manager) { e.Cheats = mgr }

// WithScreen sizes the touch tracker's zone grid to the host's screen
// resolution (spec.md §4.4); until called the tracker uses a 0x0 grid, for
// which every zone query is meaningless.
func (e *Engine) WithScreen(width, height float64) {
	e.Touch = touch.NewTracker(width, height)
}

// wireResources pushes the catalogue's freshly classified resources into
// every subsystem spec.md §2's data-flow diagram says they populate: "(2)
// populates (6),(5),(3),(4) at startup" — the script registry, the
// streaming engine's replacement mapper, the text store, and the path
// rewriter. Called once from Start and again after every rescan the
// catalogue watcher reports.
func (e *Engine) wireResources() {
	for _, r := range e.Catalogue.ByKind(catalogue.KindReplace) {
		// The harness has no real host install tree to read "the absolute
		// path as the host would present it" from (pathmap.Register's
		// documented key); the resource's own name is the only handle
		// available here, so it stands in for that host-presented path.
		e.Paths.Register(r.Name, r.Path)
	}

	for _, r := range e.Catalogue.ByKind(catalogue.KindImageReplace) {
		e.Streaming.RegisterReplacement(r.Image, r.Name, r.Path)
	}

	for _, r := range e.Catalogue.ByKind(catalogue.KindText) {
		if err := e.Text.LoadFile(r.Path); err != nil {
			e.logger.Warn("failed to load translation file", "path", r.Path, "error", err)
		}
	}

	e.loadScripts()
}

// loadScripts loads every classified .csa/.csi resource not already
// registered, runs duplicate detection and the safety scan across the
// newly loaded batch (spec.md §4.2, §4.2.1), and registers every script of
// the batch, flagged or not.
// Scripts already registered from an earlier scan are left untouched.
func (e *Engine) loadScripts() {
	var fresh []*script.Script
	load := func(r catalogue.Resource, kind script.Kind) {
		if e.Scripts.HasPath(r.Path) {
			return
		}
		s, err := script.Load(r.Path, kind)
		if err != nil {
			e.logger.Warn("failed to load script", "path", r.Path, "error", err)
			return
		}
		fresh = append(fresh, s)
	}

	for _, r := range e.Catalogue.ByKind(catalogue.KindStartupScript) {
		load(r, script.Startup)
	}
	for _, r := range e.Catalogue.ByKind(catalogue.KindInvokedScript) {
		load(r, script.Invoked)
	}
	if len(fresh) == 0 {
		return
	}

	script.MarkDuplicates(fresh, scan.Hash)
	params := scan.DefaultParamTable()
	for _, s := range fresh {
		s.RunSafetyScan(params, e.logger)
		e.Scripts.Register(s)
	}
}

// Start opens the catalogue layout, scans it once, starts the streaming
// worker, the catalogue watcher, and the background update check, and
// returns once everything is running. It does not block; call Stop (or
// cancel ctx) to tear everything down.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Catalogue.EnsureLayout(e.Catalogue.Root()); err != nil {
		return fmt.Errorf("cleo: ensure catalogue layout: %w", err)
	}
	if err := e.Catalogue.Scan(); err != nil {
		return fmt.Errorf("cleo: initial catalogue scan: %w", err)
	}

	if err := e.Streaming.InitStreams(e.streamCount); err != nil {
		return fmt.Errorf("cleo: init streams: %w", err)
	}

	e.wireResources()

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	group, groupCtx := errgroup.WithContext(runCtx)
	e.group = group

	group.Go(func() error {
		// WatchForChanges rescans the catalogue itself before invoking
		// this callback; re-wiring here (not re-scanning) is what picks
		// up whatever the rescan just classified.
		return e.Catalogue.WatchForChanges(func() {
			e.logger.Info("catalogue changed, rewiring resources")
			e.wireResources()
		})
	})

	if e.Updater != nil {
		group.Go(func() error {
			channelNone := e.Settings.Get().ReleaseChannel == settings.ChannelNone
			e.Updater.Run(groupCtx, channelNone)
			return nil
		})
	}

	e.logger.Info("cleo engine started", "catalogue_root", e.Catalogue.Root(), "streams", e.streamCount)
	return nil
}

// Stop cancels every background goroutine, waits for them to exit, and
// releases the streaming engine's open image handles.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	e.Catalogue.Close()
	e.Streaming.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- e.group.Wait() }()

	select {
	case err := <-errCh:
		if err != nil {
			e.logger.Warn("cleo engine stopped with error", "error", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	e.logger.Info("cleo engine stopped")
	return nil
}

// Tabs returns the standard set of menu tabs for this engine's subsystems:
// the cheats tab first when a cheat manager is installed, then invoked
// scripts, startup scripts, and settings.
func (e *Engine) Tabs() []menu.Builder {
	tabs := []menu.Builder{
		menu.InvokedScriptsTab(e.Scripts),
		menu.StartupScriptsTab(e.Scripts),
		menu.SettingsTab(e.Settings),
	}
	if e.Cheats != nil {
		tabs = append([]menu.Builder{menu.CheatsTab(e.Cheats)}, tabs...)
	}
	return tabs
}
