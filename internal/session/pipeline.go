package session

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/ctagard/brs-dap/internal/breakpoints"
	"github.com/ctagard/brs-dap/internal/deploy"
	"github.com/ctagard/brs-dap/internal/inject"
	"github.com/ctagard/brs-dap/internal/log"
	"github.com/ctagard/brs-dap/internal/metrics"
	"github.com/ctagard/brs-dap/internal/paths"
	"github.com/ctagard/brs-dap/pkg/types"
)

// Pipeline prepares a deployable package: stage, locate the entry routine,
// inject stop statements, package.
type Pipeline struct {
	Deployer deploy.Deployer
	Logger   *slog.Logger
}

// Prepared is what a successful Prepare produced.
type Prepared struct {
	StagingDir string
	Package    string
	Translator *paths.Translator
	Functions  inject.FunctionIndex

	Entry inject.EntryPoint
	// EntryPath is the client path of the entry routine's file.
	EntryPath string
	// EntryBreakpoint is nil when a user breakpoint made it redundant.
	EntryBreakpoint *types.Breakpoint

	Injected int
}

// Prepare runs the launch steps up to, but not including, connecting to the
// device. cfg must hold absolute roots. store is keyed by client paths on
// entry and on return; in between it is keyed under cfg.RootDir.
//
// On error the returned Prepared still names the staging folder, if one was
// created, so the caller can remove it.
func (p *Pipeline) Prepare(ctx context.Context, cfg *types.LaunchConfig, store *breakpoints.Store) (*Prepared, error) {
	prep := &Prepared{}
	logger := p.Logger
	if logger == nil {
		logger = log.Discard()
	}

	staging, err := p.Deployer.Stage(ctx, cfg)
	if err != nil {
		return prep, err
	}
	prep.StagingDir = staging

	staged, err := paths.IndexDir(staging)
	if err != nil {
		return prep, err
	}
	prep.Translator = paths.New(cfg.RootDir, cfg.DebugRootDir, staging, staged)

	clientRoot := cfg.ClientRoot()
	store.Rekey(clientRoot, cfg.RootDir)
	rekeyed := true
	defer func() {
		if rekeyed {
			store.Rekey(cfg.RootDir, clientRoot)
		}
	}()

	entry, functions, err := inject.ScanSources(staging, staged)
	prep.Functions = functions
	if err != nil {
		return prep, err
	}
	prep.Entry = entry

	entryPath := filepath.Join(cfg.RootDir, filepath.FromSlash(entry.File))
	prep.EntryPath, _ = paths.Rebase(entryPath, cfg.RootDir, clientRoot)
	if bp, ok := store.MergeEntry(entryPath, entry.Line()); ok {
		prep.EntryBreakpoint = &bp
	} else {
		logger.Debug("entry breakpoint dropped next to a user breakpoint",
			"path", entryPath, "line", entry.Line())
	}

	var jobs []inject.Job
	for _, clientPath := range store.Paths() {
		stagedPath, ok := prep.Translator.ClientToStaging(clientPath)
		if !ok {
			logger.Warn("breakpoint file is outside the project root, skipping", "path", clientPath)
			continue
		}
		jobs = append(jobs, inject.Job{Path: stagedPath, Lines: store.Lines(clientPath)})
	}

	res, err := inject.InjectAll(ctx, jobs)
	if err != nil {
		return prep, err
	}
	store.Rekey(cfg.RootDir, clientRoot)
	rekeyed = false

	prep.Injected = res.Injected
	metrics.BreakpointsInjected(res.Injected)
	for path, lines := range res.Skipped {
		logger.Warn("breakpoints past the end of file were not injected", "path", path, "lines", lines)
	}

	pkg, err := p.Deployer.Package(ctx, cfg, staging)
	if err != nil {
		return prep, err
	}
	prep.Package = pkg

	return prep, nil
}

// DryRun prepares cfg with the given breakpoints, keyed by client path, but
// never contacts a device. The staging folder is left in place.
func (p *Pipeline) DryRun(ctx context.Context, cfg types.LaunchConfig, bps map[string][]int) (*Prepared, map[string][]types.Breakpoint, error) {
	if cfg.Host == "" {
		cfg.Host = "dry-run"
	}
	if err := normalizeConfig(&cfg); err != nil {
		return nil, nil, err
	}

	store := breakpoints.NewStore()
	for path, lines := range bps {
		if _, err := store.Set(path, lines); err != nil {
			return nil, nil, err
		}
	}
	store.Lock()

	prep, err := p.Prepare(ctx, &cfg, store)
	if err != nil {
		return prep, nil, err
	}
	return prep, store.All(), nil
}
