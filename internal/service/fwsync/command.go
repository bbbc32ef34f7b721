package fwsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/oshokin/fwsync/internal/config"
	"github.com/oshokin/fwsync/internal/domain/firmware"
	"github.com/oshokin/fwsync/internal/logger"
	"github.com/oshokin/fwsync/internal/report"
	"github.com/oshokin/fwsync/internal/service/common"
	"github.com/oshokin/fwsync/internal/service/diff"
	"github.com/oshokin/fwsync/internal/service/extractor"
	"github.com/oshokin/fwsync/internal/service/fetch"
	"github.com/oshokin/fwsync/internal/service/locator"
	"github.com/oshokin/fwsync/internal/service/rebuild"
	"github.com/oshokin/fwsync/internal/service/synchronizer"
	"github.com/oshokin/fwsync/internal/service/target"
)

// executableName is the process name looked up for concurrent runs.
const executableName = "fwsync"

var (
	// ErrInputMissing is returned when a local package path does not exist.
	ErrInputMissing = errors.New("input package not found")
	// ErrPrivilegeRequired is returned when applying without root.
	ErrPrivilegeRequired = errors.New("installing firmware requires root privileges")
)

// Options are inputs accepted by the entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// DeviceID selects the install target.
	DeviceID string
	// Source is a local path or an http(s) URL of the vendor package.
	Source string
	// Apply installs changes; without it the run stops after the diff.
	Apply bool
}

// Dependencies are the collaborators of a run. Zero fields are built from the config.
type Dependencies struct {
	Archiver  extractor.Archiver
	Unpacker  extractor.PackageUnpacker
	Rebuilder synchronizer.Rebuilder
	// Privileged reports whether installing is allowed.
	Privileged func() bool
	// Out receives the report, os.Stdout by default.
	Out io.Writer
	// Color enables ANSI colors in the report.
	Color bool
}

// runner holds the state of a single execution.
type runner struct {
	cfg     *config.Config
	opts    *Options
	deps    Dependencies
	printer *report.Printer
}

// Run loads the settings and executes one synchronization.
func Run(ctx context.Context, opts *Options) (firmware.Outcome, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return firmware.OutcomeFailed, err
	}

	return RunWith(ctx, cfg, opts, Dependencies{
		Out:   os.Stdout,
		Color: report.IsColorEnabled(os.Stdout),
	})
}

// RunWith executes one synchronization with explicit settings and collaborators.
func RunWith(ctx context.Context, cfg *config.Config, opts *Options, deps Dependencies) (firmware.Outcome, error) {
	r := newRunner(cfg, opts, deps)

	ctx = logger.WithName(ctx, executableName)
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString(), "device", opts.DeviceID)

	outcome, err := r.run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Run failed", "error", err)
		return outcome, err
	}

	logger.InfoKV(ctx, "Run completed", "outcome", outcome.String())
	r.printer.Outcome(outcome)

	return outcome, nil
}

func newRunner(cfg *config.Config, opts *Options, deps Dependencies) *runner {
	if deps.Archiver == nil {
		deps.Archiver = extractor.NewSevenZip(cfg.Archiver, cfg.ToolTimeout)
	}

	if deps.Unpacker == nil {
		deps.Unpacker = extractor.NewMSIExtract(cfg.PackageExtractor, cfg.ToolTimeout)
	}

	if deps.Rebuilder == nil {
		deps.Rebuilder = rebuild.NewCommand(cfg.RebuildCommand, cfg.ToolTimeout)
	}

	if deps.Privileged == nil {
		deps.Privileged = common.IsPrivileged
	}

	if deps.Out == nil {
		deps.Out = io.Discard
	}

	return &runner{
		cfg:     cfg,
		opts:    opts,
		deps:    deps,
		printer: report.NewPrinter(deps.Out, deps.Color),
	}
}

func (r *runner) run(ctx context.Context) (firmware.Outcome, error) {
	targetDir, pipeline, err := r.preconditions(ctx)
	if err != nil {
		return firmware.OutcomeFailed, err
	}

	ctx = logger.WithKV(ctx, "target", targetDir)

	ws, err := extractor.NewWorkspace(r.cfg.WorkspaceDir)
	if err != nil {
		return firmware.OutcomeFailed, err
	}

	defer func() {
		if closeErr := ws.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to remove workspace", "path", ws.Root(), "error", closeErr)
		}
	}()

	logger.DebugKV(ctx, "Workspace created", "path", ws.Root())

	input, err := r.input(ctx, ws)
	if err != nil {
		return firmware.OutcomeFailed, err
	}

	records, err := r.stageAndCompare(ctx, ws, pipeline, input, targetDir)
	if err != nil {
		return firmware.OutcomeFailed, err
	}

	r.printer.Records(records)

	switch {
	case records.UpToDate():
		return firmware.OutcomeUpToDate, nil
	case !r.opts.Apply:
		logger.InfoKV(ctx, "Dry run, nothing installed", "pending", records.Pending())
		return firmware.OutcomePending, nil
	}

	return r.install(ctx, targetDir, records)
}

// preconditions fails before any workspace exists.
func (r *runner) preconditions(ctx context.Context) (string, *extractor.Extractor, error) {
	targetDir, err := target.NewResolver(r.cfg.Targets).Resolve(r.opts.DeviceID)
	if err != nil {
		return "", nil, err
	}

	if !fetch.IsRemote(r.opts.Source) {
		info, statErr := os.Stat(r.opts.Source)
		if statErr != nil {
			return "", nil, fmt.Errorf("%s: %w", r.opts.Source, ErrInputMissing)
		}

		if info.IsDir() {
			return "", nil, fmt.Errorf("%s is a directory: %w", r.opts.Source, ErrInputMissing)
		}
	}

	pipeline := extractor.New(r.deps.Archiver, r.deps.Unpacker, extractor.Options{
		SearchDepth: r.cfg.SearchDepth,
		BlockSize:   r.cfg.BlockSize,
	})

	if err = pipeline.CheckTools(); err != nil {
		return "", nil, err
	}

	if r.opts.Apply && !r.deps.Privileged() {
		return "", nil, ErrPrivilegeRequired
	}

	logger.InfoKV(ctx, "Preconditions met", "target", targetDir, "apply", r.opts.Apply)

	return targetDir, pipeline, nil
}

// input returns a local path to the package, downloading it when remote.
func (r *runner) input(ctx context.Context, ws *extractor.Workspace) (string, error) {
	if !fetch.IsRemote(r.opts.Source) {
		return filepath.Abs(r.opts.Source)
	}

	downloadDir, err := ws.Dir("download")
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Downloading package", "url", r.opts.Source)

	path, err := fetch.New(r.cfg.DownloadTimeout).Download(ctx, r.opts.Source, downloadDir)
	if err != nil {
		return "", fmt.Errorf("download package: %w", err)
	}

	return path, nil
}

func (r *runner) stageAndCompare(
	ctx context.Context,
	ws *extractor.Workspace,
	pipeline *extractor.Extractor,
	input string,
	targetDir string,
) (firmware.Records, error) {
	extractDir, err := ws.Dir("extract")
	if err != nil {
		return nil, err
	}

	extraction, err := pipeline.Extract(ctx, input, extractDir)
	if err != nil {
		return nil, err
	}

	stagingDir, err := ws.Dir("staging")
	if err != nil {
		return nil, err
	}

	manifest := firmware.DefaultManifest()

	// Firmware may also sit in the outer archive or the bootstrapper prefix payloads.
	staging, err := locator.Locate(ctx, extraction.Root, stagingDir, manifest)
	if err != nil {
		return nil, err
	}

	return diff.Compare(manifest, staging.Files, targetDir)
}

func (r *runner) install(ctx context.Context, targetDir string, records firmware.Records) (firmware.Outcome, error) {
	if pids, err := common.OtherInstances(executableName); err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)
	} else if len(pids) > 0 {
		logger.WarnKV(ctx, "Another instance appears to be running", "pids", pids)
	}

	if actor, err := common.DetectActor(); err == nil {
		logger.InfoKV(ctx, "Installing firmware", "actor", actor.String())
	}

	privileged := r.deps.Privileged()

	syncer := synchronizer.New(synchronizer.Options{
		Rebuilder:   r.deps.Rebuilder,
		ChangeOwner: privileged && common.IsPrivileged(),
		OwnerUID:    r.cfg.OwnerUID,
		OwnerGID:    r.cfg.OwnerGID,
	})

	result, err := syncer.Apply(ctx, targetDir, records)
	if err != nil {
		return firmware.OutcomeFailed, err
	}

	r.printer.Sync(result)

	if err = result.Err(); err != nil {
		return firmware.OutcomeFailed, err
	}

	return firmware.OutcomeApplied, nil
}
