package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oshokin/fwsync/internal/domain/firmware"
	"github.com/oshokin/fwsync/internal/logger"
)

// ErrIncompleteInstall wraps per-file failures of a sync.
var ErrIncompleteInstall = errors.New("firmware install incomplete")

// Rebuilder runs the dependent rebuild step.
type Rebuilder interface {
	Trigger(ctx context.Context) error
}

// Options configure a Synchronizer.
type Options struct {
	// Rebuilder is triggered once when a high-impact entry was installed.
	Rebuilder Rebuilder
	// ChangeOwner applies OwnerUID and OwnerGID to installed files. Needs root.
	ChangeOwner bool
	// OwnerUID is the owner of installed files.
	OwnerUID int
	// OwnerGID is the group of installed files.
	OwnerGID int
	// Now returns the backup timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Failure is a per-file error that did not stop the sync.
type Failure struct {
	Name string
	Op   string
	Err  error
}

// Error implements error.
func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Op, f.Name, f.Err)
}

// Unwrap returns the underlying error.
func (f Failure) Unwrap() error {
	return f.Err
}

// Result summarizes a sync.
type Result struct {
	// BackupPath is the snapshot taken before any write.
	BackupPath string
	// Installed lists the manifest entries written, in manifest order.
	Installed []string
	// Removed lists the irrelevant files deleted from the target.
	Removed []string
	// BytesFreed is the total size of the removed files.
	BytesFreed int64
	// Failures are per-file install and removal errors.
	Failures []Failure
	// RebuildTriggered reports whether the rebuild step ran.
	RebuildTriggered bool
	// RebuildErr is the rebuild failure, a warning only.
	RebuildErr error
}

// Err returns ErrIncompleteInstall joined with every failure, or nil.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}

	errs := make([]error, 0, len(r.Failures)+1)
	errs = append(errs, ErrIncompleteInstall)

	for _, failure := range r.Failures {
		errs = append(errs, failure)
	}

	return errors.Join(errs...)
}

// Synchronizer installs firmware into a target directory.
type Synchronizer struct {
	opts Options
}

// New creates a Synchronizer.
func New(opts Options) *Synchronizer {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Synchronizer{opts: opts}
}

// Apply runs the sync sequence for records against targetDir. A returned error
// means nothing after the failing step ran; per-file problems are in the result.
func (s *Synchronizer) Apply(ctx context.Context, targetDir string, records firmware.Records) (*Result, error) {
	result := new(Result)

	if err := os.MkdirAll(targetDir, firmware.DirMode); err != nil {
		return result, fmt.Errorf("ensure target directory: %w", err)
	}

	backupPath, err := Backup(targetDir, s.opts.Now())
	if err != nil {
		return result, fmt.Errorf("back up %s: %w", targetDir, err)
	}

	result.BackupPath = backupPath
	logger.InfoKV(ctx, "Backed up install target", "backup", backupPath)

	highImpactInstalled := false

	for _, record := range records {
		if !record.Classification.NeedsInstall() {
			continue
		}

		if err = s.install(targetDir, record); err != nil {
			logger.ErrorKV(ctx, "Failed to install firmware file", "name", record.Name, "error", err)
			result.Failures = append(result.Failures, Failure{Name: record.Name, Op: "install", Err: err})

			continue
		}

		logger.InfoKV(ctx, "Installed firmware file", "name", record.Name, "status", record.Classification.String())
		result.Installed = append(result.Installed, record.Name)

		if firmware.IsHighImpact(record.Name) {
			highImpactInstalled = true
		}
	}

	s.prune(ctx, targetDir, records, result)

	if highImpactInstalled {
		s.rebuild(ctx, result)
	}

	return result, nil
}

func (s *Synchronizer) rebuild(ctx context.Context, result *Result) {
	if s.opts.Rebuilder == nil {
		logger.Warn(ctx, "High-impact firmware changed but no rebuild command is configured")
		return
	}

	logger.Info(ctx, "High-impact firmware changed, triggering rebuild")

	result.RebuildTriggered = true

	if err := s.opts.Rebuilder.Trigger(ctx); err != nil {
		result.RebuildErr = err
		logger.WarnKV(ctx, "Rebuild failed, firmware is installed but the boot image is stale", "error", err)
	}
}
