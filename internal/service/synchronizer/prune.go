package synchronizer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/oshokin/fwsync/internal/domain/firmware"
	"github.com/oshokin/fwsync/internal/logger"
)

// prune removes platform-irrelevant files directly inside targetDir.
// Subdirectories are not descended into and manifest entries are never removed.
func (s *Synchronizer) prune(ctx context.Context, targetDir string, records firmware.Records, result *Result) {
	entries, err := os.ReadDir(targetDir)
	if err != nil {
		result.Failures = append(result.Failures, Failure{Name: targetDir, Op: "list", Err: err})
		return
	}

	protected := make(map[string]struct{}, len(records))
	for _, record := range records {
		protected[record.Name] = struct{}{}
	}

	for _, entry := range entries {
		name := entry.Name()

		if !entry.Type().IsRegular() || !firmware.IsIrrelevant(name) {
			continue
		}

		if _, ok := protected[name]; ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			result.Failures = append(result.Failures, Failure{Name: name, Op: "remove", Err: err})
			continue
		}

		if err = os.Remove(filepath.Join(targetDir, name)); err != nil {
			logger.ErrorKV(ctx, "Failed to remove irrelevant file", "name", name, "error", err)
			result.Failures = append(result.Failures, Failure{Name: name, Op: "remove", Err: err})

			continue
		}

		result.Removed = append(result.Removed, name)
		result.BytesFreed += info.Size()
	}

	if len(result.Removed) > 0 {
		logger.InfoKV(ctx, "Removed irrelevant files", "count", len(result.Removed), "bytes", result.BytesFreed)
	}
}
