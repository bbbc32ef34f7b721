package synchronizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fwsync/internal/domain/firmware"
)

// fixedTime makes backup names predictable.
var fixedTime = time.Date(2026, time.October, 17, 15, 4, 5, 0, time.UTC)

// countingRebuilder records how often the rebuild ran.
type countingRebuilder struct {
	calls int
	err   error
}

func (r *countingRebuilder) Trigger(context.Context) error {
	r.calls++

	return r.err
}

func newSynchronizer(rebuilder Rebuilder) *Synchronizer {
	return New(Options{
		Rebuilder: rebuilder,
		Now:       func() time.Time { return fixedTime },
	})
}

// stagedRecord writes data into staging and returns a record of the given class.
func stagedRecord(t *testing.T, staging, name, data string, class firmware.Classification) firmware.Record {
	t.Helper()

	path := filepath.Join(staging, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o400))

	hash, err := firmware.FileChecksum(path)
	require.NoError(t, err)

	return firmware.Record{
		Name:           name,
		Classification: class,
		Size:           int64(len(data)),
		NewHash:        hash,
		Source:         path,
	}
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

// TestApply_BackupBeforeWrite checks that the snapshot holds the pre-run state.
func TestApply_BackupBeforeWrite(t *testing.T) {
	t.Parallel()

	staging, parent := t.TempDir(), t.TempDir()
	target := filepath.Join(parent, "MSHW0078")
	writeFile(t, filepath.Join(target, "vendor_desc.bin"), "desc v1")
	writeFile(t, filepath.Join(target, "notes", "history.log"), "kept")

	records := firmware.Records{
		stagedRecord(t, staging, "vendor_desc.bin", "desc v2", firmware.Changed),
		stagedRecord(t, staging, "vendor_kernel.bin", "kernel", firmware.New),
	}

	result, err := newSynchronizer(nil).Apply(context.Background(), target, records)
	require.NoError(t, err)
	require.NoError(t, result.Err())

	require.Equal(t, filepath.Join(parent, "MSHW0078.backup-2026-10-17-150405"), result.BackupPath)
	require.Equal(t, "desc v1", readFile(t, filepath.Join(result.BackupPath, "vendor_desc.bin")))
	require.Equal(t, "kept", readFile(t, filepath.Join(result.BackupPath, "notes", "history.log")))
	require.NoFileExists(t, filepath.Join(result.BackupPath, "vendor_kernel.bin"))

	require.Equal(t, "desc v2", readFile(t, filepath.Join(target, "vendor_desc.bin")))
	require.Equal(t, "kernel", readFile(t, filepath.Join(target, "vendor_kernel.bin")))
	require.Equal(t, []string{"vendor_desc.bin", "vendor_kernel.bin"}, result.Installed)
}

// TestApply_FileModeAndNoLeftovers verifies permissions and that only final names remain.
func TestApply_FileModeAndNoLeftovers(t *testing.T) {
	t.Parallel()

	staging, target := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, "intel_desc.bin"), []byte("old"), 0o755))

	records := firmware.Records{
		stagedRecord(t, staging, "intel_desc.bin", "new", firmware.Changed),
		stagedRecord(t, staging, "iaPreemptPolicy.bin", "policy", firmware.New),
	}

	_, err := newSynchronizer(nil).Apply(context.Background(), target, records)
	require.NoError(t, err)

	entries, err := os.ReadDir(target)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())

		info, err := entry.Info()
		require.NoError(t, err)
		require.Equal(t, firmware.FileMode, info.Mode().Perm(), entry.Name())
	}

	require.Equal(t, []string{"iaPreemptPolicy.bin", "intel_desc.bin"}, names)
}

// TestApply_CreatesTarget makes the install directory when it does not exist.
func TestApply_CreatesTarget(t *testing.T) {
	t.Parallel()

	staging := t.TempDir()
	target := filepath.Join(t.TempDir(), "intel", "ipts", "MSHW0102")

	result, err := newSynchronizer(nil).Apply(context.Background(), target, firmware.Records{
		stagedRecord(t, staging, "vendor_desc.bin", "desc", firmware.New),
	})
	require.NoError(t, err)
	require.DirExists(t, result.BackupPath)
	require.FileExists(t, filepath.Join(target, "vendor_desc.bin"))
}

// TestApply_PrunesWithoutInstalls removes irrelevant files even when nothing was installed.
func TestApply_PrunesWithoutInstalls(t *testing.T) {
	t.Parallel()

	staging, target := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(target, "ipts_fw.bin"), "fw")
	writeFile(t, filepath.Join(target, "SurfaceTouch.inf"), "[Version]")
	writeFile(t, filepath.Join(target, "SurfaceTouch.DLL"), "MZ....")
	writeFile(t, filepath.Join(target, "nested", "readme.txt"), "nested files stay")

	records := firmware.Records{
		stagedRecord(t, staging, "ipts_fw.bin", "fw", firmware.Unchanged),
		{Name: "vendor_desc.bin", Classification: firmware.NotInPackage},
	}

	rebuilder := new(countingRebuilder)

	result, err := newSynchronizer(rebuilder).Apply(context.Background(), target, records)
	require.NoError(t, err)
	require.Empty(t, result.Installed)
	require.ElementsMatch(t, []string{"SurfaceTouch.inf", "SurfaceTouch.DLL"}, result.Removed)
	require.Equal(t, int64(len("[Version]")+len("MZ....")), result.BytesFreed)
	require.FileExists(t, filepath.Join(target, "ipts_fw.bin"))
	require.FileExists(t, filepath.Join(target, "nested", "readme.txt"))
	require.Zero(t, rebuilder.calls)

	// The snapshot still has the pruned files.
	require.FileExists(t, filepath.Join(result.BackupPath, "SurfaceTouch.inf"))
}

// TestApply_RebuildOnce fires the rebuild exactly once per run.
func TestApply_RebuildOnce(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		changed []string
		calls   int
	}{
		{name: "one high-impact", changed: []string{"ipts_fw.bin"}, calls: 1},
		{name: "all high-impact", changed: firmware.DefaultManifest().HighImpactEntries(), calls: 1},
		{name: "everything", changed: firmware.DefaultManifest(), calls: 1},
		{name: "low impact only", changed: []string{"vendor_desc.bin", "intel_desc.bin"}, calls: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			staging, target := t.TempDir(), t.TempDir()

			var records firmware.Records

			for _, name := range tc.changed {
				writeFile(t, filepath.Join(target, name), "old "+name)
				records = append(records, stagedRecord(t, staging, name, "new "+name, firmware.Changed))
			}

			rebuilder := new(countingRebuilder)

			result, err := newSynchronizer(rebuilder).Apply(context.Background(), target, records)
			require.NoError(t, err)
			require.Len(t, result.Installed, len(tc.changed))
			require.Equal(t, tc.calls, rebuilder.calls)
			require.Equal(t, tc.calls == 1, result.RebuildTriggered)
		})
	}
}

// TestApply_RebuildFailureIsWarning keeps the installed firmware and reports the error.
func TestApply_RebuildFailureIsWarning(t *testing.T) {
	t.Parallel()

	staging, target := t.TempDir(), t.TempDir()
	rebuilder := &countingRebuilder{err: errors.New("update-initramfs: not found")}

	result, err := newSynchronizer(rebuilder).Apply(context.Background(), target, firmware.Records{
		stagedRecord(t, staging, "ipts_fw_config.bin", "cfg", firmware.New),
	})
	require.NoError(t, err)
	require.NoError(t, result.Err())
	require.True(t, result.RebuildTriggered)
	require.Error(t, result.RebuildErr)
	require.FileExists(t, filepath.Join(target, "ipts_fw_config.bin"))
}

// TestApply_PerFileFailure continues with the other files and skips the rebuild for a failed entry.
func TestApply_PerFileFailure(t *testing.T) {
	t.Parallel()

	staging, target := t.TempDir(), t.TempDir()

	broken := stagedRecord(t, staging, "ipts_fw.bin", "fw", firmware.New)
	require.NoError(t, os.Remove(broken.Source))

	rebuilder := new(countingRebuilder)

	result, err := newSynchronizer(rebuilder).Apply(context.Background(), target, firmware.Records{
		broken,
		stagedRecord(t, staging, "vendor_desc.bin", "desc", firmware.New),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"vendor_desc.bin"}, result.Installed)
	require.Len(t, result.Failures, 1)
	require.ErrorIs(t, result.Err(), ErrIncompleteInstall)
	require.ErrorIs(t, result.Err(), os.ErrNotExist)
	require.Zero(t, rebuilder.calls)
	require.NoFileExists(t, filepath.Join(target, "ipts_fw.bin"))
}

// TestApply_ChecksumMismatch refuses to swap in bytes that do not match the diff hash.
func TestApply_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	staging, target := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(target, "vendor_kernel.bin"), "old")

	record := stagedRecord(t, staging, "vendor_kernel.bin", "new", firmware.Changed)
	record.NewHash = []byte("not the real checksum")

	result, err := newSynchronizer(nil).Apply(context.Background(), target, firmware.Records{record})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	require.Equal(t, "old", readFile(t, filepath.Join(target, "vendor_kernel.bin")))
}

// TestBackup_UniqueNames never reuses an existing snapshot directory.
func TestBackup_UniqueNames(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "MSHW0137")
	writeFile(t, filepath.Join(target, "ipts_fw.bin"), "fw")

	first, err := Backup(target, fixedTime)
	require.NoError(t, err)

	second, err := Backup(target, fixedTime)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, strings.HasPrefix(second, first))
	require.Equal(t, first+"-1", second)
	require.Equal(t, "fw", readFile(t, filepath.Join(second, "ipts_fw.bin")))
}

// TestBackup_PreservesLinks copies symlinks as links.
func TestBackup_PreservesLinks(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "fw")
	writeFile(t, filepath.Join(target, "ipts_fw.bin"), "fw")
	require.NoError(t, os.Symlink("ipts_fw.bin", filepath.Join(target, "current.bin")))

	backup, err := Backup(target, fixedTime)
	require.NoError(t, err)

	link, err := os.Readlink(filepath.Join(backup, "current.bin"))
	require.NoError(t, err)
	require.Equal(t, "ipts_fw.bin", link)
}
