package diff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fwsync/internal/domain/firmware"
)

func stageFile(t *testing.T, dir, name, data string) firmware.StagedFile {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	hash, err := firmware.FileChecksum(path)
	require.NoError(t, err)

	return firmware.StagedFile{Name: name, Path: path, Size: int64(len(data)), Hash: hash}
}

func classifications(records firmware.Records) []firmware.Classification {
	result := make([]firmware.Classification, 0, len(records))
	for _, record := range records {
		result = append(result, record.Classification)
	}

	return result
}

// TestCompare_AllClassifications covers every classification in manifest order.
func TestCompare_AllClassifications(t *testing.T) {
	t.Parallel()

	staging, target := t.TempDir(), t.TempDir()
	staged := map[string]firmware.StagedFile{
		"same.bin":    stageFile(t, staging, "same.bin", "same"),
		"changed.bin": stageFile(t, staging, "changed.bin", "new contents"),
		"new.bin":     stageFile(t, staging, "new.bin", "brand new"),
	}

	require.NoError(t, os.WriteFile(filepath.Join(target, "same.bin"), []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(target, "changed.bin"), []byte("old contents"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(target, "absent.bin"), []byte("kept"), 0o644))

	manifest := firmware.Manifest{"new.bin", "absent.bin", "same.bin", "changed.bin"}

	records, err := Compare(manifest, staged, target)
	require.NoError(t, err)
	require.Equal(t, []firmware.Classification{
		firmware.New, firmware.NotInPackage, firmware.Unchanged, firmware.Changed,
	}, classifications(records))

	require.Nil(t, records[0].OldHash)
	require.Equal(t, int64(len("brand new")), records[0].Size)
	require.Zero(t, records[1].Size)
	require.Empty(t, records[1].Source)
	require.Equal(t, records[2].OldHash, records[2].NewHash)
	require.NotEqual(t, records[3].OldHash, records[3].NewHash)
	require.Equal(t, 2, records.Pending())
}

// TestCompare_Deterministic repeats the comparison on unchanged inputs.
func TestCompare_Deterministic(t *testing.T) {
	t.Parallel()

	staging, target := t.TempDir(), t.TempDir()
	staged := map[string]firmware.StagedFile{"a.bin": stageFile(t, staging, "a.bin", "a")}
	manifest := firmware.Manifest{"a.bin", "b.bin"}

	first, err := Compare(manifest, staged, target)
	require.NoError(t, err)

	for range 5 {
		again, err := Compare(manifest, staged, target)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

// TestCompare_ThreeEntryScenario is the unchanged / changed / not-in-package case.
func TestCompare_ThreeEntryScenario(t *testing.T) {
	t.Parallel()

	staging, target := t.TempDir(), t.TempDir()
	staged := map[string]firmware.StagedFile{
		"vendor_desc.bin": stageFile(t, staging, "vendor_desc.bin", "desc"),
		"ipts_fw.bin":     stageFile(t, staging, "ipts_fw.bin", "fw v2"),
	}

	require.NoError(t, os.WriteFile(filepath.Join(target, "vendor_desc.bin"), []byte("desc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(target, "ipts_fw.bin"), []byte("fw v1"), 0o644))

	records, err := Compare(firmware.Manifest{"vendor_desc.bin", "ipts_fw.bin", "intel_desc.bin"}, staged, target)
	require.NoError(t, err)
	require.Equal(t, []firmware.Classification{
		firmware.Unchanged, firmware.Changed, firmware.NotInPackage,
	}, classifications(records))
	require.False(t, records.UpToDate())
}

// TestCompare_InstalledDirectory refuses to classify a directory sitting at a firmware path.
func TestCompare_InstalledDirectory(t *testing.T) {
	t.Parallel()

	staging, target := t.TempDir(), t.TempDir()
	staged := map[string]firmware.StagedFile{"a.bin": stageFile(t, staging, "a.bin", "a")}
	require.NoError(t, os.Mkdir(filepath.Join(target, "a.bin"), 0o755))

	_, err := Compare(firmware.Manifest{"a.bin"}, staged, target)
	require.ErrorIs(t, err, errNotRegular)
}

// TestCompare_MissingTarget treats a target that does not exist yet as empty.
func TestCompare_MissingTarget(t *testing.T) {
	t.Parallel()

	staging := t.TempDir()
	staged := map[string]firmware.StagedFile{"a.bin": stageFile(t, staging, "a.bin", "a")}

	records, err := Compare(firmware.Manifest{"a.bin"}, staged, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	require.Equal(t, firmware.New, records[0].Classification)
}
