// Package diff classifies staged firmware files against an install target.
package diff

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/fwsync/internal/domain/firmware"
)

// errNotRegular is returned when the install target holds something other than a file at a firmware path.
var errNotRegular = errors.New("installed path is not a regular file")

// Compare returns one record per manifest entry, in manifest order.
// staged maps manifest names to staged files; entries without one are not in the package.
func Compare(manifest firmware.Manifest, staged map[string]firmware.StagedFile, targetDir string) (firmware.Records, error) {
	records := make(firmware.Records, 0, len(manifest))

	for _, name := range manifest {
		record, err := compareEntry(name, staged, targetDir)
		if err != nil {
			return nil, fmt.Errorf("compare %s: %w", name, err)
		}

		records = append(records, record)
	}

	return records, nil
}

func compareEntry(name string, staged map[string]firmware.StagedFile, targetDir string) (firmware.Record, error) {
	record := firmware.Record{Name: name}

	file, ok := staged[name]
	if !ok {
		record.Classification = firmware.NotInPackage
		return record, nil
	}

	record.Size = file.Size
	record.NewHash = file.Hash
	record.Source = file.Path

	oldHash, err := installedChecksum(filepath.Join(targetDir, name))
	if err != nil {
		return record, err
	}

	record.OldHash = oldHash

	switch {
	case oldHash == nil:
		record.Classification = firmware.New
	case bytes.Equal(oldHash, file.Hash):
		record.Classification = firmware.Unchanged
	default:
		record.Classification = firmware.Changed
	}

	return record, nil
}

// installedChecksum hashes the installed file. A missing file yields nil.
func installedChecksum(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, errNotRegular)
	}

	return firmware.FileChecksum(path)
}
