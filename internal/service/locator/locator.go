// Package locator finds manifest firmware files in an extracted package tree
// and copies them into a flat staging directory.
package locator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/fwsync/internal/domain/firmware"
	"github.com/oshokin/fwsync/internal/logger"
)

// stagedFileMode keeps staged copies read-only.
const stagedFileMode os.FileMode = 0o400

// ErrNoFirmwareFound is returned when no manifest entry exists in the tree.
var ErrNoFirmwareFound = errors.New("no firmware found in package")

// Staging is the set of firmware files recovered from a package.
type Staging struct {
	// Dir is the flat staging directory.
	Dir string
	// Files maps manifest names to their staged copies.
	Files map[string]firmware.StagedFile
	// Total is the manifest size.
	Total int
}

// Found returns how many manifest entries were staged.
func (s *Staging) Found() int {
	return len(s.Files)
}

// Complete reports whether every manifest entry was found.
func (s *Staging) Complete() bool {
	return s.Found() == s.Total
}

// Locate walks root in lexical order, matches file names case-insensitively
// against the manifest and copies the first match of each entry into stagingDir
// under its manifest name.
func Locate(ctx context.Context, root, stagingDir string, manifest firmware.Manifest) (*Staging, error) {
	matches, err := match(ctx, root, manifest)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("searched %s for %d files: %w", root, len(manifest), ErrNoFirmwareFound)
	}

	staging := &Staging{
		Dir:   stagingDir,
		Files: make(map[string]firmware.StagedFile, len(matches)),
		Total: len(manifest),
	}

	for _, name := range manifest {
		source, ok := matches[name]
		if !ok {
			continue
		}

		staged, err := stage(source, filepath.Join(stagingDir, name))
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}

		staged.Name = name
		staging.Files[name] = *staged

		logger.DebugKV(ctx, "Staged firmware file", "name", name, "source", source, "size", staged.Size)
	}

	if staging.Complete() {
		logger.InfoKV(ctx, "Located all firmware files", "found", staging.Found())
	} else {
		logger.WarnKV(ctx, "Package covers only part of the manifest",
			"found", staging.Found(), "total", staging.Total, "missing", missing(manifest, staging))
	}

	return staging, nil
}

// match returns manifest name -> first matching path.
func match(ctx context.Context, root string, manifest firmware.Manifest) (map[string]string, error) {
	wanted := make(map[string]string, len(manifest))
	for _, name := range manifest {
		wanted[strings.ToLower(name)] = name
	}

	matches := make(map[string]string, len(manifest))

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		name, ok := wanted[strings.ToLower(entry.Name())]
		if !ok {
			return nil
		}

		if first, seen := matches[name]; seen {
			logger.DebugKV(ctx, "Ignoring duplicate firmware file", "name", name, "kept", first, "ignored", path)
			return nil
		}

		matches[name] = path

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return matches, nil
}

// stage copies source to target and hashes the copy.
func stage(source, target string) (*firmware.StagedFile, error) {
	in, err := os.Open(filepath.Clean(source))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_EXCL|os.O_WRONLY, stagedFileMode)
	if err != nil {
		return nil, err
	}

	size, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return nil, err
	}

	hash, err := firmware.FileChecksum(target)
	if err != nil {
		return nil, err
	}

	return &firmware.StagedFile{
		Path: target,
		Size: size,
		Hash: hash,
	}, nil
}

func missing(manifest firmware.Manifest, staging *Staging) []string {
	var result []string

	for _, name := range manifest {
		if _, ok := staging.Files[name]; !ok {
			result = append(result, name)
		}
	}

	return result
}
