package synchronizer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// backupTimeLayout is appended to the target name, e.g. MSHW0078.backup-2026-10-17-150405.
const backupTimeLayout = "2006-01-02-150405"

// maxBackupSuffix bounds the search for a free backup name within one second.
const maxBackupSuffix = 100

var errNoBackupName = errors.New("no free backup name")

// Backup copies targetDir recursively to a new sibling directory named after
// it and the timestamp, and returns its path. The backup is created with an
// exclusive mkdir, so an existing snapshot is never written into.
func Backup(targetDir string, at time.Time) (string, error) {
	source := filepath.Clean(targetDir)

	info, err := os.Stat(source)
	if err != nil {
		return "", err
	}

	base := fmt.Sprintf("%s.backup-%s", source, at.Format(backupTimeLayout))

	backupPath, err := reserveDir(base, info.Mode().Perm())
	if err != nil {
		return "", err
	}

	if err = copyTree(source, backupPath); err != nil {
		return backupPath, err
	}

	return backupPath, nil
}

// reserveDir creates base, or base-1, base-2... when taken.
func reserveDir(base string, perm fs.FileMode) (string, error) {
	for n := range maxBackupSuffix {
		candidate := base
		if n > 0 {
			candidate = fmt.Sprintf("%s-%d", base, n)
		}

		err := os.Mkdir(candidate, perm)
		if err == nil {
			return candidate, nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}

	return "", fmt.Errorf("%s: %w", base, errNoBackupName)
}

// copyTree copies the contents of src into the existing directory dst.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		if rel == "." {
			return nil
		}

		target := filepath.Join(dst, rel)

		info, err := entry.Info()
		if err != nil {
			return err
		}

		switch {
		case entry.IsDir():
			return os.Mkdir(target, info.Mode().Perm())
		case entry.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}

			return os.Symlink(link, target)
		case entry.Type().IsRegular():
			return copyFile(path, target, info)
		default:
			// Devices, sockets and pipes have no place in a firmware tree.
			return nil
		}
	})
}

func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	if err = out.Close(); err != nil {
		return err
	}

	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
