package synchronizer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/fwsync/internal/domain/firmware"
)

var errUnexpectedClassification = errors.New("record does not need installation")

// install writes the staged file for record into targetDir. The final path
// only ever changes by rename, so it holds either the old or the new content.
func (s *Synchronizer) install(targetDir string, record firmware.Record) error {
	destination := filepath.Join(targetDir, record.Name)

	var err error

	switch record.Classification {
	case firmware.Changed:
		err = s.replace(record, destination)
	case firmware.New:
		err = s.create(record, destination)
	default:
		err = fmt.Errorf("%s: %w", record.Classification, errUnexpectedClassification)
	}

	if err != nil {
		return err
	}

	return s.setOwnership(destination)
}

// replace swaps an existing file through go-update, which verifies the checksum
// of the new bytes before moving them into place.
func (s *Synchronizer) replace(record firmware.Record, destination string) error {
	data, err := os.ReadFile(filepath.Clean(record.Source))
	if err != nil {
		return err
	}

	options := goupdate.Options{
		TargetPath: destination,
		TargetMode: firmware.FileMode,
		Checksum:   record.NewHash,
		Hash:       firmware.ChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	// go-update keeps the previous file next to the target on some platforms.
	oldFileName := filepath.Join(filepath.Dir(destination), "."+filepath.Base(destination)+".old")
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return os.Chmod(destination, firmware.FileMode)
}

// create writes a file that does not exist yet through a temporary sibling.
func (s *Synchronizer) create(record firmware.Record, destination string) error {
	in, err := os.Open(filepath.Clean(record.Source))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	temp, err := os.CreateTemp(filepath.Dir(destination), "."+filepath.Base(destination)+".new-*")
	if err != nil {
		return err
	}

	tempName := temp.Name()

	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tempName)
	}()

	if _, err = io.Copy(temp, in); err != nil {
		_ = temp.Close()
		return err
	}

	if err = temp.Sync(); err != nil {
		_ = temp.Close()
		return err
	}

	if err = temp.Close(); err != nil {
		return err
	}

	if err = os.Chmod(tempName, firmware.FileMode); err != nil {
		return err
	}

	return os.Rename(tempName, destination)
}

func (s *Synchronizer) setOwnership(path string) error {
	if !s.opts.ChangeOwner {
		return nil
	}

	if err := os.Chown(path, s.opts.OwnerUID, s.opts.OwnerGID); err != nil {
		return fmt.Errorf("set owner: %w", err)
	}

	return nil
}
