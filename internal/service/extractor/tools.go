package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Archiver is a generic archive extractor.
type Archiver interface {
	// Available reports ErrToolMissing when the archiver cannot run.
	Available() error
	// Extract unpacks archive into destDir. The result carries the length of
	// data trailing the recognized archive structure, zero when none was reported.
	Extract(ctx context.Context, archive, destDir string) (*Extraction, error)
}

// Extraction is what the archiver learned while unpacking.
type Extraction struct {
	// TailSize is the byte length of the region after the archive's own directory.
	TailSize int64
}

// PackageUnpacker extracts a structured installer package keeping embedded file names.
type PackageUnpacker interface {
	// Available reports ErrToolMissing when the unpacker cannot run.
	Available() error
	// Unpack writes the package contents under destDir.
	Unpack(ctx context.Context, pkg, destDir string) error
}

// sevenZipWarningExitCode is returned for non-fatal problems, such as data after the payload.
const sevenZipWarningExitCode = 1

// outputExcerptLimit keeps tool output in error messages readable.
const outputExcerptLimit = 512

// tailSizeRegexp matches the archive property 7-Zip prints for data past the archive end.
var tailSizeRegexp = regexp.MustCompile(`(?m)^Tail Size = (\d+)\s*$`)

// SevenZip drives the 7-Zip command line tool.
type SevenZip struct {
	binary  string
	timeout time.Duration
}

// NewSevenZip creates an Archiver backed by the given 7z binary.
func NewSevenZip(binary string, timeout time.Duration) *SevenZip {
	return &SevenZip{binary: binary, timeout: timeout}
}

// Available implements Archiver.
func (s *SevenZip) Available() error {
	return lookPath(s.binary)
}

// Extract implements Archiver. 7-Zip prints archive properties, including
// "Tail Size", while extracting, so one run both unpacks and probes the tail.
func (s *SevenZip) Extract(ctx context.Context, archive, destDir string) (*Extraction, error) {
	output, err := runTool(ctx, s.timeout, s.binary, "x", "-y", "-bd", "-o"+destDir, archive)
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != sevenZipWarningExitCode {
			return nil, fmt.Errorf("%s x %s: %w: %s", s.binary, archive, err, excerpt(output))
		}
	}

	tail, err := ParseTailSize(output)
	if err != nil {
		return nil, err
	}

	return &Extraction{TailSize: tail}, nil
}

// ParseTailSize extracts the first "Tail Size = N" value from 7-Zip output.
// Output without the property yields zero.
func ParseTailSize(output []byte) (int64, error) {
	match := tailSizeRegexp.FindSubmatch(output)
	if match == nil {
		return 0, nil
	}

	size, err := strconv.ParseInt(string(match[1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse tail size %q: %w", match[1], err)
	}

	return size, nil
}

// MSIExtract drives msitools' msiextract, which restores real file names and directories.
type MSIExtract struct {
	binary  string
	timeout time.Duration
}

// NewMSIExtract creates a PackageUnpacker backed by the given msiextract binary.
func NewMSIExtract(binary string, timeout time.Duration) *MSIExtract {
	return &MSIExtract{binary: binary, timeout: timeout}
}

// Available implements PackageUnpacker.
func (m *MSIExtract) Available() error {
	return lookPath(m.binary)
}

// Unpack implements PackageUnpacker.
func (m *MSIExtract) Unpack(ctx context.Context, pkg, destDir string) error {
	output, err := runTool(ctx, m.timeout, m.binary, "-C", destDir, pkg)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", m.binary, pkg, err, excerpt(output))
	}

	return nil
}

func lookPath(binary string) error {
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%s: %w", binary, ErrToolMissing)
	}

	return nil
}

// runTool runs binary with a timeout and returns the combined output.
func runTool(ctx context.Context, timeout time.Duration, binary string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var output bytes.Buffer

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()

	return output.Bytes(), err
}

func excerpt(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) > outputExcerptLimit {
		return "..." + text[len(text)-outputExcerptLimit:]
	}

	return text
}
