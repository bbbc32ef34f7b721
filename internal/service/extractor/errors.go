package extractor

import (
	"errors"
	"fmt"
)

// Stage names a step of the extraction pipeline.
type Stage string

const (
	// StageOuter unwraps the outer archive to find the bootstrapper.
	StageOuter Stage = "outer"
	// StageBootstrapper extracts the bootstrapper and probes the appended container length.
	StageBootstrapper Stage = "bootstrapper"
	// StageContainer carves the appended container and pulls the installer package out of it.
	StageContainer Stage = "container"
	// StagePackage unpacks the installer package with its original file names.
	StagePackage Stage = "package"
)

var (
	// ErrToolMissing is returned by Available when an external tool is not installed.
	ErrToolMissing = errors.New("external tool not found")
	// ErrNoBootstrapperFound means the outer archive holds no bootstrapper executable.
	ErrNoBootstrapperFound = errors.New("no bootstrapper executable found")
	// ErrNoAppendedContainer means the bootstrapper has no usable trailing container.
	ErrNoAppendedContainer = errors.New("no appended container")
	// ErrNoInstallerPackage means the container did not yield exactly one installer package.
	ErrNoInstallerPackage = errors.New("no installer package")
	// ErrPackageExtractionFailed means the installer package could not be unpacked.
	ErrPackageExtractionFailed = errors.New("package extraction failed")
)

// StageError ties an extraction failure to the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("extract %s stage: %v", e.Stage, e.Err)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *StageError) Unwrap() error {
	return e.Err
}
