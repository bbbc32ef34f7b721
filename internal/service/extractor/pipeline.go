package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/fwsync/internal/logger"
)

const (
	// executableSignature opens every PE executable.
	executableSignature = "MZ"

	bootstrapperExtension = ".exe"
	packageExtension      = ".msi"

	carvedContainerName = "appended.bin"
)

// Options tune the pipeline.
type Options struct {
	// SearchDepth bounds the bootstrapper search in the outer archive.
	SearchDepth int
	// BlockSize is the read block size for carving.
	BlockSize int
}

// StageResult records what a stage produced.
type StageResult struct {
	Stage   Stage
	Dir     string
	Skipped bool
	Err     error
}

// Result is the outcome of a full extraction.
type Result struct {
	// Root contains every stage directory; search it recursively.
	Root string
	// PackageDir holds the unpacked installer package.
	PackageDir string
	// Stages lists the stages in execution order.
	Stages []StageResult
}

// artifact is handed from one stage to the next.
type artifact struct {
	path     string
	tailSize int64
}

// stageFunc turns the previous artifact into the next one, writing only into dir.
type stageFunc func(ctx context.Context, in artifact, dir string) (artifact, error)

type step struct {
	stage Stage
	dir   string
	run   stageFunc
	// skip reports whether the input already is what this stage would produce.
	skip func(in artifact) (bool, error)
}

// Extractor runs the four-stage unwrap.
type Extractor struct {
	archiver Archiver
	unpacker PackageUnpacker
	opts     Options
}

// New creates an Extractor.
func New(archiver Archiver, unpacker PackageUnpacker, opts Options) *Extractor {
	return &Extractor{
		archiver: archiver,
		unpacker: unpacker,
		opts:     opts,
	}
}

// CheckTools verifies every external tool before any stage runs.
func (e *Extractor) CheckTools() error {
	return errors.Join(e.archiver.Available(), e.unpacker.Available())
}

// Extract unwraps input into root, which must be an existing empty directory
// owned by the caller. On failure the returned error is a *StageError.
func (e *Extractor) Extract(ctx context.Context, input, root string) (*Result, error) {
	steps := []step{
		{stage: StageOuter, dir: "1-outer", run: e.unwrapOuter, skip: isExecutable},
		{stage: StageBootstrapper, dir: "2-bootstrapper", run: e.unwrapBootstrapper},
		{stage: StageContainer, dir: "3-container", run: e.extractContainer},
		{stage: StagePackage, dir: "4-package", run: e.unpackPackage},
	}

	result := &Result{Root: root}
	current := artifact{path: input}

	for _, s := range steps {
		stageCtx := logger.WithKV(ctx, "stage", string(s.stage))

		next, stageResult := e.runStep(stageCtx, s, current, root)
		result.Stages = append(result.Stages, stageResult)

		if stageResult.Err != nil {
			return result, &StageError{Stage: s.stage, Err: stageResult.Err}
		}

		current = next
	}

	result.PackageDir = current.path

	return result, nil
}

func (e *Extractor) runStep(ctx context.Context, s step, in artifact, root string) (artifact, StageResult) {
	stageResult := StageResult{Stage: s.stage}

	if s.skip != nil {
		skip, err := s.skip(in)
		if err != nil {
			stageResult.Err = err
			return in, stageResult
		}

		if skip {
			logger.Debug(ctx, "Input already at this layer, skipping stage")

			stageResult.Skipped = true

			return in, stageResult
		}
	}

	dir := filepath.Join(root, s.dir)
	if err := os.Mkdir(dir, workspaceDirMode); err != nil {
		stageResult.Err = fmt.Errorf("create stage dir: %w", err)
		return in, stageResult
	}

	stageResult.Dir = dir

	out, err := s.run(ctx, in, dir)
	if err != nil {
		stageResult.Err = err
		return in, stageResult
	}

	logger.DebugKV(ctx, "Stage finished", "dir", dir)

	return out, stageResult
}

// unwrapOuter extracts the outer archive and picks the first bootstrapper found.
func (e *Extractor) unwrapOuter(ctx context.Context, in artifact, dir string) (artifact, error) {
	if _, err := e.archiver.Extract(ctx, in.path, dir); err != nil {
		return artifact{}, err
	}

	bootstrapper, err := findFirst(dir, e.opts.SearchDepth, bootstrapperExtension)
	if err != nil {
		return artifact{}, err
	}

	if bootstrapper == "" {
		return artifact{}, fmt.Errorf("%s within depth %d: %w", filepath.Base(in.path), e.opts.SearchDepth, ErrNoBootstrapperFound)
	}

	logger.InfoKV(ctx, "Found bootstrapper", "path", bootstrapper)

	return artifact{path: bootstrapper}, nil
}

// unwrapBootstrapper extracts the prefix payloads and records the appended container length.
func (e *Extractor) unwrapBootstrapper(ctx context.Context, in artifact, dir string) (artifact, error) {
	extraction, err := e.archiver.Extract(ctx, in.path, dir)
	if err != nil {
		return artifact{}, err
	}

	if extraction == nil || extraction.TailSize <= 0 {
		return artifact{}, fmt.Errorf("%s: %w", filepath.Base(in.path), ErrNoAppendedContainer)
	}

	logger.InfoKV(ctx, "Bootstrapper has an appended container", "bytes", extraction.TailSize)

	return artifact{path: in.path, tailSize: extraction.TailSize}, nil
}

// extractContainer carves the appended container and runs two extraction
// passes: container to cabinet, cabinet to installer package.
func (e *Extractor) extractContainer(ctx context.Context, in artifact, dir string) (artifact, error) {
	carved := filepath.Join(dir, carvedContainerName)

	if _, err := CarveTail(in.path, carved, in.tailSize, e.opts.BlockSize); err != nil {
		return artifact{}, err
	}

	cabinetDir := filepath.Join(dir, "cabinet")
	if err := os.Mkdir(cabinetDir, workspaceDirMode); err != nil {
		return artifact{}, err
	}

	if _, err := e.archiver.Extract(ctx, carved, cabinetDir); err != nil {
		return artifact{}, err
	}

	cabinets, err := listFiles(cabinetDir)
	if err != nil {
		return artifact{}, err
	}

	if len(cabinets) == 0 {
		return artifact{}, fmt.Errorf("appended container is empty: %w", ErrNoInstallerPackage)
	}

	payloadDir := filepath.Join(dir, "payload")
	if err = os.Mkdir(payloadDir, workspaceDirMode); err != nil {
		return artifact{}, err
	}

	for i, cabinet := range cabinets {
		out := filepath.Join(payloadDir, fmt.Sprintf("%02d", i))
		if err = os.Mkdir(out, workspaceDirMode); err != nil {
			return artifact{}, err
		}

		// Non-archive members of the container are expected; only a failed pass is logged.
		if _, err = e.archiver.Extract(ctx, cabinet, out); err != nil {
			logger.DebugKV(ctx, "Container member is not an archive", "path", cabinet, "error", err)
		}
	}

	packages, err := findAll(payloadDir, packageExtension)
	if err != nil {
		return artifact{}, err
	}

	if len(packages) != 1 {
		return artifact{}, fmt.Errorf("found %d candidates: %w", len(packages), ErrNoInstallerPackage)
	}

	logger.InfoKV(ctx, "Found installer package", "path", packages[0])

	return artifact{path: packages[0]}, nil
}

// unpackPackage expands the installer package with real file names.
func (e *Extractor) unpackPackage(ctx context.Context, in artifact, dir string) (artifact, error) {
	if err := e.unpacker.Unpack(ctx, in.path, dir); err != nil {
		return artifact{}, fmt.Errorf("%w: %w", ErrPackageExtractionFailed, err)
	}

	files, err := findAll(dir, "")
	if err != nil {
		return artifact{}, err
	}

	if len(files) == 0 {
		return artifact{}, fmt.Errorf("%s produced no files: %w", filepath.Base(in.path), ErrPackageExtractionFailed)
	}

	logger.InfoKV(ctx, "Installer package unpacked", "files", len(files))

	return artifact{path: dir}, nil
}

// isExecutable reports whether the file starts with the PE signature.
func isExecutable(in artifact) (bool, error) {
	file, err := os.Open(filepath.Clean(in.path))
	if err != nil {
		return false, err
	}

	defer func() {
		_ = file.Close()
	}()

	header := make([]byte, len(executableSignature))
	if _, err = io.ReadFull(file, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}

		return false, err
	}

	return string(header) == executableSignature, nil
}

// findFirst returns the first regular file with the extension in lexical walk
// order, looking at most maxDepth directories deep. Empty means not found.
func findFirst(root string, maxDepth int, extension string) (string, error) {
	var found string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if path != root && depth(root, path) >= maxDepth {
				return filepath.SkipDir
			}

			return nil
		}

		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), extension) {
			found = path
			return filepath.SkipAll
		}

		return nil
	})

	return found, err
}

// findAll returns every regular file under root with the extension, any when empty.
func findAll(root, extension string) ([]string, error) {
	var found []string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		if extension == "" || strings.EqualFold(filepath.Ext(path), extension) {
			found = append(found, path)
		}

		return nil
	})

	return found, err
}

// listFiles returns the regular files under root in lexical order.
func listFiles(root string) ([]string, error) {
	return findAll(root, "")
}

// depth counts path separators between root and path.
func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}

	return strings.Count(rel, string(filepath.Separator)) + 1
}
