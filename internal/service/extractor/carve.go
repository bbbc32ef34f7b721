package extractor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// carvedFileMode is used for intermediate files inside the workspace.
const carvedFileMode os.FileMode = 0o600

var errInvalidBlockSize = errors.New("block size must be positive")

// CarveTail copies the last length bytes of src into a new file dst and
// returns the number of bytes written. The source is streamed in blockSize
// reads: whole blocks before the offset are skipped, the remainder of the last
// partial block is read and discarded, then the tail is copied block by block.
func CarveTail(src, dst string, length int64, blockSize int) (int64, error) {
	if blockSize <= 0 {
		return 0, errInvalidBlockSize
	}

	if length <= 0 {
		return 0, fmt.Errorf("tail length %d: %w", length, ErrNoAppendedContainer)
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	if length > info.Size() {
		return 0, fmt.Errorf("tail length %d exceeds file size %d: %w", length, info.Size(), ErrNoAppendedContainer)
	}

	var (
		block      = int64(blockSize)
		offset     = info.Size() - length
		skipBlocks = offset / block
		partial    = offset % block
	)

	if _, err = in.Seek(skipBlocks*block, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek to block %d: %w", skipBlocks, err)
	}

	if _, err = io.CopyN(io.Discard, in, partial); err != nil {
		return 0, fmt.Errorf("read partial block: %w", err)
	}

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_EXCL|os.O_WRONLY, carvedFileMode)
	if err != nil {
		return 0, err
	}

	// Hide ReadFrom so copying really goes through the block-sized buffer.
	written, err := io.CopyBuffer(struct{ io.Writer }{out}, io.LimitReader(in, length), make([]byte, blockSize))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return written, fmt.Errorf("copy appended container: %w", err)
	}

	if written != length {
		return written, fmt.Errorf("carved %d of %d bytes: %w", written, length, ErrNoAppendedContainer)
	}

	return written, nil
}
