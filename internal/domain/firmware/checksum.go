package firmware

import (
	"crypto"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	// Registers SHA-512 for ChecksumFunction.
	_ "crypto/sha512"
)

// ChecksumFunction hashes staged and installed files.
const ChecksumFunction crypto.Hash = crypto.SHA512

var errHashUnavailable = errors.New("hash function unavailable")

// FileChecksum streams the file at path through ChecksumFunction.
func FileChecksum(path string) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum %s: %w", path, errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := ChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("checksum %s: %w", path, err)
	}

	return hasher.Sum(nil), nil
}
