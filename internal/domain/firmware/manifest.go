package firmware

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// FileMode is applied to every installed firmware file. Firmware is data, never executable.
	FileMode os.FileMode = 0o644

	// DirMode is used when the install target has to be created.
	DirMode os.FileMode = 0o755
)

// Manifest is the ordered list of firmware file names fwsync recognizes.
// The order is also the display and install order.
type Manifest []string

// DefaultManifest returns the touch controller firmware set shipped in the vendor driver bundle.
func DefaultManifest() Manifest {
	return Manifest{
		"iaPreemptPolicy.bin",
		"intel_desc.bin",
		"ipts_fw.bin",
		"ipts_fw_config.bin",
		"vendor_desc.bin",
		"vendor_kernel.bin",
	}
}

// highImpact lists the entries the initramfs embeds; changing them needs a rebuild.
//
//nolint:gochecknoglobals // Immutable lookup table.
var highImpact = map[string]struct{}{
	"ipts_fw.bin":        {},
	"ipts_fw_config.bin": {},
}

// irrelevantExtensions are auxiliary driver artifacts that have no business in a firmware directory.
//
//nolint:gochecknoglobals // Immutable lookup table.
var irrelevantExtensions = map[string]struct{}{
	".dll":      {},
	".exe":      {},
	".sys":      {},
	".cat":      {},
	".inf":      {},
	".pnf":      {},
	".man":      {},
	".manifest": {},
	".xml":      {},
	".txt":      {},
}

// Contains reports whether name is a manifest entry, compared case-insensitively.
func (m Manifest) Contains(name string) bool {
	for _, entry := range m {
		if strings.EqualFold(entry, name) {
			return true
		}
	}

	return false
}

// IsHighImpact reports whether a change to name requires the dependent rebuild.
func IsHighImpact(name string) bool {
	_, ok := highImpact[name]

	return ok
}

// HighImpactEntries returns the high-impact subset of m in manifest order.
func (m Manifest) HighImpactEntries() []string {
	result := make([]string, 0, len(highImpact))

	for _, entry := range m {
		if IsHighImpact(entry) {
			result = append(result, entry)
		}
	}

	return result
}

// IsIrrelevant reports whether the file name carries a platform-irrelevant extension.
func IsIrrelevant(name string) bool {
	_, ok := irrelevantExtensions[strings.ToLower(filepath.Ext(name))]

	return ok
}
