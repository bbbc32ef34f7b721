package firmware

// Classification is the diff result for one manifest entry.
type Classification int

const (
	// NotInPackage means the package did not contain the entry; the installed copy is left alone.
	NotInPackage Classification = iota
	// New means the package has the entry and the target does not.
	New
	// Unchanged means both copies hash the same.
	Unchanged
	// Changed means both copies exist and differ.
	Changed
)

// String returns the label used in reports and logs.
func (c Classification) String() string {
	switch c {
	case NotInPackage:
		return "not-in-package"
	case New:
		return "new"
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	default:
		return "unknown"
	}
}

// NeedsInstall reports whether the synchronizer has to copy the entry.
func (c Classification) NeedsInstall() bool {
	return c == New || c == Changed
}

// StagedFile is a manifest entry recovered from the package and copied into the staging area.
type StagedFile struct {
	// Name is the manifest name, not the name found in the package.
	Name string
	// Path is the absolute path inside the staging directory.
	Path string
	// Size is the file size in bytes.
	Size int64
	// Hash is the content checksum.
	Hash []byte
}

// Record is the diff result for a single manifest entry.
type Record struct {
	// Name is the manifest entry.
	Name string
	// Classification is what the synchronizer should do with it.
	Classification Classification
	// Size is the staged file size, zero when the entry is not in the package.
	Size int64
	// OldHash is the installed file checksum, nil when nothing is installed.
	OldHash []byte
	// NewHash is the staged file checksum, nil when the entry is not in the package.
	NewHash []byte
	// Source is the staged file path, empty when the entry is not in the package.
	Source string
}

// Records is an ordered diff result.
type Records []Record

// Pending returns the number of records that need installation.
func (r Records) Pending() int {
	count := 0

	for _, record := range r {
		if record.Classification.NeedsInstall() {
			count++
		}
	}

	return count
}

// UpToDate reports whether there is nothing to install.
func (r Records) UpToDate() bool {
	return r.Pending() == 0
}

// Count returns the number of records with the given classification.
func (r Records) Count(c Classification) int {
	count := 0

	for _, record := range r {
		if record.Classification == c {
			count++
		}
	}

	return count
}
