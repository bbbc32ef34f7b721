// Package firmware holds the fixed data the rest of fwsync works with: the
// manifest of firmware file names, the high-impact subset, the set of
// extensions that never belong in an install target, and the value types that
// flow between the locator, the diff engine and the synchronizer.
package firmware
