// Package target maps device identifiers to firmware install directories.
package target

import (
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
)

// firmwareRoot is where the kernel driver looks up per-device touch firmware.
const firmwareRoot = "/lib/firmware/intel/ipts"

// ErrUnknownDevice is returned when an identifier has no install path.
var ErrUnknownDevice = errors.New("unknown device identifier")

// Resolver is a static identifier to install path table.
type Resolver struct {
	targets map[string]string
}

// builtinDevices lists the identifiers the driver bundles are published for.
func builtinDevices() []string {
	return []string{
		"MSHW0076",
		"MSHW0078",
		"MSHW0079",
		"MSHW0101",
		"MSHW0102",
		"MSHW0103",
		"MSHW0137",
	}
}

// NewResolver builds a resolver from the built-in table with overrides applied on top.
func NewResolver(overrides map[string]string) *Resolver {
	targets := make(map[string]string, len(builtinDevices())+len(overrides))

	for _, id := range builtinDevices() {
		targets[id] = path.Join(firmwareRoot, id)
	}

	for id, dir := range overrides {
		targets[normalize(id)] = dir
	}

	return &Resolver{targets: targets}
}

// Resolve returns the install directory for id. Identifiers are case-insensitive.
func (r *Resolver) Resolve(id string) (string, error) {
	dir, ok := r.targets[normalize(id)]
	if !ok {
		return "", fmt.Errorf("%q: %w", id, ErrUnknownDevice)
	}

	return dir, nil
}

// Devices returns every known identifier in sorted order.
func (r *Resolver) Devices() []string {
	return slices.Sorted(maps.Keys(r.targets))
}

func normalize(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
