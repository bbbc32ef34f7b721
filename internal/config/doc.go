// Package config defines the fwsync settings file and helpers to load,
// validate and save it in YAML format.
//
// The file is optional: Default returns the built-in settings, and Validate
// fills any field left empty in a partial file.
package config
