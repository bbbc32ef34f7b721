// Package integration runs fwsync end to end through its settings file and,
// when they are installed, the real archive tools.
package integration
