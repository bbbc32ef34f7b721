// Package common holds host helpers shared by the services: who is running
// the tool, whether it runs with root privileges, and whether another copy of
// it is already running.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
