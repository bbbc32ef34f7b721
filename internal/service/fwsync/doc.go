// Package fwsync runs one firmware synchronization: resolve the install target,
// unwrap the vendor package, stage the manifest files, diff them against the
// installed tree and, when asked to, install the changes.
package fwsync
