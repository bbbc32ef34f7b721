// Package synchronizer applies classified firmware changes to an install target.
//
// A run always follows the same order: make sure the target exists, copy the
// whole target to a timestamped sibling backup, install every new or changed
// file atomically, prune platform-irrelevant files from the target, and
// finally trigger the dependent rebuild once if a high-impact file was
// installed. The backup is taken before the first write and is never restored
// automatically.
package synchronizer
