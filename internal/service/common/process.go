//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"os"

	"github.com/mitchellh/go-ps"
)

// IsPrivileged reports whether the process runs as root.
func IsPrivileged() bool {
	return os.Geteuid() == 0
}

// OtherInstances returns the PIDs of processes named executable, excluding this one.
func OtherInstances(executable string) ([]int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, err
	}

	thisProcessID := os.Getpid()

	var pids []int

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != executable {
			continue
		}

		pids = append(pids, process.Pid())
	}

	return pids, nil
}
