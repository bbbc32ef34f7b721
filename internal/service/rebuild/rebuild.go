// Package rebuild runs the dependent system rebuild after early-boot firmware changed.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

var (
	// ErrUnsupportedOS indicates the rebuild step only exists on Linux.
	ErrUnsupportedOS = errors.New("unsupported operating system")
	// ErrEmptyCommand is returned when no program was configured.
	ErrEmptyCommand = errors.New("rebuild command is empty")
)

// Command is an external rebuild command such as `update-initramfs -u`.
type Command struct {
	argv    []string
	timeout time.Duration
}

// NewCommand creates a rebuild trigger for argv. A non-positive timeout disables the limit.
func NewCommand(argv []string, timeout time.Duration) *Command {
	return &Command{
		argv:    append([]string(nil), argv...),
		timeout: timeout,
	}
}

// String returns the command line for logs.
func (c *Command) String() string {
	return strings.Join(c.argv, " ")
}

// Trigger runs the command and waits for it. The command gets no arguments
// beyond the configured ones; it works from the current system state.
func (c *Command) Trigger(ctx context.Context) error {
	if !strings.Contains(strings.ToLower(runtime.GOOS), "linux") {
		return fmt.Errorf("%s: %w", runtime.GOOS, ErrUnsupportedOS)
	}

	if len(c.argv) == 0 || c.argv[0] == "" {
		return ErrEmptyCommand
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	//nolint:gosec // The command comes from the operator's configuration.
	output, err := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", c, err, strings.TrimSpace(string(output)))
	}

	return nil
}
