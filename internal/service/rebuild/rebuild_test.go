package rebuild

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func requireLinuxTool(t *testing.T, name string) {
	t.Helper()

	if runtime.GOOS != "linux" {
		t.Skip("rebuild only runs on linux")
	}

	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

// TestCommand_Trigger runs a command that succeeds and one that fails.
func TestCommand_Trigger(t *testing.T) {
	t.Parallel()
	requireLinuxTool(t, "true")
	requireLinuxTool(t, "false")

	require.NoError(t, NewCommand([]string{"true"}, time.Second).Trigger(context.Background()))
	require.Error(t, NewCommand([]string{"false"}, time.Second).Trigger(context.Background()))
}

// TestCommand_Empty rejects a command without a program.
func TestCommand_Empty(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" {
		t.Skip("rebuild only runs on linux")
	}

	require.ErrorIs(t, NewCommand(nil, 0).Trigger(context.Background()), ErrEmptyCommand)
}

// TestCommand_String joins the argv for logging.
func TestCommand_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "update-initramfs -u", NewCommand([]string{"update-initramfs", "-u"}, 0).String())
}
