package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/fwsync/internal/config"
	"github.com/oshokin/fwsync/internal/domain/firmware"
	"github.com/oshokin/fwsync/internal/logger"
	"github.com/oshokin/fwsync/internal/service/fwsync"
	"github.com/oshokin/fwsync/internal/version"
)

// errUnknownLogLevel is returned for an unsupported --log-level value.
var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum level written to stderr.
	logLevel string
	// apply installs the changes instead of only reporting them.
	apply bool

	// outcome of the sync, nil when a subcommand or help ran instead.
	outcome *firmware.Outcome

	// rootCmd represents the base command for synchronizing touch firmware.
	rootCmd = &cobra.Command{
		Use:   "fwsync <device-id> <package>",
		Short: "Extract touch firmware from a vendor driver package and install it",
		Long: `Unwraps a vendor driver package (archive or installer executable, local path or URL),
picks the touch firmware files out of it and compares them with the firmware installed
for the device.

Without --apply the run only reports what would change. With --apply the target
directory is backed up, changed files are replaced and the initramfs is rebuilt when
the main firmware image changed.

Exit status: 0 applied, 1 error, 2 already up to date, 3 changes pending.`,
		Args:         cobra.ExactArgs(2), //nolint:mnd // Device identifier and package.
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%q: %w", logLevel, errUnknownLogLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &fwsync.Options{
				ConfigPath: configPath,
				DeviceID:   args[0],
				Source:     args[1],
				Apply:      apply,
			}

			result, err := fwsync.Run(ctx, options)
			outcome = &result

			return err
		},
	}
)

// Execute runs the fwsync CLI and exits with the status of the outcome.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(targetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(firmware.ExitError)
	}

	if outcome != nil {
		os.Exit(outcome.ExitCode())
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "path to configuration file (default "+config.DefaultConfigFilename+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.Flags().BoolVar(&apply, "apply", false, "install changes instead of reporting them")
}
