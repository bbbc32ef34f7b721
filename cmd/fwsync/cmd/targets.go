package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/fwsync/internal/config"
	"github.com/oshokin/fwsync/internal/report"
	"github.com/oshokin/fwsync/internal/service/target"
)

// targetsCmd lists the known devices and their install directories.
var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List supported device identifiers and install paths",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		resolver := target.NewResolver(cfg.Targets)
		printer := report.NewPrinter(cmd.OutOrStdout(), false)
		printer.Targets(resolver.Devices(), resolver.Resolve)

		return nil
	},
}
