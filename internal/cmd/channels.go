package cmd

import (
	"github.com/spf13/cobra"

	"github.com/trendrelay/trendrelay/internal/output"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List configured channels and their rate limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd, output.FormatTable)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		rendered, err := output.RenderChannels(format, channelRows(cfg))
		if err != nil {
			return err
		}
		return writeOutput(cmd, rendered)
	},
}

func init() {
	rootCmd.AddCommand(channelsCmd)
	addOutputFlags(channelsCmd, output.FormatTable)
}
