package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trendrelay/trendrelay/internal/config"
	"github.com/trendrelay/trendrelay/internal/output"
)

var configShowSecrets bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and environment
overrides are applied. Webhook keys and the admin token are masked unless
--show-secrets is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd, output.FormatYAML)
		if err != nil {
			return err
		}
		if format != output.FormatYAML && format != output.FormatJSON {
			return fmt.Errorf("unsupported output format for config: %s", format)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !configShowSecrets {
			cfg = cfg.Redacted()
		}

		rendered, err := output.Encode(format, cfg)
		if err != nil {
			return err
		}

		if format == output.FormatYAML {
			if used := viper.ConfigFileUsed(); used != "" {
				rendered = "# source: " + used + "\n" + rendered
			} else {
				rendered = "# no config file found (expected " + config.DefaultConfigPath() + ")\n" + rendered
			}
		}
		return writeOutput(cmd, rendered)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	addOutputFlags(configCmd, output.FormatYAML)
	configCmd.Flags().BoolVar(&configShowSecrets, "show-secrets", false, "print webhook keys and tokens unmasked")
}
