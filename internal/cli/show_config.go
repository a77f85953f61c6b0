// internal/cli/show_config.go
package microbench

import (
	"errors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwiater/microbench/internal/appconfig"
)

// showConfigCmd prints the merged configuration (flags > config file > defaults).
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings ensuring that the JSON configs are loaded properly and overridden by flags accordingly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg == nil {
			return errors.New("configuration is not initialized")
		}
		appconfig.ShowConfig(cmd.OutOrStdout(), *cfg, !color.NoColor)
		return nil
	},
}

func init() {
	showCmd.AddCommand(showConfigCmd)
}
