package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adityatiwari12/chat-with-sql/internal/config"
	"github.com/adityatiwari12/chat-with-sql/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or save the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as JSON",
	RunE: func(_ *cobra.Command, _ []string) error {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.Wrap(err, errors.ErrTypeConfig, "failed to render configuration")
		}

		fmt.Println(string(data))
		fmt.Printf("\nConfig file: %s\n", config.Path())

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Long: `Init writes the currently effective configuration (defaults merged
with environment variables and flags) to the config file, so it can be
edited in place.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := config.SaveConfig(cfg); err != nil {
			return errors.Wrap(err, errors.ErrTypeConfig, "failed to save configuration")
		}

		fmt.Printf("Wrote %s\n", config.Path())

		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
