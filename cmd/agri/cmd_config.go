package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/agri-advisor/internal/model"
)

// configCmd groups the configuration commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or save the client configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the effective configuration to the config file",
	Long: `Writes the configuration in effect (file, .env, AGRI_* variables and
flags such as --api) to the config file so later runs pick it up.`,
	Args: cobra.NoArgs,
	RunE: runConfigSave,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSaveCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config:        %s\n", configPath)
	fmt.Fprintf(out, "api:           %s\n", cfg.ResolvedBaseURL())
	fmt.Fprintf(out, "timeout:       %s\n", cfg.Timeout())
	fmt.Fprintf(out, "poll interval: %s\n", cfg.PollInterval())
	fmt.Fprintf(out, "cache:         %s\n", cfg.Cache.Path)
	fmt.Fprintf(out, "log:           %s (%s)\n", cfg.Log.File, cfg.Log.Level)
	return nil
}

func runConfigSave(cmd *cobra.Command, args []string) error {
	if err := model.SaveConfig(configPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved configuration to %s\n", configPath)
	return nil
}
