package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"imgfetch/pkg/config"
	"imgfetch/pkg/notify"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage imgfetch configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IMGFETCH_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write the default configuration with every available option.

The file is created as 'imgfetch.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "imgfetch.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	fmt.Println(notify.Green("Configuration file created: " + path))
	fmt.Println("\nNext steps:")
	fmt.Println("1. Point server.base_url at your image server")
	fmt.Println("2. Run 'imgfetch config validate --config " + path + "'")
	fmt.Println("3. Start fetching with 'imgfetch download <query>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	fmt.Println(notify.Magenta("Current Configuration"))
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		return err
	}

	fmt.Println(notify.Green("Configuration is valid"))
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Server: %s (timeout %s)\n", cfg.Server.BaseURL, cfg.Server.Timeout)
	fmt.Printf("  Batch: %d images every %s, at most %d\n", cfg.Batch.DefaultCount, cfg.Batch.Cadence, cfg.Batch.MaxCount)
	fmt.Printf("  Page size: %d\n", cfg.Search.PageSize)
	fmt.Printf("  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
