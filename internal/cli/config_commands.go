// Package cli provides configuration management commands.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ricordi-app/ricordi-sync/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ricordi-sync configuration",
		Long: `Configuration management commands.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup.

The configuration is saved to ~/.config/ricordi/config with 0600
permissions, since it holds the API token.

Use --force to overwrite an existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := cfgFile
			if configPath == "" {
				p, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = p
			}

			if !force {
				if _, err := os.Stat(configPath); err == nil {
					fmt.Printf("Configuration already exists at: %s\n", configPath)
					fmt.Println("Use --force to overwrite or 'config show' to view it.")
					return nil
				}
			}

			fmt.Println("Ricordi Configuration Setup")
			fmt.Println("===========================")
			fmt.Println()

			reader := bufio.NewReader(os.Stdin)

			var baseURL string
			for baseURL == "" {
				fmt.Print("Server base URL (required): ")
				input, _ := reader.ReadString('\n')
				baseURL = strings.TrimSpace(input)
				if baseURL == "" {
					fmt.Println("  Error: base URL is required")
				}
			}

			var token string
			for token == "" {
				fmt.Print("API token (required): ")
				input, _ := reader.ReadString('\n')
				token = strings.TrimSpace(input)
				if token == "" {
					fmt.Println("  Error: API token is required")
				}
			}

			cfg := config.New()
			cfg.BaseURL = baseURL
			cfg.APIToken = token

			fmt.Println()
			fmt.Println("Settings (press Enter for defaults)")
			fmt.Println("-----------------------------------")

			cfg.Upload.MaxConcurrent = promptInt(reader,
				"Concurrent uploads", cfg.Upload.MaxConcurrent)
			cfg.Poll.IntervalSeconds = promptInt(reader,
				"Poll interval (seconds)", cfg.Poll.IntervalSeconds)
			cfg.Refresh.IntervalSeconds = promptInt(reader,
				"Refresh interval (seconds)", cfg.Refresh.IntervalSeconds)

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if err := config.Save(cfg, configPath); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Println()
			fmt.Printf("Configuration saved to: %s\n", configPath)
			fmt.Println()
			fmt.Println("Check it with: ricordi-sync status")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// promptInt reads an integer with a default.
func promptInt(reader *bufio.Reader, label string, def int) int {
	fmt.Printf("%s [%d]: ", label, def)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	if v, err := strconv.Atoi(input); err == nil && v > 0 {
		return v
	}
	return def
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the merged configuration from:
  1. Configuration file (~/.config/ricordi/config)
  2. Environment variables (RICORDI_API_TOKEN, RICORDI_API_URL)
  3. Command-line flags (--token, --api-url)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Println("Current Configuration")
			fmt.Println("=====================")
			fmt.Println()

			fmt.Println("Server:")
			fmt.Printf("  Base URL:  %s\n", orUnset(cfg.BaseURL))
			if cfg.APIToken != "" {
				// Never echo any portion of the token
				fmt.Printf("  API Token: <set (%d chars)>\n", len(cfg.APIToken))
			} else {
				fmt.Println("  API Token: <not set>")
			}
			fmt.Println()

			fmt.Println("Upload:")
			fmt.Printf("  Max Concurrent:    %d\n", cfg.Upload.MaxConcurrent)
			fmt.Printf("  Success Retention: %ds\n", cfg.Upload.SuccessRetentionSeconds)
			fmt.Println()

			fmt.Println("Poll:")
			fmt.Printf("  Interval:    %ds\n", cfg.Poll.IntervalSeconds)
			fmt.Printf("  Max Retries: %d\n", cfg.Poll.MaxRetries)
			fmt.Println()

			fmt.Println("Refresh:")
			fmt.Printf("  Interval: %ds\n", cfg.Refresh.IntervalSeconds)
			fmt.Println()

			fmt.Printf("Elapsed state file: %s\n", cfg.ElapsedStatePath())

			return nil
		},
	}

	return cmd
}

func orUnset(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := cfgFile
			if configPath == "" {
				p, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = p
				fmt.Println("Default configuration path:")
			} else {
				fmt.Println("Configuration path (from --config flag):")
			}

			fmt.Printf("  %s\n", configPath)
			fmt.Println()

			if info, err := os.Stat(configPath); err == nil {
				fmt.Println("Status: file exists")
				fmt.Printf("Size:     %d bytes\n", info.Size())
				fmt.Printf("Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Println("Status: file does not exist")
				fmt.Println()
				fmt.Println("Create one with: ricordi-sync config init")
			}

			return nil
		},
	}

	return cmd
}
