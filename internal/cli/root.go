// Package cli provides the command-line interface for ricordi-sync.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ricordi-app/ricordi-sync/internal/api"
	"github.com/ricordi-app/ricordi-sync/internal/config"
	"github.com/ricordi-app/ricordi-sync/internal/logging"
)

var (
	// Global flags
	cfgFile    string
	apiToken   string
	apiBaseURL string
	verbose    bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Version information - set by main package at startup
var (
	Version   = "v1.2.0-dev"
	BuildTime = "2026-08-29"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ricordi-sync",
		Short: "Ricordi Sync - client for the ricordi photo memory service",
		Long: `Ricordi Sync ` + Version + ` - Built: ` + BuildTime + `
Client for uploading photos to a ricordi server and tracking their
analysis pipeline: queue status, elapsed timers, bulk operations, and
memory questions against the analyzed collection.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose {
				logging.SetGlobalLevel(-1) // zerolog.DebugLevel
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API token (overrides config)")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "Server base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = Version + " (" + BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newStopCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context. It is cancelled when the user
// presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// loadConfig loads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		configPath = p
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Flags beat the file
	if apiBaseURL != "" {
		cfg.BaseURL = apiBaseURL
	}
	if apiToken != "" {
		cfg.APIToken = apiToken
	}
	if v := os.Getenv("RICORDI_API_TOKEN"); v != "" && cfg.APIToken == "" {
		cfg.APIToken = v
	}
	if v := os.Getenv("RICORDI_API_URL"); v != "" && cfg.BaseURL == "" {
		cfg.BaseURL = v
	}

	return cfg, nil
}

// newAPIClient builds a validated API client from config and flags.
func newAPIClient() (*api.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	client, err := api.NewClient(cfg, GetLogger())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}

	return client, cfg, nil
}
