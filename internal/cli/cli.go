// Package cli implements the receiptify command-line interface.
//
// This package provides commands for exporting a receipt card from a web
// page as a PNG, serving the export engine over HTTP, and inspecting the
// effective configuration. The CLI is built using cobra and supports verbose
// logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - export: Capture a receipt from a URL or HTML file and deliver it
//   - serve: Run the HTTP export API
//   - config: Print or initialize the configuration file
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/receiptify/pkg/browser"
	"github.com/matzehuels/receiptify/pkg/buildinfo"
	"github.com/matzehuels/receiptify/pkg/capture"
	"github.com/matzehuels/receiptify/pkg/config"
	"github.com/matzehuels/receiptify/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "receiptify"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is set by the --config flag; empty uses config.DefaultPath.
	configPath string
	verbose    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Receiptify exports Spotify receipt cards as images",
		Long:         `Receiptify captures a rendered receipt card from a web page into a fixed-size PNG and delivers it by share sheet, download or a new tab.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A broken config file is reported by the command that loads it.
			var configured string
			if cfg, _, _, err := config.Load(c.configPath); err == nil {
				configured = cfg.Log.Level
			}
			c.SetLogLevel(logLevel(configured, c.verbose))
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/receiptify/config.toml)")

	// Register all subcommands
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runtime Factories
// =============================================================================

// loadConfig reads the config file selected by --config.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, path, exists, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if exists {
		c.Logger.Debug("loaded config", "path", path)
	}
	return cfg, nil
}

func newBrowserManager(cfg *config.Config, logger *log.Logger) *browser.Manager {
	return browser.NewManager(browser.Config{
		RemoteURL:       cfg.Browser.RemoteURL,
		Bin:             cfg.Browser.Bin,
		Headful:         cfg.Browser.Headful,
		NoSandbox:       cfg.Browser.NoSandbox,
		Stealth:         cfg.Browser.Stealth,
		RecycleInterval: cfg.Browser.RecycleInterval,
		NavigateTimeout: cfg.Browser.NavigateTimeout,
		Logger:          logger,
	})
}

func newBackend(cfg *config.Config, logger *log.Logger) (capture.Backend, error) {
	return capture.New(cfg.Capture.Backend, capture.Options{
		SettleTimeout: cfg.Capture.SettleTimeout,
		Logger:        logger,
	})
}

func retryPolicy(cfg *config.Config) pipeline.RetryPolicy {
	return pipeline.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     cfg.Retry.Backoff,
	}
}
