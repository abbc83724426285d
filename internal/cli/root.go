// Package cli provides the command-line interface for datachat.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/datachat/internal/client"
	"github.com/raphaelgruber/datachat/internal/config"
	"github.com/raphaelgruber/datachat/internal/metrics"
	"github.com/raphaelgruber/datachat/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose       bool
	middlewareURL string
	locale        string

	// Global config and clients
	cfg           config.Config
	logger        *slog.Logger
	logCleanup    func() error
	chatClient    *client.Client
	recycleClient *client.RecycleClient
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "datachat",
	Short: "Chat with your data through the analytics middleware",
	Long: `Datachat relays natural-language questions to a conversational-analytics
middleware and shows the answers: Markdown text, the generated SQL and the
chart data.

Every question in one chat shares a conversation id, so the middleware keeps
the context of earlier turns.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if middlewareURL != "" {
			cfg.MiddlewareURL = middlewareURL
		}
		if locale != "" {
			cfg.Locale = locale
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Stdout and stderr belong to the user; logs go to the file unless
		// --verbose asks for them on stderr too.
		if verbose {
			logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		} else {
			logger, logCleanup = config.SetupFileLogger(cfg.LogFile, cfg.LogLevel)
		}

		collector := metrics.NewCollector()
		chatClient = client.New(client.Config{
			BaseURL:       cfg.MiddlewareURL,
			Timeout:       cfg.RequestTimeout,
			SystemMessage: cfg.SystemMessage,
			Logger:        logger,
			Metrics:       collector,
		})
		recycleClient = client.NewRecycle(client.RecycleConfig{
			BaseURL: cfg.RecycleURL,
			Timeout: cfg.RecycleTimeout,
			Logger:  logger,
			Metrics: collector,
		})

		logger.Debug("cli configured",
			"command", cmd.Name(),
			"middleware_url", cfg.MiddlewareURL,
			"locale", cfg.Locale,
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			if err := logCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// newSession starts a conversation against the configured middleware.
func newSession() *session.Session {
	return session.New(chatClient, session.Config{
		Locale: cfg.Locale,
		Logger: logger,
	})
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr at debug level")
	rootCmd.PersistentFlags().StringVar(&middlewareURL, "middleware-url", "", "middleware base URL (overrides DATACHAT_MIDDLEWARE_URL)")
	rootCmd.PersistentFlags().StringVar(&locale, "locale", "", "language of user-facing messages: en or zh")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(recycleCmd)
	rootCmd.AddCommand(versionCmd)
}
