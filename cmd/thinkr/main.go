// Command thinkr is the command-line interface to the ThinkR course chatbot.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"thinkr-chatbot/internal/app"
	"thinkr-chatbot/internal/config"
)

var flagVerbose bool

var rootCmd = &cobra.Command{
	Use:          "thinkr",
	Short:        "ThinkR R course assistant",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `Ask questions about the ThinkR R programming course.
Index the course PDFs with 'thinkr index-pdfs', then use 'thinkr chat' or 'thinkr ask'.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log at LOG_LEVEL instead of warn")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printErr(os.Stderr, err.Error())
		stop()
		os.Exit(1)
	}
}

// openApp loads configuration and wires the chatbot. Commands that call the
// model pass needModel so a missing API key fails before any work is done.
func openApp(cmd *cobra.Command, needModel bool) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cannot load configuration: %w", err)
	}

	level := slog.LevelWarn
	if flagVerbose {
		level = cfg.LogLevel
	}
	app.SetupLogging(cfg, os.Stderr, level)

	if needModel {
		if err := cfg.RequireAPIKey(); err != nil {
			return nil, fmt.Errorf("%w\nSet OPENAI_API_KEY in the environment or a .env file", err)
		}
	}
	return app.New(cmd.Context(), cfg)
}
