package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"study-assistant/internal/config"
)

const defaultConfigPath = "./configs/config.yaml"

type rootOptions struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "study-assistant",
		Short: "Ask questions about your study material",
		Long: `Indexes study documents into a vector store and answers questions
about them with a language model, grounded on the most relevant chunks.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(opts.logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", opts.logLevel, err)
			}
			zerolog.SetGlobalLevel(level)

			opts.cfg, err = config.LoadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newIndexCmd(opts),
		newAskCmd(opts),
		newChatCmd(opts),
		newServeCmd(opts),
		newListCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newRemoveCmd(opts),
	)
	return cmd
}

// NewLogger returns the console logger. Logs go to w rather than stdout, which
// carries command output and the chat screen.
func NewLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Timestamp().Caller().Logger()
}

func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
