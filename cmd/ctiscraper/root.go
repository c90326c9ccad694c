package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"CTIScraper/internal/app"
	"CTIScraper/internal/config"
	"CTIScraper/internal/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ctiscraper",
		Short:         "Collect and triage threat-intelligence articles",
		SilenceUsage: true,
	}
	root.AddCommand(
		newPollCmd(),
		newPollSourceCmd(),
		newServeCmd(),
		newScoreCmd(),
		newChunkCmd(),
		newClassifyCmd(),
		newAnalyzeCmd(),
		newBackfillCmd(),
		newModelsCmd(),
		newFeedbackCmd(),
	)
	return root
}

// withApp loads configuration, builds the application and closes it after fn.
func withApp(cmd *cobra.Command, fn func(*app.Application) error) error {
	cfg := config.Load()
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("close application", "error", err)
		}
	}()
	return fn(application)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// inputText joins args, or reads stdin when no args are given.
func inputText(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return string(raw), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	}
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(raw), nil
}
