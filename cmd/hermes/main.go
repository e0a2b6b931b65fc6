// Command hermes is a terminal chat agent backed by a local Ollama server,
// with crash-safe conversation persistence and an optional pgvector-backed
// semantic memory store.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const defaultLogFile = "logs/hermes.log"

var (
	flagLogFile string
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:           "hermes",
		Short:         "Local LLM chat agent with persistent semantic memory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(flagLogFile, flagVerbose)
		},
	}
	root.PersistentFlags().StringVar(&flagLogFile, "log-file", defaultLogFile, "structured log destination (- for stderr)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newChatCmd(), newInitDBCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging routes slog to a file so log lines never interleave with the
// interactive transcript on stdout.
func setupLogging(path string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = f
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return nil
}
