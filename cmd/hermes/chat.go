package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hermesagent/hermes/internal/chat"
	"github.com/hermesagent/hermes/internal/config"
	"github.com/hermesagent/hermes/internal/embedding"
	"github.com/hermesagent/hermes/internal/memory"
	"github.com/hermesagent/hermes/internal/ollama"
)

func newChatCmd() *cobra.Command {
	var (
		templatePath string
		contextFile  string
		ollamaURL    string
		noMemory     bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, templatePath, contextFile, ollamaURL, noMemory)
		},
	}
	cmd.Flags().StringVarP(&templatePath, "template", "t", "template.yaml", "agent template (model, system prompt, parameters)")
	cmd.Flags().StringVarP(&contextFile, "context", "c", "chat_context.json", "conversation persistence file")
	cmd.Flags().StringVar(&ollamaURL, "ollama-url", "", "Ollama server base URL (default http://localhost:11434)")
	cmd.Flags().BoolVar(&noMemory, "no-memory", false, "run without the semantic memory store")
	return cmd
}

func runChat(ctx context.Context, templatePath, contextFile, ollamaURL string, noMemory bool) error {
	template, err := config.LoadTemplate(templatePath)
	if err != nil {
		return err
	}

	var ollamaOpts []ollama.Option
	if ollamaURL != "" {
		ollamaOpts = append(ollamaOpts, ollama.WithBaseURL(ollamaURL))
	}
	llm := ollama.New(template.Model, template.Parameters, ollamaOpts...)

	store := openMemoryStore(ctx, noMemory)

	session := chat.NewSession(template, contextFile, llm, store)
	return session.Run(ctx)
}

// openMemoryStore connects the semantic memory store when it is configured.
// Memory is optional: missing configuration or a failed connection degrades
// to a plain chat session rather than aborting.
func openMemoryStore(ctx context.Context, noMemory bool) *memory.Store {
	if noMemory {
		slog.Info("memory store disabled by flag")
		return nil
	}

	settings := config.LoadSettings()
	if !settings.MemoryConfigured() {
		slog.Warn("memory store not configured, continuing without it (set MEMORY_DB_URL and OPENAI_API_KEY)")
		return nil
	}

	embedder, err := embedding.NewClient(settings.APIKey, settings.EmbeddingModel,
		embedding.WithDimension(settings.EmbeddingDim))
	if err != nil {
		slog.Warn("embedding client unavailable, continuing without memory", "error", err)
		return nil
	}

	store, err := memory.Connect(ctx, settings.DatabaseURL, embedder)
	if err != nil {
		slog.Warn("memory store unavailable, continuing without memory", "error", err)
		fmt.Fprintln(os.Stderr, "Warning: memory store unavailable, continuing without it")
		return nil
	}
	return store
}
