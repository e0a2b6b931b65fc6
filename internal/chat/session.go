// Package chat implements the interactive session: the REPL loop, slash
// commands, token budgeting, crash-safe history persistence, and tool-call
// dispatch against the memory store.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hermesagent/hermes/internal/ai"
	"github.com/hermesagent/hermes/internal/config"
	"github.com/hermesagent/hermes/internal/history"
	"github.com/hermesagent/hermes/internal/memory"
	"github.com/hermesagent/hermes/internal/tokens"
	"github.com/hermesagent/hermes/internal/tool"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiCyan   = "\x1b[36m"
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
)

// historyBudgetRatio is the share of the model context window reserved for
// conversation history; the rest is headroom for the next completion.
const historyBudgetRatio = 0.75

// usageWarnPercent is the utilization above which the session warns that the
// next message will auto-trim.
const usageWarnPercent = 90.0

// Chatter is the LLM transport surface the session needs. *ollama.Client
// satisfies it.
type Chatter interface {
	Chat(ctx context.Context, messages []ai.Message, tools []ai.ToolDescription, stream bool) (*ai.ChatStream, error)
	CheckConnection(ctx context.Context) error
	Model() string
}

// Session holds one interactive conversation: its message list, persistence
// target, transport, and optional memory store.
type Session struct {
	template    *config.Template
	contextFile string
	llm         Chatter
	store       *memory.Store
	tools       *tool.Registry

	messages         []ai.Message
	streaming        bool
	maxHistoryTokens int

	in  io.Reader
	out io.Writer
}

// Option configures optional Session behavior.
type Option func(*Session)

// WithInput overrides the input stream (default os.Stdin).
func WithInput(in io.Reader) Option {
	return func(s *Session) { s.in = in }
}

// WithOutput overrides the output stream (default os.Stdout).
func WithOutput(out io.Writer) Option {
	return func(s *Session) { s.out = out }
}

// NewSession creates a session for the given template. store may be nil, in
// which case memory commands and the store_memory tool are unavailable.
func NewSession(template *config.Template, contextFile string, llm Chatter, store *memory.Store, opts ...Option) *Session {
	s := &Session{
		template:         template,
		contextFile:      contextFile,
		llm:              llm,
		store:            store,
		tools:            tool.NewRegistry(),
		messages:         []ai.Message{{Role: ai.RoleSystem, Content: template.System}},
		streaming:        true,
		maxHistoryTokens: int(float64(template.Parameters.NumCtx) * historyBudgetRatio),
		in:               os.Stdin,
		out:              os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if store != nil {
		s.tools.Register(tool.NewStoreMemory(store))
		slog.Info("memory tool enabled")
	}
	return s
}

// RegisterTool adds an extra tool to the session's registry.
func (s *Session) RegisterTool(t tool.GenericTool) {
	s.tools.Register(t)
}

// Messages returns the current conversation. The returned slice is the live
// backing array; callers must not mutate it.
func (s *Session) Messages() []ai.Message {
	return s.messages
}

// Run drives the interactive loop until the user quits, input ends, or the
// context is canceled. The conversation is saved on every exit path,
// including interrupts. Per-turn errors are printed and the loop continues.
func (s *Session) Run(ctx context.Context) error {
	if err := s.llm.CheckConnection(ctx); err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	if _, err := os.Stat(s.contextFile); err == nil {
		fmt.Fprintf(s.out, "%sFound saved conversation at %s.%s Use %s/load%s to restore it.\n",
			ansiYellow, s.contextFile, ansiReset, ansiCyan, ansiReset)
	}
	fmt.Fprintf(s.out, "%sChat%s - Model: %s\n", ansiGreen, ansiReset, s.llm.Model())
	fmt.Fprintf(s.out, "Type %s/?%s for commands\n", ansiCyan, ansiReset)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(s.out, "\nYou: ")

		var input string
		var open bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "\nSaving before exit...")
			s.shutdown()
			return nil
		case input, open = <-lines:
			if !open {
				s.shutdown()
				return nil
			}
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := s.handleCommand(ctx, input); quit {
				return nil
			}
			continue
		}

		if err := s.sendMessage(ctx, input); err != nil {
			slog.Error("chat turn failed", "error", err)
			fmt.Fprintf(s.out, "\nError: %v\n", err)
		}
	}
}

// shutdown persists the conversation and releases the memory store.
func (s *Session) shutdown() {
	if err := history.Save(s.messages, s.contextFile); err != nil {
		slog.Error("failed to save on exit", "error", err)
	}
	if s.store != nil {
		s.store.Close()
	}
	fmt.Fprintln(s.out, "Goodbye!")
}

// sendMessage runs one model turn: auto-trim if over budget, append the user
// message, stream the reply, dispatch tool calls, and report usage.
func (s *Session) sendMessage(ctx context.Context, userInput string) error {
	if tokens.CountMessages(s.messages) > s.maxHistoryTokens {
		trimmed, wasTrimmed := tokens.Trim(s.messages, s.maxHistoryTokens, tokens.DefaultKeepRecent)
		if wasTrimmed {
			s.messages = trimmed
			fmt.Fprintf(s.out, "Auto-trimmed context to fit within %d tokens\n", s.maxHistoryTokens)
			if err := history.Save(s.messages, s.contextFile); err != nil {
				slog.Error("failed to save after auto-trim", "error", err)
			}
		}
	}

	s.messages = append(s.messages, ai.Message{Role: ai.RoleUser, Content: userInput})

	fmt.Fprint(s.out, "\nAssistant: ")
	if err := s.handleResponse(ctx); err != nil {
		return err
	}

	used := tokens.CountMessages(s.messages)
	usagePct := float64(used) / float64(s.maxHistoryTokens) * 100
	fmt.Fprintf(s.out, "\nMessages: %d | Tokens: %d/%d (%.1f%%)\n",
		len(s.messages), used, s.maxHistoryTokens, usagePct)
	if usagePct > usageWarnPercent {
		fmt.Fprintln(s.out, "Context nearly full - will auto-trim on next message")
	}
	return nil
}

// handleResponse consumes one model response, printing content deltas as
// they arrive, then appends the assistant message and runs any tool calls.
func (s *Session) handleResponse(ctx context.Context) error {
	stream, err := s.llm.Chat(ctx, s.messages, s.tools.Descriptions(), s.streaming)
	if err != nil {
		return err
	}

	response := &ai.ChatResponse{}
	for event, err := range stream.Iter() {
		if err != nil {
			fmt.Fprintln(s.out)
			return err
		}
		switch event.Type {
		case ai.StreamEventContent:
			fmt.Fprint(s.out, event.Content)
			response.Content += event.Content
		case ai.StreamEventThinking:
			response.Thinking += event.Thinking
		case ai.StreamEventToolCall:
			if event.ToolCall != nil {
				response.ToolCalls = append(response.ToolCalls, *event.ToolCall)
			}
		case ai.StreamEventDone:
			response.DoneReason = event.DoneReason
		}
	}
	fmt.Fprintln(s.out)

	s.messages = append(s.messages, response.AssistantMessage())

	for _, call := range response.ToolCalls {
		s.runToolCall(ctx, call)
	}
	return nil
}

// runToolCall dispatches one tool call and appends its result as a tool-role
// message so the model sees the outcome on the next turn. Dispatch failures
// are recorded the same way rather than aborting the turn.
func (s *Session) runToolCall(ctx context.Context, call ai.ToolCall) {
	name := call.Function.Name
	result, err := s.tools.Dispatch(ctx, call)
	if err != nil {
		slog.Error("tool call failed", "tool", name, "error", err)
		result = fmt.Sprintf("Error: %v", err)
	} else {
		slog.Info("tool call completed", "tool", name)
	}

	s.messages = append(s.messages, ai.Message{
		Role:     ai.RoleTool,
		ToolName: name,
		Content:  result,
	})
	fmt.Fprintf(s.out, "[%s] %s\n", name, result)
}
