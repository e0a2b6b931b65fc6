package chat

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hermesagent/hermes/internal/ai"
	"github.com/hermesagent/hermes/internal/history"
	"github.com/hermesagent/hermes/internal/memory"
	"github.com/hermesagent/hermes/internal/tokens"
)

// handleCommand dispatches one slash command. The return value reports
// whether the session should exit.
func (s *Session) handleCommand(ctx context.Context, input string) (quit bool) {
	command, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(command) {
	case "/quit", "/bye":
		s.shutdown()
		return true
	case "/?":
		s.cmdHelp()
	case "/clear":
		s.cmdClear()
	case "/save":
		s.cmdSave()
	case "/load":
		s.cmdLoad(strings.Fields(args))
	case "/trim":
		s.cmdTrim()
	case "/context":
		s.cmdContext(args != "brief")
	case "/stream":
		s.streaming = !s.streaming
		fmt.Fprintf(s.out, "Streaming %s\n", onOff(s.streaming))
	case "/remember":
		s.cmdRemember(ctx, args)
	case "/recall":
		s.cmdRecall(ctx, args)
	case "/memories":
		s.cmdMemories(ctx, args)
	case "/forget":
		s.cmdForget(ctx, args)
	case "/tags":
		s.cmdTags(ctx)
	case "/stats":
		s.cmdStats(ctx)
	default:
		fmt.Fprintf(s.out, "Unknown command %s. Type /? for help.\n", command)
	}
	return false
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func (s *Session) cmdHelp() {
	fmt.Fprintf(s.out, "\n%sCommands%s\n", ansiBold, ansiReset)
	commands := [][2]string{
		{"/?", "Show this help"},
		{"/quit", "Exit and save (also /bye)"},
		{"/clear", "Clear conversation (keeps system prompt, archives old one)"},
		{"/save", "Save conversation manually"},
		{"/load [files]", "Load saved context from JSON (defaults to saved context)"},
		{"/trim", "Trim old messages to fit context"},
		{"/context [brief]", "Print the current conversation"},
		{"/stream", "Toggle response streaming"},
	}
	for _, c := range commands {
		fmt.Fprintf(s.out, "  %s%-18s%s %s\n", ansiCyan, c[0], ansiReset, c[1])
	}

	if s.store != nil {
		fmt.Fprintf(s.out, "\n%sMemory Commands%s\n", ansiBold, ansiReset)
		memoryCommands := [][2]string{
			{"/remember <text>", "Store a memory (supports type=, tag=, importance=, confidence=)"},
			{"/recall <query>", "Search semantic memories"},
			{"/memories [tag]", "List recent memories or by tag"},
			{"/forget <id>", "Delete memory by ID"},
			{"/tags", "List memory tags"},
			{"/stats", "Show memory statistics"},
		}
		for _, c := range memoryCommands {
			fmt.Fprintf(s.out, "  %s%-18s%s %s\n", ansiCyan, c[0], ansiReset, c[1])
		}
	}
	fmt.Fprintln(s.out)
}

// cmdClear archives the saved conversation, resets to the system prompt, and
// persists the fresh state.
func (s *Session) cmdClear() {
	archivePath := history.Archive(s.contextFile, "clear")
	s.messages = []ai.Message{{Role: ai.RoleSystem, Content: s.template.System}}
	s.cmdSave()
	if archivePath != "" {
		fmt.Fprintf(s.out, "Previous conversation archived to %s\n", archivePath)
	}
	fmt.Fprintln(s.out, "Context cleared and saved!")
}

func (s *Session) cmdSave() {
	if err := history.Save(s.messages, s.contextFile); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Saved to %s\n", s.contextFile)
}

// cmdLoad restores conversation history. With no arguments it reloads the
// session's own context file and pins the active system prompt at index 0.
// With file arguments it concatenates their messages verbatim.
func (s *Session) cmdLoad(files []string) {
	if len(files) == 0 {
		loaded := history.Load(s.contextFile)
		if len(loaded) == 0 {
			s.messages = []ai.Message{{Role: ai.RoleSystem, Content: s.template.System}}
			fmt.Fprintf(s.out, "%sNo saved context loaded from %s%s\n", ansiYellow, s.contextFile, ansiReset)
			return
		}
		loaded[0] = ai.Message{Role: ai.RoleSystem, Content: s.template.System}
		s.messages = loaded
		fmt.Fprintf(s.out, "%sContext loaded from %s%s\n", ansiGreen, s.contextFile, ansiReset)
		return
	}

	var combined []ai.Message
	anyLoaded := false
	for _, f := range files {
		loaded := history.Load(f)
		if len(loaded) > 0 {
			combined = append(combined, loaded...)
			anyLoaded = true
		}
	}
	if anyLoaded {
		s.messages = combined
		fmt.Fprintf(s.out, "%sContext loaded from: %s%s\n", ansiGreen, strings.Join(files, " "), ansiReset)
	} else {
		fmt.Fprintf(s.out, "%sNo saved context loaded from: %s%s\n", ansiYellow, strings.Join(files, " "), ansiReset)
	}
}

func (s *Session) cmdTrim() {
	trimmed, wasTrimmed := tokens.Trim(s.messages, s.maxHistoryTokens, tokens.DefaultKeepRecent)
	if wasTrimmed {
		s.messages = trimmed
		if err := history.Save(s.messages, s.contextFile); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		fmt.Fprintf(s.out, "Context trimmed to %d messages\n", len(s.messages))
	} else {
		fmt.Fprintf(s.out, "Context is within limits (%d tokens)\n", tokens.CountMessages(s.messages))
	}
}

// cmdContext prints the conversation. Brief mode truncates long messages.
func (s *Session) cmdContext(showFull bool) {
	divider := strings.Repeat("=", 60)
	fmt.Fprintf(s.out, "\n%s\nCURRENT CONTEXT\n%s\n", divider, divider)
	fmt.Fprintf(s.out, "Total messages: %d | Estimated tokens: %d\n%s\n",
		len(s.messages), tokens.CountMessages(s.messages), divider)

	for i, msg := range s.messages {
		content := msg.Content
		if !showFull && len(content) > 100 {
			content = content[:100] + "..."
		}
		fmt.Fprintf(s.out, "\n[%d] %s (~%d tokens):\n  %s\n",
			i, strings.ToUpper(string(msg.Role)), tokens.Estimate(msg.Content), content)
	}
	fmt.Fprintf(s.out, "%s\n\n", divider)
}

// Inline parameters accepted by /remember.
var (
	rememberTypeRe       = regexp.MustCompile(`type=(\w+)\s*`)
	rememberTagRe        = regexp.MustCompile(`tag=(\w+)\s*`)
	rememberImportanceRe = regexp.MustCompile(`importance=([\d.]+)\s*`)
	rememberConfidenceRe = regexp.MustCompile(`confidence=([\d.]+)\s*`)
)

// cmdRemember stores a memory. key=value parameters anywhere in the text
// override the defaults; the remainder is the memory text itself.
func (s *Session) cmdRemember(ctx context.Context, args string) {
	if s.store == nil {
		fmt.Fprintln(s.out, "Memory store not available")
		return
	}
	if args == "" {
		fmt.Fprintln(s.out, "Usage: /remember [type= tag= importance= confidence=] <text>")
		return
	}

	params := memory.DefaultRememberParams("")
	if m := rememberTypeRe.FindStringSubmatch(args); m != nil {
		params.Type = m[1]
		args = rememberTypeRe.ReplaceAllString(args, "")
	}
	if m := rememberTagRe.FindStringSubmatch(args); m != nil {
		params.Tag = m[1]
		args = rememberTagRe.ReplaceAllString(args, "")
	}
	if m := rememberImportanceRe.FindStringSubmatch(args); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			params.Importance = v
		}
		args = rememberImportanceRe.ReplaceAllString(args, "")
	}
	if m := rememberConfidenceRe.FindStringSubmatch(args); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			params.Confidence = v
		}
		args = rememberConfidenceRe.ReplaceAllString(args, "")
	}

	params.Text = strings.TrimSpace(args)
	if params.Text == "" {
		fmt.Fprintln(s.out, "Usage: /remember [type= tag= importance= confidence=] <text>")
		return
	}

	id, err := s.store.Remember(ctx, params)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if id == 0 {
		fmt.Fprintln(s.out, "Failed to store memory")
		return
	}
	fmt.Fprintf(s.out, "Memory stored with ID %d\n", id)
}

func (s *Session) cmdRecall(ctx context.Context, query string) {
	if s.store == nil {
		fmt.Fprintln(s.out, "Memory store not available")
		return
	}
	if query == "" {
		fmt.Fprintln(s.out, "Usage: /recall <query>")
		return
	}

	results, err := s.store.Recall(ctx, memory.DefaultRecallParams(query))
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if len(results) == 0 {
		fmt.Fprintln(s.out, "  No memories found")
		return
	}

	fmt.Fprintf(s.out, "\nFound %d relevant memories:\n\n", len(results))
	for _, r := range results {
		fmt.Fprintf(s.out, "  [%d] %s | %s - %s (score %.3f)\n", r.ID, r.Type, r.Tag, r.Text, r.Similarity)
	}
}

func (s *Session) cmdMemories(ctx context.Context, tag string) {
	if s.store == nil {
		fmt.Fprintln(s.out, "Memory store not available")
		return
	}

	params := memory.DefaultListParams()
	params.Tag = tag
	results, err := s.store.ListMemories(ctx, params)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	if tag != "" {
		fmt.Fprintf(s.out, "\nMemories tagged %q:\n\n", tag)
	} else {
		fmt.Fprintln(s.out, "\nRecent memories:")
		fmt.Fprintln(s.out)
	}
	if len(results) == 0 {
		fmt.Fprintln(s.out, "  No memories found")
		return
	}
	for _, r := range results {
		fmt.Fprintf(s.out, "  [%d] %s | %s - %s\n", r.ID, r.Type, r.Tag, r.Text)
	}
}

func (s *Session) cmdForget(ctx context.Context, arg string) {
	if s.store == nil {
		fmt.Fprintln(s.out, "Memory store not available")
		return
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		fmt.Fprintln(s.out, "Usage: /forget <id>")
		return
	}

	if s.store.Forget(ctx, id) {
		fmt.Fprintf(s.out, "Memory %d deleted\n", id)
	} else {
		fmt.Fprintf(s.out, "Memory %d not found\n", id)
	}
}

func (s *Session) cmdTags(ctx context.Context) {
	if s.store == nil {
		fmt.Fprintln(s.out, "Memory store not available")
		return
	}

	tags := s.store.ListTags(ctx)
	if len(tags) == 0 {
		fmt.Fprintln(s.out, "  No tags found")
		return
	}
	fmt.Fprintln(s.out, "\nAvailable tags:")
	fmt.Fprintln(s.out)
	for _, tag := range tags {
		fmt.Fprintf(s.out, "  - %s\n", tag)
	}
}

func (s *Session) cmdStats(ctx context.Context) {
	if s.store == nil {
		fmt.Fprintln(s.out, "Memory store not available")
		return
	}

	stats := s.store.Stats(ctx)
	if stats == nil {
		fmt.Fprintln(s.out, "Error: could not retrieve memory statistics")
		return
	}

	fmt.Fprintln(s.out, "\nMemory Statistics:")
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "  Total memories: %d\n", stats.TotalMemories)
	fmt.Fprintf(s.out, "  Total tags: %d\n", stats.TotalTags)
	if len(stats.TypeCounts) > 0 {
		fmt.Fprintln(s.out, "  By type:")
		for _, memType := range []string{memory.TypePreference, memory.TypeFact, memory.TypeTask, memory.TypeInsight} {
			if count, ok := stats.TypeCounts[memType]; ok {
				fmt.Fprintf(s.out, "    %s: %d\n", memType, count)
			}
		}
	}
	if stats.AvgConfidence != nil {
		fmt.Fprintf(s.out, "  Avg confidence: %.2f\n", *stats.AvgConfidence)
	}
	if stats.AvgImportance != nil {
		fmt.Fprintf(s.out, "  Avg importance: %.2f\n", *stats.AvgImportance)
	}
	if stats.LastMemoryAt != nil {
		fmt.Fprintf(s.out, "  Last memory: %s\n", stats.LastMemoryAt.Format("2006-01-02 15:04:05"))
	}
}
