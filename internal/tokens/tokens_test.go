package tokens

import (
	"strings"
	"testing"

	"github.com/hermesagent/hermes/internal/ai"
)

func TestEstimate(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 0},
		{"abcd", 1},
		{"abcdefg", 1},
		{"abcdefgh", 2},
		{strings.Repeat("x", 4000), 1000},
	}
	for _, tc := range cases {
		if got := Estimate(tc.text); got != tc.want {
			t.Errorf("Estimate(%d chars) = %d, want %d", len(tc.text), got, tc.want)
		}
	}
}

func TestCountMessages(t *testing.T) {
	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: strings.Repeat("a", 40)},  // 10
		{Role: ai.RoleUser, Content: strings.Repeat("b", 80)},    // 20
		{Role: ai.RoleAssistant},                                 // missing content counts as 0
		{Role: ai.RoleUser, Content: strings.Repeat("c", 3)},     // 0
		{Role: ai.RoleAssistant, Content: strings.Repeat("d", 7)}, // 1
	}
	if got := CountMessages(messages); got != 31 {
		t.Fatalf("CountMessages = %d, want 31", got)
	}
}

// equalMessages compares field-by-field; ai.Message holds a slice, so the
// struct itself is not comparable.
func equalMessages(a, b ai.Message) bool {
	return a.Role == b.Role && a.Content == b.Content &&
		a.Thinking == b.Thinking && a.ToolName == b.ToolName &&
		len(a.ToolCalls) == len(b.ToolCalls)
}

func TestTrim_EmptyInput(t *testing.T) {
	trimmed, wasTrimmed := Trim(nil, 100, DefaultKeepRecent)
	if wasTrimmed {
		t.Fatal("empty input must not be trimmed")
	}
	if len(trimmed) != 0 {
		t.Fatalf("expected empty output, got %d messages", len(trimmed))
	}
}

func TestTrim_UnderBudgetIsNoOp(t *testing.T) {
	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: "S"},
		{Role: ai.RoleUser, Content: "hello there"},
		{Role: ai.RoleAssistant, Content: "hi"},
	}
	trimmed, wasTrimmed := Trim(messages, 1000, DefaultKeepRecent)
	if wasTrimmed {
		t.Fatal("under-budget history must not be trimmed")
	}
	if len(trimmed) != len(messages) {
		t.Fatalf("expected identical sequence, got %d messages", len(trimmed))
	}
	for i := range messages {
		if !equalMessages(trimmed[i], messages[i]) {
			t.Fatalf("message %d changed: %+v != %+v", i, trimmed[i], messages[i])
		}
	}
}

func TestTrim_KeepsSystemAndRecent(t *testing.T) {
	// system + m1..m20, each message ~500 tokens (2000 chars).
	body := strings.Repeat("x", 2000)
	messages := []ai.Message{{Role: ai.RoleSystem, Content: "You are helpful."}}
	for i := 0; i < 20; i++ {
		messages = append(messages, ai.Message{Role: ai.RoleUser, Content: body})
	}

	trimmed, wasTrimmed := Trim(messages, 500, 5)
	if !wasTrimmed {
		t.Fatal("expected trimming")
	}
	if len(trimmed) > 7 {
		t.Fatalf("trimmed length %d, want <= 7", len(trimmed))
	}
	if trimmed[0].Role != ai.RoleSystem || trimmed[0].Content != "You are helpful." {
		t.Fatalf("first message must be the original system prompt, got %+v", trimmed[0])
	}
	if trimmed[1].Role != ai.RoleSystem || !strings.Contains(trimmed[1].Content, "Context trimmed: 15 older messages") {
		t.Fatalf("second message must be the trim summary, got %+v", trimmed[1])
	}
	// Last 5 of the original list follow the summary.
	if got := len(trimmed) - 2; got != 5 {
		t.Fatalf("expected 5 recent messages, got %d", got)
	}
	for _, msg := range trimmed[2:] {
		if msg.Content != body {
			t.Fatal("recent messages must be preserved verbatim")
		}
	}
}

func TestTrim_NoSystemMessage(t *testing.T) {
	body := strings.Repeat("y", 400) // 100 tokens each
	var messages []ai.Message
	for i := 0; i < 12; i++ {
		messages = append(messages, ai.Message{Role: ai.RoleUser, Content: body})
	}

	trimmed, wasTrimmed := Trim(messages, 300, 4)
	if !wasTrimmed {
		t.Fatal("expected trimming")
	}
	// [trim_summary, ...4 recent]
	if len(trimmed) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(trimmed))
	}
	if trimmed[0].Role != ai.RoleSystem || !strings.Contains(trimmed[0].Content, "8 older messages") {
		t.Fatalf("summary must lead when no system message is retained, got %+v", trimmed[0])
	}
}

func TestTrim_RecentOverlapsSystem(t *testing.T) {
	// Small history where last-N covers the whole list: no summary inserted.
	big := strings.Repeat("z", 4000)
	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: big},
		{Role: ai.RoleUser, Content: big},
	}
	trimmed, wasTrimmed := Trim(messages, 100, 10)
	if !wasTrimmed {
		t.Fatal("expected trimming")
	}
	// system retained + last 10 (= both originals); numTrimmed would be
	// negative, so no summary message appears.
	for _, msg := range trimmed {
		if strings.Contains(msg.Content, "Context trimmed") {
			t.Fatal("no trim summary expected when nothing was removed")
		}
	}
	if len(trimmed) != 3 {
		t.Fatalf("expected retained system + both originals, got %d", len(trimmed))
	}
}

func TestTrim_DoesNotMutateInput(t *testing.T) {
	body := strings.Repeat("q", 2000)
	var messages []ai.Message
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: "S"})
	for i := 0; i < 15; i++ {
		messages = append(messages, ai.Message{Role: ai.RoleUser, Content: body})
	}
	snapshot := make([]ai.Message, len(messages))
	copy(snapshot, messages)

	if _, wasTrimmed := Trim(messages, 500, 5); !wasTrimmed {
		t.Fatal("expected trimming")
	}
	for i := range snapshot {
		if !equalMessages(messages[i], snapshot[i]) {
			t.Fatalf("input mutated at index %d", i)
		}
	}
}
