package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hermesagent/hermes/internal/ai"
)

func testMessages() []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: "S"},
		{Role: ai.RoleUser, Content: "hi"},
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: "You are helpful."},
		{Role: ai.RoleUser, Content: "hello"},
		{Role: ai.RoleAssistant, Content: "hey", Thinking: "greeting back"},
		{Role: ai.RoleTool, ToolName: "store_memory", Content: "Stored memory #3"},
	}
	if err := Save(messages, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := Load(path)
	if len(loaded) != len(messages) {
		t.Fatalf("loaded %d messages, want %d", len(loaded), len(messages))
	}
	for i := range messages {
		if loaded[i].Role != messages[i].Role ||
			loaded[i].Content != messages[i].Content ||
			loaded[i].Thinking != messages[i].Thinking ||
			loaded[i].ToolName != messages[i].ToolName {
			t.Fatalf("message %d mismatch: %+v != %+v", i, loaded[i], messages[i])
		}
	}
}

func TestSave_WritesEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := Save(testMessages(), path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("not valid JSON: %v", err)
	}
	if file.Timestamp == "" {
		t.Fatal("timestamp missing from envelope")
	}
	if len(file.Messages) != 2 {
		t.Fatalf("envelope has %d messages, want 2", len(file.Messages))
	}
}

func TestSave_SecondWriteBacksUpFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	first := []ai.Message{{Role: ai.RoleSystem, Content: "S"}, {Role: ai.RoleUser, Content: "hi"}}
	if err := Save(first, path); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	firstBytes, _ := os.ReadFile(path)

	second := []ai.Message{{Role: ai.RoleSystem, Content: "S"}, {Role: ai.RoleUser, Content: "hi"}, {Role: ai.RoleAssistant, Content: "hello"}}
	if err := Save(second, path); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	backup, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(backup) != string(firstBytes) {
		t.Fatal("backup must equal the first payload")
	}
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	if err := Save(testMessages(), path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("leftover temp file: %s", entry.Name())
		}
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	loaded := Load(filepath.Join(t.TempDir(), "nope.json"))
	if len(loaded) != 0 {
		t.Fatalf("expected empty sequence, got %d messages", len(loaded))
	}
}

func TestLoad_CorruptedFallsBackToBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")

	if err := Save(testMessages(), path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Second save moves the valid payload to .bak, then corrupt the primary.
	if err := Save(testMessages(), path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(path, []byte("{ malformed"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	loaded := Load(path)
	if len(loaded) != 2 {
		t.Fatalf("expected backup's 2 messages, got %d", len(loaded))
	}
	if loaded[1].Content != "hi" {
		t.Fatalf("unexpected backup content: %+v", loaded[1])
	}
}

func TestLoad_CorruptedWithoutBackupIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{ malformed"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if loaded := Load(path); len(loaded) != 0 {
		t.Fatalf("expected empty sequence, got %d messages", len(loaded))
	}
}

func TestArchive_MissingFileIsNoOp(t *testing.T) {
	if got := Archive(filepath.Join(t.TempDir(), "nope.json"), "clear"); got != "" {
		t.Fatalf("expected empty archive path, got %q", got)
	}
}

func TestArchive_CopiesNotMoves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	if err := Save(testMessages(), path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	archivePath := Archive(path, "clear")
	if archivePath == "" {
		t.Fatal("expected an archive path")
	}
	base := filepath.Base(archivePath)
	if !strings.HasPrefix(base, "history-clear-") || !strings.HasSuffix(base, ".json") {
		t.Fatalf("unexpected archive name: %s", base)
	}

	// Original must still exist with identical content.
	original, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("original gone after archive: %v", err)
	}
	archived, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("archive unreadable: %v", err)
	}
	if string(original) != string(archived) {
		t.Fatal("archive content must equal the original")
	}
}
