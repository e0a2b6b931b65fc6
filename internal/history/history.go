// Package history persists conversation messages to disk. Writes are
// crash-safe (temp file + atomic rename, previous content kept as a .bak
// sibling) so a concurrent reader never observes a half-written file.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hermesagent/hermes/internal/ai"
)

// File is the on-disk envelope: the message sequence wrapped with the time of
// the write.
type File struct {
	Timestamp string       `json:"timestamp"`
	Messages  []ai.Message `json:"messages"`
}

// Save writes messages to path atomically. The payload is first written to a
// temporary file in the same directory; any existing file at path is copied
// to path+".bak" (replacing a prior backup); finally the temporary file is
// renamed over path. On failure the temporary file is removed (best-effort)
// and the error is returned — the previous content of path stays intact.
func Save(messages []ai.Message, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history: create dir: %w", err)
	}

	data, err := json.MarshalIndent(File{
		Timestamp: time.Now().Format(time.RFC3339),
		Messages:  messages,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.tmp")
	if err != nil {
		return fmt.Errorf("history: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("history: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("history: close temp file: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak"); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("history: backup: %w", err)
		}
		slog.Debug("backed up history", "path", path+".bak")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("history: rename: %w", err)
	}

	slog.Info("saved chat history", "path", path, "messages", len(messages))
	return nil
}

// Load reads the message sequence from path. A missing file yields an empty
// sequence, not an error. A corrupted file falls back to the .bak sibling;
// if that also fails the result degrades to an empty sequence so the session
// stays usable.
func Load(path string) []ai.Message {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no existing history file", "path", path)
		return nil
	}
	if err != nil {
		slog.Error("failed to read history", "path", path, "error", err)
		return nil
	}

	var file File
	if err := json.Unmarshal(data, &file); err == nil {
		slog.Info("loaded chat history", "path", path, "messages", len(file.Messages), "timestamp", file.Timestamp)
		return file.Messages
	}

	slog.Error("corrupted history file, trying backup", "path", path)
	backup, err := os.ReadFile(path + ".bak")
	if err != nil {
		slog.Error("no usable backup", "path", path+".bak", "error", err)
		return nil
	}
	if err := json.Unmarshal(backup, &file); err != nil {
		slog.Error("backup also corrupted", "path", path+".bak", "error", err)
		return nil
	}
	slog.Warn("recovered chat history from backup", "path", path+".bak", "messages", len(file.Messages))
	return file.Messages
}

// Archive copies the current file at path to a timestamped sibling named
// <stem>-<prefix>-<timestamp>.json and returns the new path. A missing file
// is a no-op returning "". Copy failures are logged and swallowed — archiving
// is best-effort and never blocks the operation that triggered it.
func Archive(path, prefix string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := fmt.Sprintf("%s-%s-%s.json", stem, prefix, time.Now().Format("20060102T150405"))
	archivePath := filepath.Join(filepath.Dir(path), name)

	if err := copyFile(path, archivePath); err != nil {
		slog.Warn("unable to archive history snapshot", "path", archivePath, "error", err)
		return ""
	}
	slog.Info("archived chat history", "path", archivePath)
	return archivePath
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
