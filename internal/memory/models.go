package memory

import (
	"fmt"
	"time"
)

// Memory types recognized by the store.
const (
	TypePreference = "preference"
	TypeFact       = "fact"
	TypeTask       = "task"
	TypeInsight    = "insight"
)

// validTypes is the closed set accepted by Remember and the type filters.
var validTypes = map[string]bool{
	TypePreference: true,
	TypeFact:       true,
	TypeTask:       true,
	TypeInsight:    true,
}

// ValidType reports whether t is a recognized memory type.
func ValidType(t string) bool { return validTypes[t] }

// maxTextLength is the upper bound on stored memory text, matching the
// embedding provider's input limit.
const maxTextLength = 8000

// Memory is one stored memory row. Similarity is populated only on rows
// returned by Recall and holds the importance-boosted ranking score.
type Memory struct {
	ID             int64     `json:"id"`
	Text           string    `json:"memory_text"`
	Type           string    `json:"type"`
	Tag            string    `json:"tag"`
	Importance     float64   `json:"importance"`
	Confidence     float64   `json:"confidence"`
	Source         string    `json:"source,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessed   time.Time `json:"last_accessed"`
	AccessCount    int       `json:"access_count"`
	EmbeddingModel string    `json:"embedding_model"`
	Similarity     float64   `json:"similarity,omitempty"`
}

// Stats summarizes the whole store. Average and last-memory fields are nil
// when the store is empty.
type Stats struct {
	TotalMemories int            `json:"total_memories"`
	TotalTypes    int            `json:"total_types"`
	TotalTags     int            `json:"total_tags"`
	AvgConfidence *float64       `json:"avg_confidence"`
	AvgImportance *float64       `json:"avg_importance"`
	LastMemoryAt  *time.Time     `json:"last_memory_at"`
	TypeCounts    map[string]int `json:"memory_types"`
}

// RememberParams carries the arguments to Store.Remember. Importance and
// Confidence default to 1.0 via DefaultRememberParams, not via zero values.
type RememberParams struct {
	Text       string
	Type       string
	Tag        string
	Importance float64
	Confidence float64
	Source     string
}

// DefaultRememberParams returns params with the documented defaults applied.
func DefaultRememberParams(text string) RememberParams {
	return RememberParams{
		Text:       text,
		Type:       TypeFact,
		Tag:        "chat",
		Importance: 1.0,
		Confidence: 1.0,
	}
}

// validate checks argument constraints before any I/O happens.
func (p RememberParams) validate() error {
	if isBlank(p.Text) {
		return fmt.Errorf("memory: memory text cannot be empty")
	}
	if len(p.Text) > maxTextLength {
		return fmt.Errorf("memory: memory text too long (max %d chars)", maxTextLength)
	}
	if !ValidType(p.Type) {
		return fmt.Errorf("memory: type must be one of preference, fact, task, insight (got %q)", p.Type)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("memory: confidence must be between 0 and 1 (got %g)", p.Confidence)
	}
	if p.Importance < 0 || p.Importance > 3 {
		return fmt.Errorf("memory: importance must be between 0 and 3 (got %g)", p.Importance)
	}
	if isBlank(p.Tag) {
		return fmt.Errorf("memory: tag cannot be empty")
	}
	return nil
}

// RecallParams carries the arguments to Store.Recall. A zero MinImportance
// pointer means no importance floor. Semantic defaults to true via
// DefaultRecallParams.
type RecallParams struct {
	Query         string
	Type          string
	Tag           string
	MinImportance *float64
	Limit         int
	Semantic      bool
}

// DefaultRecallParams returns params with the documented defaults applied.
func DefaultRecallParams(query string) RecallParams {
	return RecallParams{
		Query:    query,
		Limit:    5,
		Semantic: true,
	}
}

func (p RecallParams) validate() error {
	if isBlank(p.Query) {
		return fmt.Errorf("memory: query cannot be empty")
	}
	if p.Type != "" && !ValidType(p.Type) {
		return fmt.Errorf("memory: type must be one of preference, fact, task, insight (got %q)", p.Type)
	}
	if p.Limit < 1 || p.Limit > 100 {
		return fmt.Errorf("memory: limit must be between 1 and 100 (got %d)", p.Limit)
	}
	return nil
}

// ListParams carries the arguments to Store.ListMemories.
type ListParams struct {
	Tag    string
	Type   string
	Limit  int
	Offset int
}

// DefaultListParams returns params with the documented defaults applied.
func DefaultListParams() ListParams {
	return ListParams{Limit: 20}
}

func (p ListParams) validate() error {
	if p.Limit < 1 || p.Limit > 100 {
		return fmt.Errorf("memory: limit must be between 1 and 100 (got %d)", p.Limit)
	}
	if p.Offset < 0 {
		return fmt.Errorf("memory: offset must be non-negative (got %d)", p.Offset)
	}
	if p.Type != "" && !ValidType(p.Type) {
		return fmt.Errorf("memory: type must be one of preference, fact, task, insight (got %q)", p.Type)
	}
	return nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
