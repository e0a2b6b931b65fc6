// Package config loads the agent template (YAML) and environment-backed
// settings for the memory store.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Parameters holds the model generation options sent with every chat
// request. Field names match the Ollama options JSON.
type Parameters struct {
	Temperature      float64 `yaml:"temperature" json:"temperature"`
	TopP             float64 `yaml:"top_p" json:"top_p"`
	TopK             int     `yaml:"top_k" json:"top_k"`
	NumPredict       int     `yaml:"num_predict" json:"num_predict"`
	RepeatPenalty    float64 `yaml:"repeat_penalty" json:"repeat_penalty"`
	RepeatLastN      int     `yaml:"repeat_last_n" json:"repeat_last_n"`
	PresencePenalty  float64 `yaml:"presence_penalty" json:"presence_penalty"`
	FrequencyPenalty float64 `yaml:"frequency_penalty" json:"frequency_penalty"`
	Mirostat         int     `yaml:"mirostat" json:"mirostat"`
	NumCtx           int     `yaml:"num_ctx" json:"num_ctx"`
}

// DefaultParameters returns the generation defaults applied when the
// template omits a value.
func DefaultParameters() Parameters {
	return Parameters{
		Temperature:   0.7,
		TopP:          0.9,
		TopK:          40,
		NumPredict:    2048,
		RepeatPenalty: 1.1,
		RepeatLastN:   64,
		Mirostat:      0,
		NumCtx:        4096,
	}
}

// Template is the agent definition loaded from YAML: which model to run, its
// system prompt, and the generation parameters.
type Template struct {
	Model      string     `yaml:"model"`
	System     string     `yaml:"system"`
	Parameters Parameters `yaml:"parameters"`
}

// LoadTemplate reads and validates a template file. Omitted parameters take
// their defaults; a missing model name is an error.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read template %s: %w", path, err)
	}

	template := &Template{Parameters: DefaultParameters()}
	if err := yaml.Unmarshal(data, template); err != nil {
		return nil, fmt.Errorf("config: parse template %s: %w", path, err)
	}

	if template.Model == "" {
		return nil, fmt.Errorf("config: template %s: model is required", path)
	}
	if template.Parameters.NumCtx <= 0 {
		return nil, fmt.Errorf("config: template %s: num_ctx must be positive", path)
	}

	slog.Info("loaded template", "path", path, "model", template.Model, "num_ctx", template.Parameters.NumCtx)
	return template, nil
}

// Settings holds environment-backed configuration for the memory store.
// DatabaseURL and APIKey empty means memory is not configured.
type Settings struct {
	DatabaseURL    string
	APIKey         string
	EmbeddingModel string
	EmbeddingDim   int
}

// LoadSettings reads settings from the environment, first merging a .env
// file if present. A missing .env file is not an error.
func LoadSettings() Settings {
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	s := Settings{
		DatabaseURL:    os.Getenv("MEMORY_DB_URL"),
		APIKey:         os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel: os.Getenv("OPENAI_EMBEDDING_MODEL"),
	}
	if s.EmbeddingModel == "" {
		s.EmbeddingModel = "text-embedding-3-small"
	}
	if dim := os.Getenv("OPENAI_EMBEDDING_DIM"); dim != "" {
		if _, err := fmt.Sscanf(dim, "%d", &s.EmbeddingDim); err != nil {
			slog.Warn("ignoring invalid OPENAI_EMBEDDING_DIM", "value", dim)
			s.EmbeddingDim = 0
		}
	}
	return s
}

// MemoryConfigured reports whether both resources the memory store needs are
// present.
func (s Settings) MemoryConfigured() bool {
	return s.DatabaseURL != "" && s.APIKey != ""
}
