// Package config loads service configuration from defaults, an optional
// .env file and DOSSIER_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	OpenAI    OpenAIConfig
	Storage   StorageConfig
	Retrieval RetrievalConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type OpenAIConfig struct {
	BaseURL         string
	APIKey          string
	ChatModel       string
	EmbedModel      string
	EmbedDimensions int
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	TopK        int
	MaxChunkLen int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		OpenAI: OpenAIConfig{
			BaseURL:         "https://api.openai.com",
			ChatModel:       "gpt-4o-mini",
			EmbedModel:      "text-embedding-3-large",
			EmbedDimensions: 2048,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			TopK:        3,
			MaxChunkLen: 200,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "dossier")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dossier"
	}
	return filepath.Join(home, ".local", "share", "dossier")
}

// keySpec maps one environment variable onto a config field.
type keySpec struct {
	env   string
	isInt bool
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "DOSSIER_SERVER_PORT", isInt: true,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "DOSSIER_OPENAI_BASE_URL",
		apply: func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
	},
	{
		env: "DOSSIER_OPENAI_API_KEY",
		apply: func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
	},
	{
		env: "DOSSIER_OPENAI_CHAT_MODEL",
		apply: func(cfg *Config, v any) { cfg.OpenAI.ChatModel = v.(string) },
	},
	{
		env: "DOSSIER_OPENAI_EMBED_MODEL",
		apply: func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
	},
	{
		env: "DOSSIER_OPENAI_EMBED_DIMENSIONS", isInt: true,
		apply: func(cfg *Config, v any) { cfg.OpenAI.EmbedDimensions = v.(int) },
	},
	{
		env: "DOSSIER_STORAGE_DATA_DIR",
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "DOSSIER_RETRIEVAL_TOP_K", isInt: true,
		apply: func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
	},
	{
		env: "DOSSIER_RETRIEVAL_MAX_CHUNK_LEN", isInt: true,
		apply: func(cfg *Config, v any) { cfg.Retrieval.MaxChunkLen = v.(int) },
	},
	{
		env: "DOSSIER_LOG_LEVEL",
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

// KeyValue is one resolved configuration entry for display.
type KeyValue struct {
	Key   string
	Value string
}

// ShowAll returns the resolved configuration as displayable key/value
// pairs. The API key is redacted.
func ShowAll(cfg Config) []KeyValue {
	redacted := ""
	if cfg.OpenAI.APIKey != "" {
		redacted = "****"
	}
	return []KeyValue{
		{"server.port", strconv.Itoa(cfg.Server.Port)},
		{"openai.base_url", cfg.OpenAI.BaseURL},
		{"openai.api_key", redacted},
		{"openai.chat_model", cfg.OpenAI.ChatModel},
		{"openai.embed_model", cfg.OpenAI.EmbedModel},
		{"openai.embed_dimensions", strconv.Itoa(cfg.OpenAI.EmbedDimensions)},
		{"storage.data_dir", cfg.Storage.DataDir},
		{"retrieval.top_k", strconv.Itoa(cfg.Retrieval.TopK)},
		{"retrieval.max_chunk_len", strconv.Itoa(cfg.Retrieval.MaxChunkLen)},
		{"log.level", cfg.Log.Level},
	}
}

// Load reads configuration from an optional .env file and DOSSIER_*
// environment variables on top of defaults. The OpenAI API key is required.
func Load() (Config, error) {
	// Missing .env is fine; env vars still apply.
	_ = godotenv.Load()
	return loadFromEnv()
}

func loadFromEnv() (Config, error) {
	cfg := defaults()

	for _, spec := range specs {
		raw, ok := os.LookupEnv(spec.env)
		if !ok || raw == "" {
			continue
		}
		if spec.isInt {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return Config{}, fmt.Errorf("parsing %s=%q: %w", spec.env, raw, err)
			}
			spec.apply(&cfg, v)
			continue
		}
		spec.apply(&cfg, raw)
	}

	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: set DOSSIER_OPENAI_API_KEY (env or .env)")
	}
	return cfg, nil
}
