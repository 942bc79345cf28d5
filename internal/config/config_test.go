package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DOSSIER_OPENAI_API_KEY", "sk-test")

	cfg, err := loadFromEnv()
	if err != nil {
		t.Fatalf("loadFromEnv: %v", err)
	}
	if cfg.Server.Port != 4600 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.OpenAI.ChatModel != "gpt-4o-mini" {
		t.Errorf("chat model = %q", cfg.OpenAI.ChatModel)
	}
	if cfg.OpenAI.EmbedDimensions != 2048 {
		t.Errorf("embed dimensions = %d", cfg.OpenAI.EmbedDimensions)
	}
	if cfg.Retrieval.TopK != 3 || cfg.Retrieval.MaxChunkLen != 200 {
		t.Errorf("retrieval = %+v", cfg.Retrieval)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DOSSIER_OPENAI_API_KEY", "sk-test")
	t.Setenv("DOSSIER_SERVER_PORT", "9999")
	t.Setenv("DOSSIER_OPENAI_EMBED_DIMENSIONS", "256")
	t.Setenv("DOSSIER_LOG_LEVEL", "debug")

	cfg, err := loadFromEnv()
	if err != nil {
		t.Fatalf("loadFromEnv: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.OpenAI.EmbedDimensions != 256 {
		t.Errorf("embed dimensions = %d, want 256", cfg.OpenAI.EmbedDimensions)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("DOSSIER_OPENAI_API_KEY", "")
	if _, err := loadFromEnv(); err == nil {
		t.Error("want error for missing API key, got nil")
	}
}

func TestLoad_BadIntValue(t *testing.T) {
	t.Setenv("DOSSIER_OPENAI_API_KEY", "sk-test")
	t.Setenv("DOSSIER_SERVER_PORT", "not-a-number")
	if _, err := loadFromEnv(); err == nil {
		t.Error("want error for bad int value, got nil")
	}
}
