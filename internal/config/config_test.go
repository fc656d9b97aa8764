package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ELEVENLABS_API_KEY", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Interpreter.Backend != "openai" {
		t.Errorf("interpreter backend = %q, want openai", cfg.Interpreter.Backend)
	}
	if cfg.Interpreter.OpenAI.APIKey != "sk-test" {
		t.Errorf("openai api key = %q, want resolved env ref", cfg.Interpreter.OpenAI.APIKey)
	}
	if cfg.TTS.ElevenLabs.APIKey != "" {
		t.Errorf("elevenlabs api key = %q, want empty for unset env ref", cfg.TTS.ElevenLabs.APIKey)
	}
	if cfg.Flow.Backend != "inprocess" {
		t.Errorf("flow backend = %q, want inprocess", cfg.Flow.Backend)
	}
	if cfg.Flow.Timeout != 60*time.Second {
		t.Errorf("flow timeout = %v, want 60s", cfg.Flow.Timeout)
	}
	if cfg.Transports.HTTP.Port != 8080 {
		t.Errorf("http port = %d, want 8080", cfg.Transports.HTTP.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roadman.yaml")
	yaml := `
interpreter:
  backend: local
  local:
    llm_model: llama3.2:1b
tts:
  backend: piper
  piper:
    endpoint: piper:10200
flow:
  timeout: 15s
session:
  idle_ttl: 5m
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROADMAN_TRANSPORTS_HTTP_PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Interpreter.Backend != "local" || cfg.Interpreter.Local.LLMModel != "llama3.2:1b" {
		t.Errorf("interpreter = %+v", cfg.Interpreter)
	}
	if cfg.TTS.Backend != "piper" || cfg.TTS.Piper.Endpoint != "piper:10200" {
		t.Errorf("tts = %+v", cfg.TTS)
	}
	if cfg.Flow.Timeout != 15*time.Second {
		t.Errorf("flow timeout = %v, want 15s", cfg.Flow.Timeout)
	}
	if cfg.Session.IdleTTL != 5*time.Minute {
		t.Errorf("idle ttl = %v, want 5m", cfg.Session.IdleTTL)
	}
	if cfg.Transports.HTTP.Port != 9090 {
		t.Errorf("http port = %d, want env override 9090", cfg.Transports.HTTP.Port)
	}
	// Unset keys keep their defaults.
	if cfg.Interpreter.Local.WhisperType != "openai" {
		t.Errorf("whisper type = %q, want default openai", cfg.Interpreter.Local.WhisperType)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}

func validConfig() Config {
	return Config{
		Server:      ServerConfig{HealthPort: 8081},
		Transports:  TransportsConfig{HTTP: HTTPConfig{Enabled: true, Port: 8080}},
		Interpreter: InterpreterConfig{Backend: "openai"},
		TTS:         TTSConfig{Backend: "elevenlabs"},
		Flow:        FlowConfig{Backend: "inprocess"},
		Session:     SessionConfig{IdleTTL: time.Minute},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{name: "valid configuration", mutate: func(c *Config) {}},
		{
			name:     "invalid health port",
			mutate:   func(c *Config) { c.Server.HealthPort = 70000 },
			errorMsg: "server.health_port",
		},
		{
			name:     "invalid http port",
			mutate:   func(c *Config) { c.Transports.HTTP.Port = 0 },
			errorMsg: "transports.http.port",
		},
		{
			name:   "disabled http transport ignores port",
			mutate: func(c *Config) { c.Transports.HTTP = HTTPConfig{} },
		},
		{
			name:     "invalid grpc port",
			mutate:   func(c *Config) { c.Transports.GRPC = GRPCConfig{Enabled: true, Port: -1} },
			errorMsg: "transports.grpc.port",
		},
		{
			name:     "unknown interpreter",
			mutate:   func(c *Config) { c.Interpreter.Backend = "gemini" },
			errorMsg: "interpreter.backend",
		},
		{
			name:     "unknown tts",
			mutate:   func(c *Config) { c.TTS.Backend = "espeak" },
			errorMsg: "tts.backend",
		},
		{
			name:     "remote flow without url",
			mutate:   func(c *Config) { c.Flow.Backend = "remote" },
			errorMsg: "flow.remote_url",
		},
		{
			name: "remote flow with url",
			mutate: func(c *Config) {
				c.Flow.Backend = "remote"
				c.Flow.RemoteURL = "http://roadman.local"
			},
		},
		{
			name:     "zero idle ttl",
			mutate:   func(c *Config) { c.Session.IdleTTL = 0 },
			errorMsg: "session.idle_ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestResolveEnvRef(t *testing.T) {
	t.Setenv("ROADMAN_TEST_SECRET", "s3cret")

	tests := map[string]string{
		"${ROADMAN_TEST_SECRET}": "s3cret",
		"${ROADMAN_TEST_UNSET}":  "",
		"literal":                "literal",
		"${incomplete":           "${incomplete",
	}
	for in, want := range tests {
		if got := resolveEnvRef(in); got != want {
			t.Errorf("resolveEnvRef(%q) = %q, want %q", in, got, want)
		}
	}
}
