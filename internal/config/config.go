// Package config handles loading and validating the roadman configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for the roadman daemon.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Transports  TransportsConfig  `mapstructure:"transports"`
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	TTS         TTSConfig         `mapstructure:"tts"`
	Flow        FlowConfig        `mapstructure:"flow"`
	Session     SessionConfig     `mapstructure:"session"`
	Sample      SampleConfig      `mapstructure:"sample"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC health transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP/WebSocket transport.
type HTTPConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimit      int      `mapstructure:"rate_limit"` // service calls per IP per minute, 0 disables
}

// InterpreterConfig selects and configures the transcription + generation backend.
type InterpreterConfig struct {
	Backend string       `mapstructure:"backend"` // "openai" or "local"
	OpenAI  OpenAIConfig `mapstructure:"openai"`
	Local   LocalConfig  `mapstructure:"local"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey             string  `mapstructure:"api_key"`
	BaseURL            string  `mapstructure:"base_url"`
	TranscriptionModel string  `mapstructure:"transcription_model"`
	CompletionModel    string  `mapstructure:"completion_model"`
	Temperature        float32 `mapstructure:"temperature"`
}

// LocalConfig holds self-hosted model settings.
type LocalConfig struct {
	WhisperEndpoint string `mapstructure:"whisper_endpoint"`
	WhisperType     string `mapstructure:"whisper_type"` // "openai" (default) or "asr" (ahmetoner/whisper-asr-webservice)
	LLMEndpoint     string `mapstructure:"llm_endpoint"`
	LLMModel        string `mapstructure:"llm_model"` // Ollama model name (e.g., "llama3.2:1b")
	VADFilter       bool   `mapstructure:"vad_filter"`
	Language        string `mapstructure:"language"` // ISO-639-1 default language
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Backend    string           `mapstructure:"backend"` // "elevenlabs" or "piper"
	ElevenLabs ElevenLabsConfig `mapstructure:"elevenlabs"`
	Piper      PiperConfig      `mapstructure:"piper"`
}

// ElevenLabsConfig holds ElevenLabs API settings.
type ElevenLabsConfig struct {
	APIKey     string  `mapstructure:"api_key"`
	BaseURL    string  `mapstructure:"base_url"`
	VoiceID    string  `mapstructure:"voice_id"`
	ModelID    string  `mapstructure:"model_id"`
	Stability  float64 `mapstructure:"stability"`
	Similarity float64 `mapstructure:"similarity_boost"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
type PiperConfig struct {
	Endpoint string `mapstructure:"endpoint"` // Wyoming TCP endpoint (host:port)
	Voice    string `mapstructure:"voice"`
}

// FlowConfig chooses where the interaction flow sends its three service calls.
//
// With backend "inprocess" the controller calls the configured interpreter and
// synthesizer directly. With "remote" it calls the HTTP service contracts of
// another deployment at RemoteURL.
type FlowConfig struct {
	Backend   string        `mapstructure:"backend"`
	RemoteURL string        `mapstructure:"remote_url"`
	Timeout   time.Duration `mapstructure:"timeout"` // per remote call, enforced by the HTTP client
}

// SessionConfig controls the in-memory session registry.
type SessionConfig struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// SampleConfig configures the sample clip and how clips are played.
type SampleConfig struct {
	Path    string `mapstructure:"path"`
	Command string `mapstructure:"command"` // e.g. "ffplay -nodisp -autoexit -"; empty decodes only
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// A .env file in the working directory is loaded into the environment first.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./roadman.yaml, ./configs/roadman.yaml, /etc/roadman/roadman.yaml.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.http.allowed_origins", []string{"*"})
	v.SetDefault("transports.http.rate_limit", 60)
	v.SetDefault("interpreter.backend", "openai")
	v.SetDefault("interpreter.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("interpreter.openai.base_url", "")
	v.SetDefault("interpreter.openai.transcription_model", "whisper-1")
	v.SetDefault("interpreter.openai.completion_model", "gpt-4o-mini")
	v.SetDefault("interpreter.openai.temperature", 0.7)
	v.SetDefault("interpreter.local.whisper_endpoint", "http://localhost:8000/v1/audio/transcriptions")
	v.SetDefault("interpreter.local.whisper_type", "openai")
	v.SetDefault("interpreter.local.llm_endpoint", "http://localhost:11434/api/generate")
	v.SetDefault("interpreter.local.llm_model", "llama3")
	v.SetDefault("interpreter.local.vad_filter", false)
	v.SetDefault("interpreter.local.language", "en")
	v.SetDefault("tts.backend", "elevenlabs")
	v.SetDefault("tts.elevenlabs.api_key", "${ELEVENLABS_API_KEY}")
	v.SetDefault("tts.elevenlabs.base_url", "https://api.elevenlabs.io")
	v.SetDefault("tts.elevenlabs.voice_id", "JBFqnCBsd6RMkjVDRZzb")
	v.SetDefault("tts.elevenlabs.model_id", "eleven_multilingual_v2")
	v.SetDefault("tts.elevenlabs.stability", 0.5)
	v.SetDefault("tts.elevenlabs.similarity_boost", 0.75)
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.piper.voice", "en_GB-alan-medium")
	v.SetDefault("flow.backend", "inprocess")
	v.SetDefault("flow.remote_url", "")
	v.SetDefault("flow.timeout", 60*time.Second)
	v.SetDefault("session.idle_ttl", 30*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("sample.path", "./sample.mp3")
	v.SetDefault("sample.command", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("roadman")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/roadman")
	}

	// Environment variables: ROADMAN_SERVER_HEALTH_PORT, ROADMAN_TTS_BACKEND, etc.
	v.SetEnvPrefix("ROADMAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}")
	cfg.Interpreter.OpenAI.APIKey = resolveEnvRef(cfg.Interpreter.OpenAI.APIKey)
	cfg.TTS.ElevenLabs.APIKey = resolveEnvRef(cfg.TTS.ElevenLabs.APIKey)

	return &cfg, nil
}

// Validate reports the first configuration problem that would stop the daemon.
func (c *Config) Validate() error {
	if err := validPort("server.health_port", c.Server.HealthPort); err != nil {
		return err
	}
	if c.Transports.HTTP.Enabled {
		if err := validPort("transports.http.port", c.Transports.HTTP.Port); err != nil {
			return err
		}
	}
	if c.Transports.GRPC.Enabled {
		if err := validPort("transports.grpc.port", c.Transports.GRPC.Port); err != nil {
			return err
		}
	}

	switch c.Interpreter.Backend {
	case "openai", "local":
	default:
		return fmt.Errorf("interpreter.backend: unknown backend %q", c.Interpreter.Backend)
	}

	switch c.TTS.Backend {
	case "elevenlabs", "piper":
	default:
		return fmt.Errorf("tts.backend: unknown backend %q", c.TTS.Backend)
	}

	switch c.Flow.Backend {
	case "inprocess":
	case "remote":
		if c.Flow.RemoteURL == "" {
			return errors.New("flow.remote_url is required when flow.backend is remote")
		}
	default:
		return fmt.Errorf("flow.backend: unknown backend %q", c.Flow.Backend)
	}

	if c.Session.IdleTTL <= 0 {
		return errors.New("session.idle_ttl must be positive")
	}
	return nil
}

func validPort(key string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s: invalid port %d", key, port)
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
// An unset variable resolves to the empty string.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
