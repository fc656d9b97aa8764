// Package openai implements the Interpreter interface using OpenAI's APIs.
//
// It uses the Audio Transcription API (Whisper) for speech-to-text, and the
// Chat Completions API in JSON mode for the roadman reply.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/roadman/internal/api"
	"github.com/nadzzz/roadman/internal/config"
	"github.com/nadzzz/roadman/internal/interpreter"
)

// Interpreter uses OpenAI APIs for transcription and response generation.
type Interpreter struct {
	client             *goopenai.Client
	transcriptionModel string
	completionModel    string
	temperature        float32
}

// New creates a new OpenAI interpreter from config.
func New(cfg config.OpenAIConfig) *Interpreter {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}

	model := cfg.TranscriptionModel
	if model == "" {
		model = goopenai.Whisper1
	}
	completion := cfg.CompletionModel
	if completion == "" {
		completion = goopenai.GPT4oMini
	}

	return &Interpreter{
		client:             goopenai.NewClientWithConfig(clientCfg),
		transcriptionModel: model,
		completionModel:    completion,
		temperature:        cfg.Temperature,
	}
}

// Name returns the backend identifier.
func (i *Interpreter) Name() string { return "openai" }

// Transcribe sends audio to the OpenAI Transcription API.
func (i *Interpreter) Transcribe(ctx context.Context, audio []byte, contentType string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	req := goopenai.AudioRequest{
		Model:    i.transcriptionModel,
		FilePath: "audio" + interpreter.ExtFromContentType(contentType),
		Reader:   bytes.NewReader(audio),
		Prompt:   opts.Prompt,
		Language: opts.Language,
		Format:   goopenai.AudioResponseFormatVerboseJSON,
	}

	resp, err := i.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}

	lang := normalizeLanguage(resp.Language)
	slog.Debug("transcription complete", "text_length", len(resp.Text), "language", lang)
	return &interpreter.TranscribeResult{
		Text:     resp.Text,
		Language: lang,
	}, nil
}

// Respond sends the transcript to the Chat Completions API and parses the
// JSON reply.
func (i *Interpreter) Respond(ctx context.Context, transcript string, mode api.Mode) (*interpreter.Reply, error) {
	req := goopenai.ChatCompletionRequest{
		Model: i.completionModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: interpreter.SystemPrompt(mode)},
			{Role: goopenai.ChatMessageRoleUser, Content: transcript},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: i.temperature,
	}

	resp, err := i.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", describe(err))
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices returned from chat API")
	}

	reply, err := interpreter.ParseReply(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing reply: %w", err)
	}

	slog.Debug("reply generated", "mode", mode, "text_length", len(reply.Translation))
	return reply, nil
}

// Close is a no-op for the OpenAI interpreter.
func (i *Interpreter) Close() error { return nil }

// describe adds a short diagnosis to well-known API failures.
func describe(err error) error {
	var apiErr *goopenai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.HTTPStatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("invalid OpenAI API key: %w", err)
	case http.StatusNotFound:
		return fmt.Errorf("model not found: %w", err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("OpenAI rate limit exceeded: %w", err)
	default:
		return err
	}
}

// normalizeLanguage converts full language names (as returned by OpenAI) to ISO-639-1 codes.
func normalizeLanguage(lang string) string {
	if len(lang) == 2 {
		return strings.ToLower(lang)
	}
	known := map[string]string{
		"english":    "en",
		"french":     "fr",
		"spanish":    "es",
		"german":     "de",
		"italian":    "it",
		"portuguese": "pt",
		"dutch":      "nl",
		"polish":     "pl",
		"yoruba":     "yo",
		"arabic":     "ar",
		"hindi":      "hi",
		"turkish":    "tr",
	}
	if code, ok := known[strings.ToLower(lang)]; ok {
		return code
	}
	return strings.ToLower(lang)
}
