// Package local implements the Interpreter interface using self-hosted models.
//
// It supports any Whisper-compatible transcription endpoint (e.g., whisper.cpp
// server, faster-whisper, whisper-asr-webservice) and either Ollama's
// /api/generate or an OpenAI-compatible chat endpoint (vLLM, llama.cpp server).
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nadzzz/roadman/internal/api"
	"github.com/nadzzz/roadman/internal/config"
	"github.com/nadzzz/roadman/internal/interpreter"
)

// Interpreter uses self-hosted models for transcription and reply generation.
type Interpreter struct {
	whisperEndpoint string
	whisperType     string // "openai" or "asr"
	llmEndpoint     string
	llmModel        string
	vadFilter       bool
	defaultLanguage string
	client          *http.Client
}

// New creates a new local interpreter from config.
func New(cfg config.LocalConfig) *Interpreter {
	wt := cfg.WhisperType
	if wt == "" {
		wt = "openai"
	}
	model := cfg.LLMModel
	if model == "" {
		model = "llama3"
	}
	return &Interpreter{
		whisperEndpoint: cfg.WhisperEndpoint,
		whisperType:     wt,
		llmEndpoint:     cfg.LLMEndpoint,
		llmModel:        model,
		vadFilter:       cfg.VADFilter,
		defaultLanguage: cfg.Language,
		client:          &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the backend identifier.
func (i *Interpreter) Name() string { return "local" }

// Transcribe sends audio to the local Whisper-compatible endpoint.
// Supports two flavors:
//   - "openai": OpenAI-compatible API (whisper.cpp server, faster-whisper)
//   - "asr":    ahmetoner/whisper-asr-webservice (POST /asr with query params)
func (i *Interpreter) Transcribe(ctx context.Context, audio []byte, contentType string, opts interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	lang := opts.Language
	if lang == "" {
		lang = i.defaultLanguage
	}

	var (
		req *http.Request
		err error
	)
	switch i.whisperType {
	case "asr":
		req, err = i.asrRequest(ctx, audio, contentType, lang, opts.Prompt)
	default:
		req, err = i.openAIRequest(ctx, audio, contentType, lang, opts.Prompt)
	}
	if err != nil {
		return nil, err
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s transcription request: %w", i.whisperType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%s transcription failed (status %d): %s", i.whisperType, resp.StatusCode, respBody)
	}

	// Both flavors answer {"text": "...", "language": "..."} for verbose_json.
	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding transcription: %w", err)
	}

	slog.Debug("local transcription complete", "flavor", i.whisperType, "text_length", len(result.Text), "language", result.Language)
	return &interpreter.TranscribeResult{
		Text:     strings.TrimSpace(result.Text),
		Language: result.Language,
	}, nil
}

// asrRequest builds a whisper-asr-webservice request.
// API: POST /asr?task=transcribe&language=en&output=json&vad_filter=true
// Body: multipart/form-data with field "audio_file"
func (i *Interpreter) asrRequest(ctx context.Context, audio []byte, contentType, lang, prompt string) (*http.Request, error) {
	body, formType, err := multipartAudio("audio_file", contentType, audio, nil)
	if err != nil {
		return nil, err
	}

	q := make(url.Values)
	q.Set("task", "transcribe")
	q.Set("output", "verbose_json")
	q.Set("encode", "true")
	if lang != "" {
		q.Set("language", lang)
	}
	if prompt != "" {
		q.Set("initial_prompt", prompt)
	}
	if i.vadFilter {
		q.Set("vad_filter", "true")
	}

	reqURL := i.whisperEndpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", formType)

	slog.Debug("whisper-asr request", "url", reqURL)
	return req, nil
}

// openAIRequest builds a request for an OpenAI-compatible whisper endpoint.
func (i *Interpreter) openAIRequest(ctx context.Context, audio []byte, contentType, lang, prompt string) (*http.Request, error) {
	fields := map[string]string{"response_format": "verbose_json"}
	if lang != "" {
		fields["language"] = lang
	}
	if prompt != "" {
		fields["prompt"] = prompt
	}

	body, formType, err := multipartAudio("file", contentType, audio, fields)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.whisperEndpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", formType)
	return req, nil
}

func multipartAudio(field, contentType string, audio []byte, fields map[string]string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(field, "audio"+interpreter.ExtFromContentType(contentType))
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("writing audio: %w", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

// Respond sends the transcript to the local LLM endpoint.
// Supports Ollama's /api/generate and OpenAI-compatible /v1/chat/completions.
func (i *Interpreter) Respond(ctx context.Context, transcript string, mode api.Mode) (*interpreter.Reply, error) {
	systemPrompt := interpreter.SystemPrompt(mode)

	var reqBody map[string]any
	if strings.HasSuffix(i.llmEndpoint, "/api/generate") {
		reqBody = map[string]any{
			"model":  i.llmModel,
			"system": systemPrompt,
			"prompt": transcript,
			"stream": false,
			"format": "json",
		}
	} else {
		reqBody = map[string]any{
			"model": i.llmModel,
			"messages": []map[string]string{
				{"role": "system", "content": systemPrompt},
				{"role": "user", "content": transcript},
			},
			"temperature": 0.7,
			"stream":      false,
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.llmEndpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local LLM request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("local LLM failed (status %d): %s", resp.StatusCode, respBody)
	}

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading LLM response: %w", err)
	}

	reply, err := interpreter.ParseReply(extractContent(respData))
	if err != nil {
		return nil, fmt.Errorf("parsing reply: %w", err)
	}

	slog.Debug("local reply generated", "mode", mode, "text_length", len(reply.Translation))
	return reply, nil
}

// Close is a no-op for the local interpreter.
func (i *Interpreter) Close() error { return nil }

func extractContent(data []byte) string {
	// OpenAI-compatible: {"choices": [{"message": {"content": "..."}}]}
	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &chatResp); err == nil && len(chatResp.Choices) > 0 {
		return chatResp.Choices[0].Message.Content
	}

	// Ollama: {"response": "..."}
	var ollamaResp struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &ollamaResp); err == nil && ollamaResp.Response != "" {
		return ollamaResp.Response
	}

	return string(data)
}
