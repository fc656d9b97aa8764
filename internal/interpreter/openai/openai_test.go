package openai

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nadzzz/roadman/internal/api"
	"github.com/nadzzz/roadman/internal/config"
	"github.com/nadzzz/roadman/internal/interpreter"
)

func newTestInterpreter(t *testing.T, h http.HandlerFunc) *Interpreter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.OpenAIConfig{
		APIKey:      "sk-test",
		BaseURL:     srv.URL + "/v1",
		Temperature: 0.5,
	})
}

func TestRespond(t *testing.T) {
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}

	i := newTestInterpreter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "{\"translation\": \"wagwan\", \"phonetic\": \"wag-one\"}"},
				"finish_reason": "stop"
			}]
		}`)
	})

	reply, err := i.Respond(t.Context(), "hello", api.ModeTranslate)
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if reply.Translation != "wagwan" || reply.Phonetic != "wag-one" {
		t.Errorf("reply = %+v", reply)
	}

	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want default gpt-4o-mini", gotBody.Model)
	}
	if gotBody.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %q, want json_object", gotBody.ResponseFormat.Type)
	}
	if len(gotBody.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(gotBody.Messages))
	}
	if gotBody.Messages[0].Content != interpreter.SystemPrompt(api.ModeTranslate) {
		t.Errorf("system prompt does not match translate mode")
	}
	if gotBody.Messages[1].Role != "user" || gotBody.Messages[1].Content != "hello" {
		t.Errorf("user message = %+v", gotBody.Messages[1])
	}
}

func TestRespondErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"error": {"message": "Incorrect API key", "type": "invalid_request_error"}}`,
			wantErr: "invalid OpenAI API key",
		},
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			body:    `{"error": {"message": "slow down", "type": "rate_limit"}}`,
			wantErr: "rate limit",
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			body:    `{"id": "x", "object": "chat.completion", "choices": []}`,
			wantErr: "no choices",
		},
		{
			name:    "empty content",
			status:  http.StatusOK,
			body:    `{"id": "x", "choices": [{"index": 0, "message": {"role": "assistant", "content": ""}}]}`,
			wantErr: "parsing reply",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := newTestInterpreter(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := i.Respond(t.Context(), "hello", api.ModeAsk)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestTranscribe(t *testing.T) {
	i := newTestInterpreter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %s, want /v1/audio/transcriptions", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q, want whisper-1", got)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q, want verbose_json", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file field: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		if hdr.Filename != "audio.webm" {
			t.Errorf("filename = %q, want audio.webm", hdr.Filename)
		}
		data, _ := io.ReadAll(f)
		if string(data) != "RIFFdata" {
			t.Errorf("uploaded %q", data)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"task": "transcribe", "language": "english", "duration": 1.2, "text": "hello there"}`)
	})

	res, err := i.Transcribe(t.Context(), []byte("RIFFdata"), "audio/webm", interpreter.TranscribeOpts{Prompt: interpreter.TranscriptionPrompt})
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if res.Text != "hello there" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Language != "en" {
		t.Errorf("language = %q, want en", res.Language)
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]string{
		"EN":      "en",
		"english": "en",
		"French":  "fr",
		"klingon": "klingon",
		"":        "",
	}
	for in, want := range tests {
		if got := normalizeLanguage(in); got != want {
			t.Errorf("normalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
