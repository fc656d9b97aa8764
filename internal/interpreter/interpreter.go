// Package interpreter defines the interface for the transcription and
// response-generation backends.
//
// An interpreter turns recorded audio into text and turns text into a
// roadman-style reply. roadman ships with two backends: OpenAI (cloud) and
// Local (self-hosted whisper + Ollama).
package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nadzzz/roadman/internal/api"
)

// TranscribeOpts controls transcription behavior.
type TranscribeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en") to guide transcription.
	Language string

	// Prompt provides context to improve recognition of slang and names.
	Prompt string
}

// TranscribeResult holds the output of transcription.
type TranscribeResult struct {
	Text     string
	Language string
}

// Reply is a generated response: display text plus its phonetic rendering.
type Reply struct {
	Translation string
	Phonetic    string
}

// Interpreter is the interface for audio transcription and response generation.
type Interpreter interface {
	// Name returns the backend identifier (e.g., "openai", "local").
	Name() string

	// Transcribe converts audio bytes to text.
	Transcribe(ctx context.Context, audio []byte, contentType string, opts TranscribeOpts) (*TranscribeResult, error)

	// Respond produces a roadman reply to the transcript in the given mode.
	Respond(ctx context.Context, transcript string, mode api.Mode) (*Reply, error)

	// Close releases any resources held by the interpreter.
	Close() error
}

const replyFormat = `Return ONLY a JSON object with two string fields:
- "translation": the text to show the user
- "phonetic": the same text respelled the way it should be pronounced by a London speech synthesizer
  (drop silent letters, spell slang as it sounds, e.g. "wagwan" -> "wag-one")
Example: {"translation": "Wagwan fam, you good?", "phonetic": "Wag-one fam, yoo good?"}`

// SystemPrompt returns the roadman persona prompt for a mode.
func SystemPrompt(mode api.Mode) string {
	var sb strings.Builder
	sb.WriteString("You are a roadman from South London. You speak in authentic roadman slang ")
	sb.WriteString("(innit, bruv, fam, wagwan, peng, peak, allow it, mandem, ting).\n\n")

	switch mode {
	case api.ModeAsk:
		sb.WriteString("The user asks you a question. Answer it helpfully in two or three sentences, ")
		sb.WriteString("fully in character.\n\n")
	default:
		sb.WriteString("Translate the user's text into roadman slang. Keep the meaning, change the style. ")
		sb.WriteString("Do not answer or comment on it.\n\n")
	}

	sb.WriteString(replyFormat)
	return sb.String()
}

// TranscriptionPrompt biases speech recognition towards slang spellings.
const TranscriptionPrompt = "Wagwan bruv, innit, fam, mandem, peng, allow it."

// ParseReply extracts a Reply from model output. It accepts a bare JSON
// object, a JSON object inside a markdown code fence, or plain text, which is
// used for both fields.
func ParseReply(content string) (*Reply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty model response")
	}

	body := stripFence(content)
	var wrapper struct {
		Translation string `json:"translation"`
		Phonetic    string `json:"phonetic"`
	}
	if err := json.Unmarshal([]byte(body), &wrapper); err == nil {
		if wrapper.Translation == "" {
			return nil, fmt.Errorf("model response has no translation: %.200s", content)
		}
		if wrapper.Phonetic == "" {
			wrapper.Phonetic = wrapper.Translation
		}
		return &Reply{
			Translation: strings.TrimSpace(wrapper.Translation),
			Phonetic:    strings.TrimSpace(wrapper.Phonetic),
		}, nil
	}

	if strings.HasPrefix(body, "{") {
		return nil, fmt.Errorf("could not parse model response: %.200s", content)
	}
	return &Reply{Translation: content, Phonetic: content}, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtFromContentType maps an audio MIME type to a file extension for uploads.
func ExtFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "m4a"), strings.Contains(ct, "mp4"):
		return ".m4a"
	default:
		// Browser recordings are webm unless stated otherwise.
		return ".webm"
	}
}
