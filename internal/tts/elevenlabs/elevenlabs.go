// Package elevenlabs implements the TTS Synthesizer using the ElevenLabs
// text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nadzzz/roadman/internal/config"
	"github.com/nadzzz/roadman/internal/tts"
)

const defaultBaseURL = "https://api.elevenlabs.io"

// Synthesizer calls POST /v1/text-to-speech/{voice_id} and returns MP3 audio.
type Synthesizer struct {
	apiKey     string
	baseURL    string
	voiceID    string
	modelID    string
	stability  float64
	similarity float64
	client     *http.Client
}

// New creates a new ElevenLabs synthesizer from config.
func New(cfg config.ElevenLabsConfig) *Synthesizer {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Synthesizer{
		apiKey:     cfg.APIKey,
		baseURL:    base,
		voiceID:    cfg.VoiceID,
		modelID:    cfg.ModelID,
		stability:  cfg.Stability,
		similarity: cfg.Similarity,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "elevenlabs" }

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize converts text to MP3 audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if text == "" {
		return nil, errors.New("empty text for synthesis")
	}
	voice := opts.Voice
	if voice == "" {
		voice = s.voiceID
	}
	if voice == "" {
		return nil, errors.New("no elevenlabs voice configured")
	}

	body, err := json.Marshal(speechRequest{
		Text:    text,
		ModelID: s.modelID,
		VoiceSettings: voiceSettings{
			Stability:       s.stability,
			SimilarityBoost: s.similarity,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", s.baseURL, url.PathEscape(voice))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("elevenlabs failed (status %d): %s", resp.StatusCode, b)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("elevenlabs returned no audio")
	}

	slog.Debug("elevenlabs synthesis complete", "voice", voice, "bytes", len(audio))
	return &tts.SynthesizeResult{Audio: audio, ContentType: "audio/mpeg"}, nil
}

// Close is a no-op for the ElevenLabs synthesizer.
func (s *Synthesizer) Close() error { return nil }
