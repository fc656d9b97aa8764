// Package backend implements the three roadman services (transcription,
// response generation, speech synthesis) on top of the configured interpreter
// and synthesizer.
//
// The HTTP transport exposes a Service on /api/*, and the flow controller can
// call one directly when it runs in the same process.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/roadman/internal/api"
	"github.com/nadzzz/roadman/internal/audio"
	"github.com/nadzzz/roadman/internal/interpreter"
	"github.com/nadzzz/roadman/internal/tts"
)

// Service runs service calls against an interpreter and a synthesizer.
type Service struct {
	interpreter interpreter.Interpreter
	synthesizer tts.Synthesizer
}

// New creates a Service.
func New(interp interpreter.Interpreter, synth tts.Synthesizer) *Service {
	return &Service{interpreter: interp, synthesizer: synth}
}

// Transcribe converts recorded audio to text. An empty recording is rejected
// with api.ErrInvalidInput.
func (s *Service) Transcribe(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty audio", api.ErrInvalidInput)
	}

	start := time.Now()
	res, err := s.interpreter.Transcribe(ctx, data, contentType, interpreter.TranscribeOpts{
		Prompt: interpreter.TranscriptionPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", s.interpreter.Name(), err)
	}

	slog.Info("transcribed audio",
		"backend", s.interpreter.Name(),
		"audio_bytes", len(data),
		"language", res.Language,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res.Text, nil
}

// Generate produces a display text and a phonetic rendering for the transcript.
func (s *Service) Generate(ctx context.Context, req api.CompletionRequest) (*api.CompletionResponse, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, fmt.Errorf("%w: empty transcript", api.ErrInvalidInput)
	}
	mode := req.Type
	if mode == "" {
		mode = api.ModeTranslate
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", api.ErrInvalidInput, req.Type)
	}

	start := time.Now()
	reply, err := s.interpreter.Respond(ctx, req.Transcript, mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.interpreter.Name(), err)
	}

	slog.Info("generated response",
		"backend", s.interpreter.Name(),
		"mode", mode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &api.CompletionResponse{
		Translation: reply.Translation,
		Phonetic:    reply.Phonetic,
	}, nil
}

// Synthesize renders the speech text and returns it hex-encoded.
func (s *Service) Synthesize(ctx context.Context, req api.SpeechRequest) (*api.SpeechResponse, error) {
	if strings.TrimSpace(req.Speech) == "" {
		return nil, fmt.Errorf("%w: empty speech", api.ErrInvalidInput)
	}

	start := time.Now()
	res, err := s.synthesizer.Synthesize(ctx, req.Speech, tts.SynthesizeOpts{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.synthesizer.Name(), err)
	}

	slog.Info("synthesized speech",
		"backend", s.synthesizer.Name(),
		"content_type", res.ContentType,
		"audio_bytes", len(res.Audio),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &api.SpeechResponse{ResponseAudio: audio.EncodeHex(res.Audio)}, nil
}

// Close releases the interpreter and synthesizer.
func (s *Service) Close() error {
	ierr := s.interpreter.Close()
	serr := s.synthesizer.Close()
	if ierr != nil {
		return ierr
	}
	return serr
}
