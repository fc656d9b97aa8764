// Package api defines the wire contracts of the three services the interaction
// flow depends on (transcription, response generation, speech synthesis) and
// the error taxonomy shared by their clients and servers.
package api

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects which generation behavior the response service performs.
type Mode string

const (
	// ModeTranslate rewrites the transcript in roadman style.
	ModeTranslate Mode = "translate"

	// ModeAsk answers the transcript as an open-ended question, in roadman style.
	ModeAsk Mode = "ask"
)

// ParseMode validates a wire value. An empty value selects ModeTranslate.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeTranslate, "":
		return ModeTranslate, nil
	case ModeAsk:
		return ModeAsk, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, s)
	}
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeTranslate || m == ModeAsk
}

// Service names used in logs, metrics and TransportError.
const (
	ServiceTranscription = "transcription"
	ServiceGeneration    = "generation"
	ServiceSynthesis     = "synthesis"
)

// AudioFormField is the multipart field carrying the recorded audio.
const AudioFormField = "audioFile"

// AudioFileName is the file name attached to uploaded recordings.
const AudioFileName = "audio.webm"

// TranscriptionResponse is returned by the transcription service.
type TranscriptionResponse struct {
	Transcript Transcript `json:"transcript"`
}

// Transcript wraps the recognised text.
type Transcript struct {
	Text string `json:"text"`
}

// CompletionRequest is the body sent to the response generation service.
type CompletionRequest struct {
	Transcript string `json:"transcript"`
	Type       Mode   `json:"type"`
}

// CompletionResponse is returned by the response generation service.
type CompletionResponse struct {
	// Translation is the display text shown to the user.
	Translation string `json:"translation"`

	// Phonetic is the speech-ready rendering sent to synthesis.
	Phonetic string `json:"phonetic"`
}

// SpeechRequest is the body sent to the speech synthesis service.
type SpeechRequest struct {
	Speech string `json:"speech"`
}

// SpeechResponse is returned by the speech synthesis service.
type SpeechResponse struct {
	// ResponseAudio is the synthesized audio as a lowercase hex string.
	ResponseAudio string `json:"responseAudio"`
}

// ErrorResponse is the JSON body of a failed service call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrInvalidInput marks empty or malformed caller input (empty text or audio,
// unknown mode).
var ErrInvalidInput = errors.New("invalid input")

// TransportError is a non-success response from one of the services.
type TransportError struct {
	Service string
	Status  int
	Body    string
}

func (e *TransportError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed (status %d)", e.Service, e.Status)
	}
	return fmt.Sprintf("%s failed (status %d): %s", e.Service, e.Status, e.Body)
}
