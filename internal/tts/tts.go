// Package tts defines the interface for text-to-speech synthesis.
//
// roadman speaks the phonetic rendering of every generated reply. The
// synthesized clip travels back to the flow controller as an encoded audio
// file (MP3 from ElevenLabs, WAV from Piper).
package tts

import "context"

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Voice overrides the configured voice.
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Name returns the backend identifier (e.g., "elevenlabs", "piper").
	Name() string

	// Synthesize generates an encoded audio file from the given text.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the synthesized audio file.
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/mpeg").
	ContentType string
}
