package flow

import (
	"github.com/nadzzz/roadman/internal/api"
	"github.com/nadzzz/roadman/internal/audio"
)

// FlowState is the phase of an interaction cycle.
type FlowState int

const (
	Idle FlowState = iota
	AwaitingTranscription
	AwaitingGeneration
	AwaitingSynthesis
	// ShowingResponse is never a controller phase. State.Status reports it
	// for an idle controller whose response view is open.
	ShowingResponse
)

func (s FlowState) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingTranscription:
		return "awaiting_transcription"
	case AwaitingGeneration:
		return "awaiting_generation"
	case AwaitingSynthesis:
		return "awaiting_synthesis"
	case ShowingResponse:
		return "showing_response"
	default:
		return "unknown"
	}
}

// Busy reports whether a service call is outstanding.
func (s FlowState) Busy() bool {
	return s == AwaitingTranscription || s == AwaitingGeneration || s == AwaitingSynthesis
}

// RawAudio is a recording submitted for transcription.
type RawAudio struct {
	Data        []byte
	ContentType string
}

// Response is the generated reply of a cycle.
type Response struct {
	DisplayText string
	SpeechText  string
}

// State is a snapshot of a controller. Snapshots are values; changing one
// has no effect on the controller.
type State struct {
	Phase FlowState

	// HasAudio is true while a recording is held for transcription.
	HasAudio bool

	Transcript string
	Mode       api.Mode
	Response   Response

	// Audio is the synthesized reply of the last successful cycle, if any.
	Audio *audio.Handle

	ShowingResponse bool

	// LastError describes the failure that ended the last cycle early.
	LastError string

	// Cycle counts started cycles.
	Cycle uint64
}

// Status folds the response view into the phase.
func (s State) Status() FlowState {
	if s.Phase == Idle && s.ShowingResponse {
		return ShowingResponse
	}
	return s.Phase
}
