// Package flow implements the interaction flow controller.
//
// A cycle takes a recording (or typed text) through three service calls:
// transcription, response generation and speech synthesis. The controller
// runs at most one cycle at a time; submissions made while a cycle is in
// progress are ignored. A failed call ends the cycle, is logged and recorded
// in State.LastError, and is never retried.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/nadzzz/roadman/internal/api"
	"github.com/nadzzz/roadman/internal/audio"
	"github.com/nadzzz/roadman/internal/metrics"
)

// Transcriber converts a recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, contentType string) (string, error)
}

// Generator produces a reply for a transcript.
type Generator interface {
	Generate(ctx context.Context, req api.CompletionRequest) (*api.CompletionResponse, error)
}

// Synthesizer renders speech text as hex-encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req api.SpeechRequest) (*api.SpeechResponse, error)
}

// Services bundles the three collaborators of a cycle.
type Services interface {
	Transcriber
	Generator
	Synthesizer
}

var (
	// ErrCycleActive is returned by operations refused while a cycle runs.
	ErrCycleActive = errors.New("interaction cycle in progress")

	// ErrNoAudio is returned by PlayResponse when there is nothing to play.
	ErrNoAudio = errors.New("no synthesized audio")
)

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics records cycle metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller owns the state of one interaction session.
type Controller struct {
	svc     Services
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	st     State
	raw    *RawAudio
	idle   chan struct{} // closed while no cycle runs
	subs   map[int]chan State
	subID  int
	closed bool
}

// New creates an idle controller in translate mode.
func New(svc Services, opts ...Option) *Controller {
	idle := make(chan struct{})
	close(idle)

	c := &Controller{
		svc:    svc,
		logger: slog.Default(),
		st:     State{Mode: api.ModeTranslate},
		idle:   idle,
		subs:   make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

// SubmitAudio runs a full cycle for a recording and returns when it ends.
// It returns false without changing anything if the recording is empty or a
// cycle is already in progress.
func (c *Controller) SubmitAudio(ctx context.Context, raw RawAudio) bool {
	if !c.beginAudio(raw) {
		return false
	}
	c.runAudio(ctx)
	return true
}

// StartAudio is SubmitAudio with the cycle running in the background. The
// cycle is not cancelled when ctx is.
func (c *Controller) StartAudio(ctx context.Context, raw RawAudio) bool {
	if !c.beginAudio(raw) {
		return false
	}
	go c.runAudio(context.WithoutCancel(ctx))
	return true
}

// SubmitText runs a cycle for typed text, skipping transcription. An empty
// mode keeps the current one.
func (c *Controller) SubmitText(ctx context.Context, text string, mode api.Mode) bool {
	if !c.beginText(text, mode) {
		return false
	}
	c.runGeneration(ctx)
	return true
}

// StartText is SubmitText with the cycle running in the background.
func (c *Controller) StartText(ctx context.Context, text string, mode api.Mode) bool {
	if !c.beginText(text, mode) {
		return false
	}
	go c.runGeneration(context.WithoutCancel(ctx))
	return true
}

// SetMode selects the generation mode for the next cycle.
func (c *Controller) SetMode(mode api.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", api.ErrInvalidInput, mode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.Phase.Busy() {
		return ErrCycleActive
	}
	c.st.Mode = mode
	c.publishLocked()
	return nil
}

// ToggleResponseView flips the response view. It does nothing and returns
// false while a reply is being generated or synthesized.
func (c *Controller) ToggleResponseView() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.st.Phase == AwaitingGeneration || c.st.Phase == AwaitingSynthesis {
		return false
	}
	c.st.ShowingResponse = !c.st.ShowingResponse
	c.publishLocked()
	return true
}

// PlayResponse plays the synthesized reply of the last cycle.
func (c *Controller) PlayResponse(ctx context.Context, p audio.Player) error {
	c.mu.Lock()
	h := c.st.Audio
	c.mu.Unlock()

	if h == nil {
		return ErrNoAudio
	}
	return p.Play(ctx, h)
}

// Wait blocks until no cycle is running or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel that receives a snapshot after every change,
// starting with the current state. Only the latest snapshot is kept for a
// slow reader. The returned func unsubscribes and closes the channel; Close
// closes it as well.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	ch <- c.st
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.subID
	c.subID++
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
}

// Close ends every subscription. Later subscribers get the current snapshot
// on an already closed channel. A running cycle is not interrupted.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Controller) publishLocked() {
	snap := c.st
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (c *Controller) beginAudio(raw RawAudio) bool {
	if len(raw.Data) == 0 {
		c.logger.Warn("ignoring submission", "error", fmt.Errorf("%w: empty audio", api.ErrInvalidInput))
		return false
	}
	return c.begin("audio", func(st *State) {
		c.raw = &raw
		st.Phase = AwaitingTranscription
		st.HasAudio = true
	})
}

func (c *Controller) beginText(text string, mode api.Mode) bool {
	if strings.TrimSpace(text) == "" {
		c.logger.Warn("ignoring submission", "error", fmt.Errorf("%w: empty text", api.ErrInvalidInput))
		return false
	}
	if mode != "" && !mode.Valid() {
		c.logger.Warn("ignoring submission", "error", fmt.Errorf("%w: unknown mode %q", api.ErrInvalidInput, mode))
		return false
	}
	return c.begin("text", func(st *State) {
		st.Phase = AwaitingGeneration
		st.Transcript = text
		if mode != "" {
			st.Mode = mode
		}
	})
}

// begin takes the single-cycle guard.
func (c *Controller) begin(entry string, init func(st *State)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.st.Phase.Busy() {
		c.metrics.RecordRejected()
		c.logger.Debug("submission ignored, cycle in progress", "phase", c.st.Phase, "entry", entry)
		return false
	}

	c.st.Cycle++
	c.st.LastError = ""
	c.idle = make(chan struct{})
	init(&c.st)
	c.publishLocked()

	c.metrics.RecordCycle(entry)
	c.logger.Info("cycle started", "cycle", c.st.Cycle, "entry", entry, "mode", c.st.Mode)
	return true
}

func (c *Controller) runAudio(ctx context.Context) {
	c.mu.Lock()
	raw := c.raw
	cycle := c.st.Cycle
	c.mu.Unlock()

	start := time.Now()
	text, err := c.svc.Transcribe(ctx, raw.Data, raw.ContentType)
	c.metrics.RecordStage(api.ServiceTranscription, time.Since(start).Seconds(), err)

	c.mu.Lock()
	c.raw = nil
	c.st.HasAudio = false
	c.mu.Unlock()

	if err != nil {
		c.fail(cycle, api.ServiceTranscription, err, false)
		return
	}
	if strings.TrimSpace(text) == "" {
		c.logger.Info("empty transcript, nothing to answer", "cycle", cycle)
		c.finish(func(st *State) { st.Transcript = "" })
		return
	}

	c.mu.Lock()
	c.st.Transcript = text
	c.mu.Unlock()
	c.runGeneration(ctx)
}

func (c *Controller) runGeneration(ctx context.Context) {
	c.mu.Lock()
	c.st.Phase = AwaitingGeneration
	c.st.Response = Response{}
	c.st.Audio = nil
	c.st.ShowingResponse = true
	cycle := c.st.Cycle
	req := api.CompletionRequest{
		Transcript: strings.TrimRightFunc(c.st.Transcript, unicode.IsSpace),
		Type:       c.st.Mode,
	}
	c.publishLocked()
	c.mu.Unlock()

	start := time.Now()
	resp, err := c.svc.Generate(ctx, req)
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	c.metrics.RecordStage(api.ServiceGeneration, time.Since(start).Seconds(), err)
	if err != nil {
		c.fail(cycle, api.ServiceGeneration, err, true)
		return
	}

	c.mu.Lock()
	c.st.Response = Response{DisplayText: resp.Translation, SpeechText: resp.Phonetic}
	c.st.Phase = AwaitingSynthesis
	c.publishLocked()
	c.mu.Unlock()

	c.runSynthesis(ctx, cycle, resp.Phonetic)
}

func (c *Controller) runSynthesis(ctx context.Context, cycle uint64, speech string) {
	start := time.Now()
	resp, err := c.svc.Synthesize(ctx, api.SpeechRequest{Speech: speech})
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	c.metrics.RecordStage(api.ServiceSynthesis, time.Since(start).Seconds(), err)
	if err != nil {
		c.fail(cycle, api.ServiceSynthesis, err, false)
		return
	}

	h, err := audio.FromHex(resp.ResponseAudio)
	if err != nil {
		c.metrics.RecordDecodeFailure()
		c.logger.Error("failed to decode response audio", "cycle", cycle, "error", err)
		c.finish(func(st *State) { st.LastError = err.Error() })
		return
	}

	c.logger.Info("cycle complete", "cycle", cycle, "audio_id", h.ID, "audio_bytes", h.Len())
	c.finish(func(st *State) { st.Audio = h })
}

// fail ends the cycle after a service call failed.
func (c *Controller) fail(cycle uint64, stage string, err error, hideResponse bool) {
	c.logger.Error("service call failed", "cycle", cycle, "stage", stage, "error", err)
	c.finish(func(st *State) {
		st.LastError = fmt.Sprintf("%s: %v", stage, err)
		if hideResponse {
			st.ShowingResponse = false
		}
	})
}

func (c *Controller) finish(update func(st *State)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	update(&c.st)
	c.st.Phase = Idle
	close(c.idle)
	c.publishLocked()
}
