package flow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nadzzz/roadman/internal/api"
	"github.com/nadzzz/roadman/internal/audio"
	"github.com/nadzzz/roadman/internal/remote"
)

type fakeServices struct {
	mu sync.Mutex

	transcript    string
	transcribeErr error
	reply         *api.CompletionResponse
	generateErr   error
	audioHex      string
	synthErr      error

	onTranscribe func()
	onGenerate   func()
	onSynthesize func()

	transcribeCalls int
	generated       []api.CompletionRequest
	spoken          []string
}

func newFake() *fakeServices {
	return &fakeServices{
		transcript: "how far",
		reply:      &api.CompletionResponse{Translation: "wagwan", Phonetic: "wag-one"},
		audioHex:   "4f4b",
	}
}

func (f *fakeServices) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	if f.onTranscribe != nil {
		f.onTranscribe()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcribeCalls++
	return f.transcript, f.transcribeErr
}

func (f *fakeServices) Generate(_ context.Context, req api.CompletionRequest) (*api.CompletionResponse, error) {
	if f.onGenerate != nil {
		f.onGenerate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated = append(f.generated, req)
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.reply, nil
}

func (f *fakeServices) Synthesize(_ context.Context, req api.SpeechRequest) (*api.SpeechResponse, error) {
	if f.onSynthesize != nil {
		f.onSynthesize()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, req.Speech)
	if f.synthErr != nil {
		return nil, f.synthErr
	}
	return &api.SpeechResponse{ResponseAudio: f.audioHex}, nil
}

// gate blocks a fake call until released and reports when it was entered.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) hook() {
	close(g.entered)
	<-g.release
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("cycle did not finish: %v", err)
	}
}

func TestTextCycleEndToEnd(t *testing.T) {
	f := newFake()
	c := New(f)

	var duringSynthesis State
	f.onSynthesize = func() { duringSynthesis = c.State() }

	if !c.SubmitText(t.Context(), "how far", api.ModeTranslate) {
		t.Fatal("SubmitText() = false")
	}

	if duringSynthesis.Phase != AwaitingSynthesis || duringSynthesis.Response.DisplayText != "wagwan" {
		t.Errorf("display text not visible before synthesis: %+v", duringSynthesis)
	}
	if len(f.spoken) != 1 || f.spoken[0] != "wag-one" {
		t.Errorf("synthesis requests = %q, want [wag-one]", f.spoken)
	}

	st := c.State()
	if st.Phase != Idle || st.Status() != ShowingResponse {
		t.Errorf("phase = %v status = %v", st.Phase, st.Status())
	}
	if st.Response != (Response{DisplayText: "wagwan", SpeechText: "wag-one"}) {
		t.Errorf("response = %+v", st.Response)
	}
	if st.Audio == nil || !bytes.Equal(st.Audio.Bytes(), []byte{0x4f, 0x4b}) {
		t.Fatalf("audio = %+v", st.Audio)
	}
	if st.Audio.ContentType != audio.ContentTypeMPEG {
		t.Errorf("content type = %q", st.Audio.ContentType)
	}
	if st.LastError != "" || st.Cycle != 1 {
		t.Errorf("last error = %q cycle = %d", st.LastError, st.Cycle)
	}
}

func TestAudioCycleTrimsTranscript(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       string
	}{
		{"ascii", "what's good  \n", "what's good"},
		{"vertical tab", "hello\v", "hello"},
		{"form feed", "hello\f", "hello"},
		{"no-break space", "hello\u00a0", "hello"},
		{"em space", "hello\u2003", "hello"},
		{"ideographic space", "hello\u3000", "hello"},
		{"leading kept", "  hello ", "  hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake()
			f.transcript = tt.transcript
			c := New(f)
			if err := c.SetMode(api.ModeAsk); err != nil {
				t.Fatal(err)
			}

			if !c.SubmitAudio(t.Context(), RawAudio{Data: []byte("rec"), ContentType: "audio/webm"}) {
				t.Fatal("SubmitAudio() = false")
			}

			want := api.CompletionRequest{Transcript: tt.want, Type: api.ModeAsk}
			if len(f.generated) != 1 || f.generated[0] != want {
				t.Errorf("generation requests = %+v, want %+v", f.generated, want)
			}
			st := c.State()
			if st.HasAudio {
				t.Error("raw audio kept after transcription")
			}
			if st.Transcript != tt.transcript {
				t.Errorf("transcript = %q", st.Transcript)
			}
		})
	}
}

func TestSubmitTextTrimsUnicodeWhitespace(t *testing.T) {
	f := newFake()
	c := New(f)

	if !c.SubmitText(t.Context(), "hello\u00a0\u3000\v", api.ModeAsk) {
		t.Fatal("SubmitText() = false")
	}
	want := api.CompletionRequest{Transcript: "hello", Type: api.ModeAsk}
	if len(f.generated) != 1 || f.generated[0] != want {
		t.Errorf("generation requests = %+v, want %+v", f.generated, want)
	}
}

func TestNilGenerationResponseFailsCycle(t *testing.T) {
	f := newFake()
	f.reply = nil
	c := New(f)

	if !c.SubmitText(t.Context(), "how far", api.ModeTranslate) {
		t.Fatal("SubmitText() = false")
	}

	st := c.State()
	if st.Phase != Idle || st.ShowingResponse {
		t.Errorf("phase = %v showingResponse = %v", st.Phase, st.ShowingResponse)
	}
	if !strings.HasPrefix(st.LastError, api.ServiceGeneration+":") {
		t.Errorf("LastError = %q", st.LastError)
	}
	if len(f.spoken) != 0 {
		t.Errorf("synthesis called with %q", f.spoken)
	}
}

func TestSubmitWhileBusyIsNoop(t *testing.T) {
	f := newFake()
	g := newGate()
	f.onTranscribe = g.hook
	c := New(f)

	if !c.StartAudio(t.Context(), RawAudio{Data: []byte("first")}) {
		t.Fatal("StartAudio() = false")
	}
	<-g.entered

	before := c.State()
	if before.Phase != AwaitingTranscription || !before.HasAudio {
		t.Fatalf("state = %+v", before)
	}

	if c.SubmitAudio(t.Context(), RawAudio{Data: []byte("second")}) {
		t.Error("SubmitAudio() accepted during a cycle")
	}
	if c.SubmitText(t.Context(), "hello", api.ModeAsk) {
		t.Error("SubmitText() accepted during a cycle")
	}
	if err := c.SetMode(api.ModeAsk); !errors.Is(err, ErrCycleActive) {
		t.Errorf("SetMode() error = %v, want ErrCycleActive", err)
	}
	if after := c.State(); after != before {
		t.Errorf("state changed by rejected submissions:\n got %+v\nwant %+v", after, before)
	}

	close(g.release)
	waitIdle(t, c)

	if f.transcribeCalls != 1 {
		t.Errorf("transcribe calls = %d, want 1", f.transcribeCalls)
	}
	if st := c.State(); st.Cycle != 1 || st.Mode != api.ModeTranslate {
		t.Errorf("cycle = %d mode = %q", st.Cycle, st.Mode)
	}
}

func TestToggleResponseView(t *testing.T) {
	tests := []struct {
		name      string
		block     func(f *fakeServices, g *gate)
		phase     FlowState
		wantFlip  bool
		startView bool
	}{
		{
			name:     "blocked while synthesizing",
			block:    func(f *fakeServices, g *gate) { f.onSynthesize = g.hook },
			phase:    AwaitingSynthesis,
			wantFlip: false, startView: true,
		},
		{
			name:     "blocked while generating",
			block:    func(f *fakeServices, g *gate) { f.onGenerate = g.hook },
			phase:    AwaitingGeneration,
			wantFlip: false, startView: true,
		},
		{
			name:     "allowed while transcribing",
			block:    func(f *fakeServices, g *gate) { f.onTranscribe = g.hook },
			phase:    AwaitingTranscription,
			wantFlip: true, startView: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake()
			g := newGate()
			tt.block(f, g)
			c := New(f)

			c.StartAudio(t.Context(), RawAudio{Data: []byte("rec")})
			<-g.entered

			st := c.State()
			if st.Phase != tt.phase || st.ShowingResponse != tt.startView {
				t.Fatalf("state = %+v", st)
			}
			if got := c.ToggleResponseView(); got != tt.wantFlip {
				t.Errorf("ToggleResponseView() = %v, want %v", got, tt.wantFlip)
			}
			want := tt.startView
			if tt.wantFlip {
				want = !want
			}
			if got := c.State().ShowingResponse; got != want {
				t.Errorf("ShowingResponse = %v, want %v", got, want)
			}

			close(g.release)
			waitIdle(t, c)
		})
	}
}

func TestToggleWhenIdle(t *testing.T) {
	c := New(newFake())
	c.SubmitText(t.Context(), "hello", "")

	if !c.ToggleResponseView() || c.State().ShowingResponse {
		t.Fatal("toggle did not hide the response")
	}
	if !c.ToggleResponseView() || c.State().Status() != ShowingResponse {
		t.Fatal("toggle did not show the response again")
	}
}

func TestFailures(t *testing.T) {
	boom := &api.TransportError{Service: "x", Status: 500}

	tests := []struct {
		name         string
		setup        func(f *fakeServices)
		submitAudio  bool
		wantStage    string
		wantShowing  bool
		wantDisplay  string
		wantGenCalls int
	}{
		{
			name:        "transcription",
			setup:       func(f *fakeServices) { f.transcribeErr = boom },
			submitAudio: true,
			wantStage:   api.ServiceTranscription,
		},
		{
			name:         "generation",
			setup:        func(f *fakeServices) { f.generateErr = boom },
			wantStage:    api.ServiceGeneration,
			wantShowing:  false,
			wantGenCalls: 1,
		},
		{
			name:         "synthesis keeps the display text",
			setup:        func(f *fakeServices) { f.synthErr = boom },
			wantStage:    api.ServiceSynthesis,
			wantShowing:  true,
			wantDisplay:  "wagwan",
			wantGenCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake()
			tt.setup(f)
			c := New(f)

			if tt.submitAudio {
				c.SubmitAudio(t.Context(), RawAudio{Data: []byte("rec")})
			} else {
				c.SubmitText(t.Context(), "how far", api.ModeTranslate)
			}

			st := c.State()
			if st.Phase != Idle || st.HasAudio {
				t.Errorf("phase = %v has audio = %v", st.Phase, st.HasAudio)
			}
			if !strings.HasPrefix(st.LastError, tt.wantStage) {
				t.Errorf("last error = %q, want prefix %q", st.LastError, tt.wantStage)
			}
			if st.ShowingResponse != tt.wantShowing {
				t.Errorf("ShowingResponse = %v, want %v", st.ShowingResponse, tt.wantShowing)
			}
			if st.Response.DisplayText != tt.wantDisplay {
				t.Errorf("display = %q, want %q", st.Response.DisplayText, tt.wantDisplay)
			}
			if st.Audio != nil {
				t.Error("audio set after a failed cycle")
			}
			if len(f.generated) != tt.wantGenCalls {
				t.Errorf("generate calls = %d, want %d", len(f.generated), tt.wantGenCalls)
			}

			// The controller accepts a new cycle afterwards.
			f.transcribeErr, f.generateErr, f.synthErr = nil, nil, nil
			if !c.SubmitText(t.Context(), "again", "") || c.State().Audio == nil {
				t.Error("controller did not recover")
			}
		})
	}
}

func TestMalformedAudioPayload(t *testing.T) {
	tests := []struct {
		payload string
		wantErr error
	}{
		{"4f4", audio.ErrInvalidAudioEncoding},
		{"zz", audio.ErrInvalidAudioEncoding},
		{"", audio.ErrEmptyAudio},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			f := newFake()
			f.audioHex = tt.payload
			c := New(f)

			c.SubmitText(t.Context(), "how far", "")

			st := c.State()
			if st.Audio != nil {
				t.Errorf("audio = %+v, want unset", st.Audio)
			}
			if !strings.Contains(st.LastError, tt.wantErr.Error()) {
				t.Errorf("last error = %q", st.LastError)
			}
			if st.Response.DisplayText != "wagwan" || !st.ShowingResponse {
				t.Errorf("response lost: %+v", st)
			}
		})
	}
}

func TestInvalidInputIsNoop(t *testing.T) {
	f := newFake()
	c := New(f)

	if c.SubmitAudio(t.Context(), RawAudio{}) {
		t.Error("empty audio accepted")
	}
	if c.SubmitText(t.Context(), " \n\t", api.ModeAsk) {
		t.Error("blank text accepted")
	}
	if c.SubmitText(t.Context(), "hello", "sing") {
		t.Error("unknown mode accepted")
	}
	if err := c.SetMode("sing"); !errors.Is(err, api.ErrInvalidInput) {
		t.Errorf("SetMode() error = %v", err)
	}

	st := c.State()
	if st.Cycle != 0 || st.Phase != Idle || st.Mode != api.ModeTranslate {
		t.Errorf("state = %+v", st)
	}
	if f.transcribeCalls != 0 || len(f.generated) != 0 {
		t.Error("services called for invalid input")
	}
}

func TestEmptyTranscriptEndsCycle(t *testing.T) {
	f := newFake()
	f.transcript = "   "
	c := New(f)

	c.SubmitAudio(t.Context(), RawAudio{Data: []byte("silence")})

	if len(f.generated) != 0 {
		t.Errorf("generation called for an empty transcript")
	}
	if st := c.State(); st.Phase != Idle || st.Transcript != "" || st.LastError != "" {
		t.Errorf("state = %+v", st)
	}
}

func TestNewCycleReplacesAudio(t *testing.T) {
	f := newFake()
	c := New(f)

	c.SubmitText(t.Context(), "one", "")
	first := c.State().Audio

	var during State
	f.onGenerate = func() { during = c.State() }
	c.SubmitText(t.Context(), "two", api.ModeAsk)
	second := c.State().Audio

	if during.Audio != nil || during.Response != (Response{}) || !during.ShowingResponse {
		t.Errorf("previous reply not cleared when generation started: %+v", during)
	}
	if first == nil || second == nil || first.ID == second.ID {
		t.Errorf("audio handle not replaced: %v %v", first, second)
	}
	if c.State().Mode != api.ModeAsk {
		t.Errorf("mode = %q, want ask", c.State().Mode)
	}
}

func TestSubscribeLatestWins(t *testing.T) {
	c := New(newFake())
	updates, cancel := c.Subscribe()
	defer cancel()

	if st := <-updates; st.Phase != Idle || st.Cycle != 0 {
		t.Fatalf("initial snapshot = %+v", st)
	}

	// Nobody reads during the cycle; it must still complete.
	c.SubmitText(t.Context(), "how far", "")

	select {
	case st := <-updates:
		if st.Phase != Idle || st.Audio == nil {
			t.Errorf("latest snapshot = %+v, want finished cycle", st)
		}
	default:
		t.Fatal("no snapshot delivered")
	}

	cancel()
	if _, ok := <-updates; ok {
		t.Error("channel still open after unsubscribe")
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	c := New(newFake())
	updates, cancel := c.Subscribe()
	<-updates

	c.Close()
	if _, ok := <-updates; ok {
		t.Error("channel still open after Close")
	}
	cancel() // no double close

	late, lateCancel := c.Subscribe()
	defer lateCancel()
	if st, ok := <-late; !ok || st.Phase != Idle {
		t.Errorf("late subscriber snapshot = %+v, %v", st, ok)
	}
	if _, ok := <-late; ok {
		t.Error("late subscription left open")
	}

	// The controller itself keeps working.
	if !c.SubmitText(t.Context(), "how far", "") || c.State().Audio == nil {
		t.Error("cycle after Close did not complete")
	}
}

type recordingPlayer struct {
	played *audio.Handle
}

func (p *recordingPlayer) Play(_ context.Context, h *audio.Handle) error {
	p.played = h
	return nil
}

func TestPlayResponse(t *testing.T) {
	c := New(newFake())
	p := &recordingPlayer{}

	if err := c.PlayResponse(t.Context(), p); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("PlayResponse() before a cycle = %v, want ErrNoAudio", err)
	}

	c.SubmitText(t.Context(), "how far", "")
	if err := c.PlayResponse(t.Context(), p); err != nil {
		t.Fatalf("PlayResponse() error: %v", err)
	}
	if p.played == nil || p.played.ID != c.State().Audio.ID {
		t.Errorf("played %v", p.played)
	}
}

func TestStartTextDetachesFromRequestContext(t *testing.T) {
	f := newFake()
	g := newGate()
	f.onGenerate = g.hook
	c := New(f)

	ctx, cancel := context.WithCancel(t.Context())
	if !c.StartText(ctx, "how far", "") {
		t.Fatal("StartText() = false")
	}
	<-g.entered
	cancel()
	close(g.release)
	waitIdle(t, c)

	if st := c.State(); st.Audio == nil || st.LastError != "" {
		t.Errorf("state = %+v", st)
	}
}

func TestCycleOverRemoteServices(t *testing.T) {
	var genBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/transcribe":
			io.WriteString(w, `{"transcript": {"text": "hello "}}`)
		case "/api/completions":
			b, _ := io.ReadAll(r.Body)
			genBody = string(b)
			io.WriteString(w, `{"translation": "wagwan", "phonetic": "wag-one"}`)
		case "/api/eleven":
			io.WriteString(w, `{"responseAudio": "4f4b"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(remote.New(srv.URL, time.Second))
	if err := c.SetMode(api.ModeAsk); err != nil {
		t.Fatal(err)
	}
	c.SubmitAudio(t.Context(), RawAudio{Data: []byte("rec"), ContentType: "audio/webm"})

	if genBody != `{"transcript":"hello","type":"ask"}` {
		t.Errorf("generation body = %s", genBody)
	}
	if st := c.State(); st.Audio == nil || !bytes.Equal(st.Audio.Bytes(), []byte("OK")) {
		t.Errorf("state = %+v", st)
	}
}
