package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
)

// Player plays a handle to completion or failure.
type Player interface {
	Play(ctx context.Context, h *Handle) error
}

// DecodePlayer decodes a handle to raw PCM and writes it to Sink. With a nil
// Sink the PCM is discarded, which still validates that the clip decodes.
type DecodePlayer struct {
	Sink io.Writer
}

// Play implements Player.
func (p DecodePlayer) Play(ctx context.Context, h *Handle) error {
	pcm, err := pcmReader(h)
	if err != nil {
		return err
	}
	sink := p.Sink
	if sink == nil {
		sink = io.Discard
	}
	if _, err := io.Copy(sink, ctxReader{ctx: ctx, r: pcm}); err != nil {
		return fmt.Errorf("playing %s: %w", h.ID, err)
	}
	return nil
}

// CommandPlayer pipes the encoded clip into an external player process
// (e.g. "ffplay -nodisp -autoexit -").
type CommandPlayer struct {
	Name string
	Args []string
}

// Play implements Player.
func (p CommandPlayer) Play(ctx context.Context, h *Handle) error {
	cmd := exec.CommandContext(ctx, p.Name, p.Args...)
	cmd.Stdin = h.Reader()
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %.200s", p.Name, err, out)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// SamplePlayer plays a fixed sample clip. It keeps a single speaking flag:
// Play is refused while a previous playback is still running, and the flag is
// reset when playback ends or fails.
type SamplePlayer struct {
	path     string
	player   Player
	speaking atomic.Bool

	// OnFinish, when set, is called after the speaking flag is reset.
	OnFinish func(err error)
}

// NewSamplePlayer creates a SamplePlayer for the clip at path.
func NewSamplePlayer(path string, player Player) *SamplePlayer {
	return &SamplePlayer{path: path, player: player}
}

// Speaking reports whether the sample is currently playing.
func (s *SamplePlayer) Speaking() bool { return s.speaking.Load() }

// Clip loads the sample clip from disk.
func (s *SamplePlayer) Clip() (*Handle, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading sample: %w", err)
	}
	return NewHandle(b), nil
}

// Play starts playback in the background. It returns false without doing
// anything if the sample is already playing.
func (s *SamplePlayer) Play(ctx context.Context) bool {
	if !s.speaking.CompareAndSwap(false, true) {
		return false
	}

	go func() {
		err := s.play(ctx)
		if err != nil {
			slog.Error("failed to play audio", "path", s.path, "error", err)
		}
		s.speaking.Store(false)
		if s.OnFinish != nil {
			s.OnFinish(err)
		}
	}()
	return true
}

func (s *SamplePlayer) play(ctx context.Context) error {
	clip, err := s.Clip()
	if err != nil {
		return err
	}
	return s.player.Play(ctx, clip)
}
