// Package piper implements the TTS Synthesizer using a Piper Wyoming protocol server.
//
// The linuxserver/piper container exposes the Wyoming protocol on TCP port
// 10200. Each event on the wire is:
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>   (if payload_length > 0)
package piper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nadzzz/roadman/internal/config"
	"github.com/nadzzz/roadman/internal/tts"
)

const defaultVoice = "en_GB-alan-medium"

// Synthesizer implements tts.Synthesizer using the Wyoming protocol.
type Synthesizer struct {
	endpoint string // host:port of the Piper Wyoming server
	voice    string
}

// New creates a new Piper synthesizer from config.
func New(cfg config.PiperConfig) *Synthesizer {
	ep := strings.TrimPrefix(cfg.Endpoint, "tcp://")
	ep = strings.TrimPrefix(ep, "http://")

	voice := cfg.Voice
	if voice == "" {
		voice = defaultVoice
	}
	return &Synthesizer{endpoint: ep, voice: voice}
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "piper" }

// Synthesize sends text to the Piper server and returns synthesized audio as WAV.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if text == "" {
		return nil, errors.New("empty text for synthesis")
	}
	if s.endpoint == "" {
		return nil, errors.New("no piper endpoint configured")
	}

	voice := opts.Voice
	if voice == "" {
		voice = s.voice
	}

	slog.Debug("piper synthesize", "text_length", len(text), "voice", voice, "endpoint", s.endpoint)

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to piper: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	synth := wyomingEvent{
		Type: "synthesize",
		Data: map[string]any{
			"text":  text,
			"voice": map[string]any{"name": voice},
		},
	}
	if err := writeEvent(conn, synth, nil); err != nil {
		return nil, fmt.Errorf("sending synthesize event: %w", err)
	}

	// audio-start, audio-chunk*, audio-stop
	var (
		pcm      bytes.Buffer
		format   = pcmFormat{rate: 22050, channels: 1, width: 2}
		r        = bufio.NewReader(conn)
		gotStart bool
	)
	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			format.update(evt.Data)
			gotStart = true
			slog.Debug("piper audio-start", "rate", format.rate, "channels", format.channels, "width", format.width)

		case "audio-chunk":
			if !gotStart {
				format.update(evt.Data)
			}
			pcm.Write(payload)

		case "audio-stop":
			slog.Debug("piper audio-stop", "pcm_bytes", pcm.Len())
			return &tts.SynthesizeResult{
				Audio:       pcmToWAV(pcm.Bytes(), format),
				ContentType: "audio/wav",
			}, nil

		case "error":
			msg := "unknown error"
			if t, ok := evt.Data["text"].(string); ok {
				msg = t
			}
			return nil, fmt.Errorf("piper error: %s", msg)

		default:
			slog.Debug("piper unknown event", "type", evt.Type)
		}
	}
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }

type pcmFormat struct {
	rate, channels, width int
}

func (f *pcmFormat) update(data map[string]any) {
	if v, ok := data["rate"].(float64); ok {
		f.rate = int(v)
	}
	if v, ok := data["channels"].(float64); ok {
		f.channels = int(v)
	}
	if v, ok := data["width"].(float64); ok {
		f.width = int(v)
	}
}

type wyomingEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func writeEvent(w io.Writer, evt wyomingEvent, payload []byte) error {
	jsonBytes, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d\n", len(jsonBytes), len(payload))
	buf.Write(jsonBytes)
	buf.WriteByte('\n')
	buf.Write(payload)

	_, err = w.Write(buf.Bytes())
	return err
}

func readEvent(r *bufio.Reader) (*wyomingEvent, []byte, error) {
	header, err := r.ReadString('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	jsonPart, payloadPart, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return nil, nil, fmt.Errorf("invalid wyoming header: %q", header)
	}
	jsonLen, err := strconv.Atoi(jsonPart)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing json_length: %w", err)
	}
	payloadLen, err := strconv.Atoi(payloadPart)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing payload_length: %w", err)
	}

	jsonBuf := make([]byte, jsonLen+1) // trailing \n
	if _, err := io.ReadFull(r, jsonBuf); err != nil {
		return nil, nil, fmt.Errorf("reading json: %w", err)
	}

	var evt wyomingEvent
	if err := json.Unmarshal(jsonBuf[:jsonLen], &evt); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling event: %w", err)
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading payload: %w", err)
		}
	}
	return &evt, payload, nil
}

// pcmToWAV wraps raw PCM data in a 44-byte WAV header.
func pcmToWAV(pcm []byte, f pcmFormat) []byte {
	buf := &bytes.Buffer{}
	buf.Grow(44 + len(pcm))

	le := func(v any) { _ = binary.Write(buf, binary.LittleEndian, v) }

	buf.WriteString("RIFF")
	le(uint32(36 + len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	le(uint32(16))
	le(uint16(1)) // PCM
	le(uint16(f.channels))
	le(uint32(f.rate))
	le(uint32(f.rate * f.channels * f.width))
	le(uint16(f.channels * f.width))
	le(uint16(f.width * 8))

	buf.WriteString("data")
	le(uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
