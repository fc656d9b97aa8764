package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hajimehoshi/go-mp3"
)

// Content types produced by the speech backends.
const (
	ContentTypeMPEG = "audio/mpeg"
	ContentTypeWAV  = "audio/wav"
	ContentTypeOGG  = "audio/ogg"
)

// Handle is a playable, audio-typed binary object. It is immutable once built.
type Handle struct {
	// ID identifies the handle; a new synthesis result always gets a new ID.
	ID string

	// ContentType is sniffed from the payload; MP3 is assumed when unknown.
	ContentType string

	data []byte

	durOnce sync.Once
	dur     time.Duration
	durErr  error
}

// NewHandle wraps raw audio bytes. The slice is owned by the handle afterwards.
func NewHandle(data []byte) *Handle {
	return &Handle{
		ID:          uuid.NewString(),
		ContentType: sniffContentType(data),
		data:        data,
	}
}

// ErrEmptyAudio is returned by FromHex for a payload with no audio in it.
var ErrEmptyAudio = errors.New("empty audio payload")

// FromHex decodes a hex payload and wraps it as a Handle.
func FromHex(s string) (*Handle, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, ErrEmptyAudio
	}
	return NewHandle(b), nil
}

// Bytes returns the underlying audio bytes. Callers must not modify them.
func (h *Handle) Bytes() []byte { return h.data }

// Len returns the payload size in bytes.
func (h *Handle) Len() int { return len(h.data) }

// Reader returns a fresh reader positioned at the start of the payload.
func (h *Handle) Reader() *bytes.Reader { return bytes.NewReader(h.data) }

// Duration reports the playback length of the clip. The payload is scanned
// on the first call only.
func (h *Handle) Duration() (time.Duration, error) {
	h.durOnce.Do(func() { h.dur, h.durErr = h.duration() })
	return h.dur, h.durErr
}

func (h *Handle) duration() (time.Duration, error) {
	switch h.ContentType {
	case ContentTypeWAV:
		return wavDuration(h.data)
	case ContentTypeMPEG:
		return mp3Duration(h.data)
	default:
		return 0, fmt.Errorf("duration not supported for %s", h.ContentType)
	}
}

func sniffContentType(b []byte) string {
	switch {
	case len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE":
		return ContentTypeWAV
	case len(b) >= 4 && string(b[0:4]) == "OggS":
		return ContentTypeOGG
	default:
		return ContentTypeMPEG
	}
}

// mp3Duration decodes the stream header; go-mp3 always outputs 16-bit stereo.
func mp3Duration(b []byte) (time.Duration, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(b))
	if err != nil {
		return 0, fmt.Errorf("decoding mp3: %w", err)
	}
	length := d.Length()
	if length < 0 || d.SampleRate() <= 0 {
		return 0, errors.New("mp3 length unknown")
	}
	frames := length / 4
	return time.Duration(frames) * time.Second / time.Duration(d.SampleRate()), nil
}

// wavDuration reads the byte rate from a canonical 44-byte WAV header.
func wavDuration(b []byte) (time.Duration, error) {
	if len(b) < 44 {
		return 0, errors.New("wav header truncated")
	}
	byteRate := binary.LittleEndian.Uint32(b[28:32])
	if byteRate == 0 {
		return 0, errors.New("wav byte rate is zero")
	}
	dataLen := binary.LittleEndian.Uint32(b[40:44])
	if int(dataLen) > len(b)-44 {
		dataLen = uint32(len(b) - 44)
	}
	return time.Duration(dataLen) * time.Second / time.Duration(byteRate), nil
}

// pcmReader returns the PCM stream of a handle: MP3 is decoded, WAV has its
// header stripped.
func pcmReader(h *Handle) (io.Reader, error) {
	switch h.ContentType {
	case ContentTypeMPEG:
		d, err := mp3.NewDecoder(h.Reader())
		if err != nil {
			return nil, fmt.Errorf("decoding mp3: %w", err)
		}
		return d, nil
	case ContentTypeWAV:
		if h.Len() < 44 {
			return nil, errors.New("wav header truncated")
		}
		return bytes.NewReader(h.data[44:]), nil
	default:
		return nil, fmt.Errorf("cannot decode %s", h.ContentType)
	}
}
