// Package remote calls the roadman service contracts of another deployment
// over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/nadzzz/roadman/internal/api"
)

// Client talks to /api/transcribe, /api/completions and /api/eleven under a
// base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client. timeout bounds each call; zero disables it.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Transcribe uploads audio as multipart field "audioFile" and returns the text.
func (c *Client) Transcribe(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty audio", api.ErrInvalidInput)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if contentType == "" {
		contentType = "audio/webm"
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, api.AudioFormField, api.AudioFileName))
	hdr.Set("Content-Type", contentType)
	part, err := writer.CreatePart(hdr)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	var out api.TranscriptionResponse
	if err := c.do(ctx, api.ServiceTranscription, "/api/transcribe", writer.FormDataContentType(), body, &out); err != nil {
		return "", err
	}
	return out.Transcript.Text, nil
}

// Generate posts {"transcript", "type"} and returns the generated reply.
func (c *Client) Generate(ctx context.Context, req api.CompletionRequest) (*api.CompletionResponse, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	var out api.CompletionResponse
	if err := c.do(ctx, api.ServiceGeneration, "/api/completions", "application/json", bytes.NewReader(b), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Synthesize posts {"speech"} and returns the hex-encoded audio.
func (c *Client) Synthesize(ctx context.Context, req api.SpeechRequest) (*api.SpeechResponse, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	var out api.SpeechResponse
	if err := c.do(ctx, api.ServiceSynthesis, "/api/eleven", "application/json", bytes.NewReader(b), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, service, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", service, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &api.TransportError{
			Service: service,
			Status:  resp.StatusCode,
			Body:    errorBody(resp.Body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", service, err)
	}
	slog.Debug("remote call complete", "service", service, "status", resp.StatusCode)
	return nil
}

// errorBody returns the "error" field of a JSON error body, or the raw
// (truncated) body otherwise.
func errorBody(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 2048))
	var er api.ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(raw))
}

// IsTransportError reports whether err carries a non-success service response.
func IsTransportError(err error) bool {
	var te *api.TransportError
	return errors.As(err, &te)
}
