package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nadzzz/roadman/internal/api"
	"github.com/nadzzz/roadman/internal/flow"
)

// handleTranscribe processes POST /api/transcribe.
//
// @Summary     Transcribe a recording
// @Description Accepts a multipart upload with the recording in field "audioFile" and returns the recognised text.
// @Tags        services
// @Accept      multipart/form-data
// @Produce     json
// @Param       audioFile  formData  file  true  "Recorded audio (webm, ogg, wav, mp3)"
// @Success     200  {object}  api.TranscriptionResponse
// @Failure     400  {object}  api.ErrorResponse  "Missing or empty recording"
// @Failure     502  {object}  api.ErrorResponse  "Upstream service failed"
// @Router      /api/transcribe [post]
func (t *Transport) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	text, err := t.opts.Services.Transcribe(r.Context(), data, contentType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.TranscriptionResponse{Transcript: api.Transcript{Text: text}})
}

// handleCompletions processes POST /api/completions.
//
// @Summary     Generate a roadman reply
// @Description Translates the transcript into roadman slang ("translate") or answers it in character ("ask").
// @Tags        services
// @Accept      json
// @Produce     json
// @Param       request  body      api.CompletionRequest  true  "Transcript and mode"
// @Success     200  {object}  api.CompletionResponse
// @Failure     400  {object}  api.ErrorResponse  "Empty transcript or unknown mode"
// @Failure     502  {object}  api.ErrorResponse  "Upstream service failed"
// @Router      /api/completions [post]
func (t *Transport) handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req api.CompletionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Type != "" {
		mode, err := api.ParseMode(string(req.Type))
		if err != nil {
			writeError(w, err)
			return
		}
		req.Type = mode
	}

	resp, err := t.opts.Services.Generate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSpeech processes POST /api/eleven.
//
// @Summary     Synthesize speech
// @Description Renders the speech text and returns the audio as a lowercase hex string.
// @Tags        services
// @Accept      json
// @Produce     json
// @Param       request  body      api.SpeechRequest  true  "Speech text"
// @Success     200  {object}  api.SpeechResponse
// @Failure     400  {object}  api.ErrorResponse  "Empty speech text"
// @Failure     502  {object}  api.ErrorResponse  "Upstream service failed"
// @Router      /api/eleven [post]
func (t *Transport) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req api.SpeechRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := t.opts.Services.Synthesize(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// readUpload returns the recording from a multipart "audioFile" field or,
// for any other content type, the raw request body.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	ct := r.Header.Get("Content-Type")
	if mediaType(ct) != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, "", errors.Join(api.ErrInvalidInput, err)
		}
		if len(data) == 0 {
			return nil, "", errors.Join(api.ErrInvalidInput, errors.New("empty audio"))
		}
		return data, ct, nil
	}

	f, hdr, err := r.FormFile(api.AudioFormField)
	if err != nil {
		return nil, "", errors.Join(api.ErrInvalidInput, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", errors.Join(api.ErrInvalidInput, err)
	}
	if len(data) == 0 {
		return nil, "", errors.Join(api.ErrInvalidInput, errors.New("empty audio"))
	}
	return data, hdr.Header.Get("Content-Type"), nil
}

func mediaType(ct string) string {
	mt, _, _ := strings.Cut(ct, ";")
	return strings.TrimSpace(strings.ToLower(mt))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "invalid json: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error to a status code. Anything unclassified, an
// *api.TransportError included, is an upstream failure.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, api.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, flow.ErrCycleActive):
		code = http.StatusConflict
	}

	if code >= 500 {
		slog.Error("request failed", "status", code, "error", err)
	}
	writeJSON(w, code, api.ErrorResponse{Error: err.Error()})
}
