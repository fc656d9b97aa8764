package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nadzzz/roadman/internal/api"
)

// SampleStatus reports whether the sample clip is playing.
type SampleStatus struct {
	Speaking bool `json:"speaking"`
}

// handleSample processes GET /sample.
//
// @Summary  Download the sample clip
// @Tags     sample
// @Produce  audio/mpeg
// @Success  200  {file}    binary
// @Failure  404  {object}  api.ErrorResponse
// @Router   /sample [get]
func (t *Transport) handleSample(w http.ResponseWriter, r *http.Request) {
	clip, err := t.opts.Sample.Clip()
	if err != nil {
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", clip.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(clip.Len()))
	_, _ = w.Write(clip.Bytes())
}

// handlePlaySample processes POST /sample/play.
//
// @Summary  Play the sample clip
// @Tags     sample
// @Produce  json
// @Success  202  {object}  SampleStatus
// @Failure  409  {object}  SampleStatus  "Already speaking"
// @Router   /sample/play [post]
func (t *Transport) handlePlaySample(w http.ResponseWriter, r *http.Request) {
	// Playback outlives the request.
	if !t.opts.Sample.Play(context.WithoutCancel(r.Context())) {
		writeJSON(w, http.StatusConflict, SampleStatus{Speaking: true})
		return
	}
	writeJSON(w, http.StatusAccepted, SampleStatus{Speaking: true})
}

// handleSampleStatus processes GET /sample/status.
//
// @Summary  Sample playback status
// @Tags     sample
// @Produce  json
// @Success  200  {object}  SampleStatus
// @Router   /sample/status [get]
func (t *Transport) handleSampleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SampleStatus{Speaking: t.opts.Sample.Speaking()})
}
