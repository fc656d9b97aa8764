package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nadzzz/roadman/internal/api"
	"github.com/nadzzz/roadman/internal/flow"
	"github.com/nadzzz/roadman/internal/session"
)

type sessionKey struct{}

// AudioView describes the synthesized reply of a session.
type AudioView struct {
	ID          string `json:"id"`
	ContentType string `json:"contentType"`
	Bytes       int    `json:"bytes"`
	DurationMs  int64  `json:"durationMs,omitempty"`
	URL         string `json:"url"`
}

// StateView is the JSON form of a session's flow state.
type StateView struct {
	SessionID       string     `json:"sessionId"`
	Status          string     `json:"status"`
	Phase           string     `json:"phase"`
	HasAudio        bool       `json:"hasAudio"`
	Transcript      string     `json:"transcript"`
	Mode            api.Mode   `json:"mode"`
	Translation     string     `json:"translation"`
	Phonetic        string     `json:"phonetic"`
	ShowingResponse bool       `json:"showingResponse"`
	ResponseAudio   *AudioView `json:"responseAudio,omitempty"`
	LastError       string     `json:"lastError,omitempty"`
	Cycle           uint64     `json:"cycle"`
}

func newStateView(id string, st flow.State) StateView {
	v := StateView{
		SessionID:       id,
		Status:          st.Status().String(),
		Phase:           st.Phase.String(),
		HasAudio:        st.HasAudio,
		Transcript:      st.Transcript,
		Mode:            st.Mode,
		Translation:     st.Response.DisplayText,
		Phonetic:        st.Response.SpeechText,
		ShowingResponse: st.ShowingResponse,
		LastError:       st.LastError,
		Cycle:           st.Cycle,
	}
	if h := st.Audio; h != nil {
		v.ResponseAudio = &AudioView{
			ID:          h.ID,
			ContentType: h.ContentType,
			Bytes:       h.Len(),
			URL:         "/sessions/" + id + "/response-audio",
		}
		if d, err := h.Duration(); err == nil {
			v.ResponseAudio.DurationMs = d.Milliseconds()
		}
	}
	return v
}

// TextRequest is the body of POST /sessions/{id}/text.
type TextRequest struct {
	Text string `json:"text"`
	Type string `json:"type,omitempty"`
}

// ModeRequest is the body of PUT /sessions/{id}/mode.
type ModeRequest struct {
	Type string `json:"type"`
}

func (t *Transport) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := t.opts.Sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "session not found"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(sessionKey{}).(*session.Session)
}

func writeState(w http.ResponseWriter, code int, sess *session.Session) {
	writeJSON(w, code, newStateView(sess.ID, sess.Controller.State()))
}

// handleCreateSession processes POST /sessions.
//
// @Summary  Create a session
// @Tags     sessions
// @Produce  json
// @Success  201  {object}  StateView
// @Router   /sessions [post]
func (t *Transport) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := t.opts.Sessions.Create()
	w.Header().Set("Location", "/sessions/"+sess.ID)
	writeState(w, http.StatusCreated, sess)
}

// handleGetSession processes GET /sessions/{id}.
//
// @Summary  Get session state
// @Tags     sessions
// @Produce  json
// @Param    id   path      string  true  "Session ID"
// @Success  200  {object}  StateView
// @Failure  404  {object}  api.ErrorResponse
// @Router   /sessions/{id} [get]
func (t *Transport) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeState(w, http.StatusOK, sessionFrom(r))
}

// handleDeleteSession processes DELETE /sessions/{id}.
//
// @Summary  Delete a session
// @Tags     sessions
// @Param    id   path  string  true  "Session ID"
// @Success  204
// @Failure  404  {object}  api.ErrorResponse
// @Router   /sessions/{id} [delete]
func (t *Transport) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	t.opts.Sessions.Delete(sessionFrom(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmitAudio processes POST /sessions/{id}/audio.
//
// @Summary     Submit a recording
// @Description Starts a cycle: transcription, generation, synthesis. The request returns as soon as the cycle has started.
// @Tags        sessions
// @Accept      multipart/form-data
// @Accept      audio/webm
// @Produce     json
// @Param       id         path      string  true   "Session ID"
// @Param       audioFile  formData  file    false  "Recorded audio; the raw body is used when the request is not multipart"
// @Success     202  {object}  StateView
// @Failure     400  {object}  api.ErrorResponse  "Empty recording"
// @Failure     409  {object}  StateView          "A cycle is already in progress"
// @Router      /sessions/{id}/audio [post]
func (t *Transport) handleSubmitAudio(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	data, contentType, err := readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	if !sess.Controller.StartAudio(r.Context(), flow.RawAudio{Data: data, ContentType: contentType}) {
		writeState(w, http.StatusConflict, sess)
		return
	}
	writeState(w, http.StatusAccepted, sess)
}

// handleSubmitText processes POST /sessions/{id}/text.
//
// @Summary     Submit typed text
// @Description Starts a cycle at generation. An omitted type keeps the session's mode.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       id       path      string       true  "Session ID"
// @Param       request  body      TextRequest  true  "Text and optional mode"
// @Success     202  {object}  StateView
// @Failure     400  {object}  api.ErrorResponse  "Blank text or unknown mode"
// @Failure     409  {object}  StateView          "A cycle is already in progress"
// @Router      /sessions/{id}/text [post]
func (t *Transport) handleSubmitText(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, errors.Join(api.ErrInvalidInput, errors.New("empty text")))
		return
	}
	var mode api.Mode
	if req.Type != "" {
		m, err := api.ParseMode(req.Type)
		if err != nil {
			writeError(w, err)
			return
		}
		mode = m
	}

	if !sess.Controller.StartText(r.Context(), req.Text, mode) {
		writeState(w, http.StatusConflict, sess)
		return
	}
	writeState(w, http.StatusAccepted, sess)
}

// handleSetMode processes PUT /sessions/{id}/mode.
//
// @Summary  Select the generation mode
// @Tags     sessions
// @Accept   json
// @Produce  json
// @Param    id       path      string       true  "Session ID"
// @Param    request  body      ModeRequest  true  "translate or ask"
// @Success  200  {object}  StateView
// @Failure  400  {object}  api.ErrorResponse
// @Failure  409  {object}  api.ErrorResponse  "A cycle is in progress"
// @Router   /sessions/{id}/mode [put]
func (t *Transport) handleSetMode(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var req ModeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := api.ParseMode(req.Type)
	if err == nil {
		err = sess.Controller.SetMode(mode)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeState(w, http.StatusOK, sess)
}

// handleToggle processes POST /sessions/{id}/toggle.
//
// @Summary  Show or hide the response view
// @Tags     sessions
// @Produce  json
// @Param    id   path      string  true  "Session ID"
// @Success  200  {object}  StateView
// @Failure  409  {object}  StateView  "A reply is being generated"
// @Router   /sessions/{id}/toggle [post]
func (t *Transport) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if !sess.Controller.ToggleResponseView() {
		writeState(w, http.StatusConflict, sess)
		return
	}
	writeState(w, http.StatusOK, sess)
}

// handleResponseAudio processes GET /sessions/{id}/response-audio.
//
// @Summary  Download the synthesized reply
// @Tags     sessions
// @Produce  audio/mpeg
// @Produce  audio/wav
// @Param    id   path  string  true  "Session ID"
// @Success  200  {file}    binary
// @Failure  404  {object}  api.ErrorResponse
// @Router   /sessions/{id}/response-audio [get]
func (t *Transport) handleResponseAudio(w http.ResponseWriter, r *http.Request) {
	h := sessionFrom(r).Controller.State().Audio
	if h == nil {
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "no response audio"})
		return
	}
	w.Header().Set("Content-Type", h.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(h.Len()))
	w.Header().Set("ETag", strconv.Quote(h.ID))
	_, _ = w.Write(h.Bytes())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origins are enforced by the CORS configuration.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// handleStream processes GET /sessions/{id}/ws.
//
// @Summary     Stream session state
// @Description Upgrades to a WebSocket and sends a StateView JSON message after every state change.
// @Tags        sessions
// @Param       id   path  string  true  "Session ID"
// @Success     101
// @Router      /sessions/{id}/ws [get]
func (t *Transport) handleStream(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "session_id", sess.ID, "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := sess.Controller.Subscribe()
	defer unsubscribe()

	// Reader: only control frames are expected; any error ends the stream.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	slog.Debug("state stream opened", "session_id", sess.ID)
	for {
		select {
		case <-closed:
			slog.Debug("state stream closed", "session_id", sess.ID)
			return
		case <-r.Context().Done():
			return
		case st, ok := <-updates:
			if !ok {
				// Session deleted or evicted.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(newStateView(sess.ID, st)); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
