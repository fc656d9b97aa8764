// Package http implements the HTTP/WebSocket transport for roadman.
//
// It serves the three service contracts under /api, a session API that
// drives one flow controller per client, a WebSocket stream of session
// state, the sample clip, Prometheus metrics and the Swagger UI.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/roadman/internal/audio"
	"github.com/nadzzz/roadman/internal/flow"
	"github.com/nadzzz/roadman/internal/metrics"
	"github.com/nadzzz/roadman/internal/session"
)

// maxUpload bounds request bodies carrying audio.
const maxUpload = 25 << 20

// Options wires the transport to the rest of the daemon. Nil fields disable
// the routes that need them.
type Options struct {
	Port           int
	AllowedOrigins []string
	RateLimit      int // service calls per IP per minute, 0 disables

	Services flow.Services
	Sessions *session.Store
	Sample   *audio.SamplePlayer
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Transport implements transport.Transport over HTTP and WebSocket.
type Transport struct {
	opts Options

	mu     sync.Mutex
	server *http.Server
}

// New creates a new HTTP transport.
func New(opts Options) *Transport {
	return &Transport{opts: opts}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler builds the router.
func (t *Transport) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(t.instrument)

	origins := t.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	if t.opts.Services != nil {
		r.Route("/api", func(ar chi.Router) {
			if t.opts.RateLimit > 0 {
				ar.Use(httprate.LimitByIP(t.opts.RateLimit, time.Minute))
			}
			ar.Post("/transcribe", t.handleTranscribe)
			ar.Post("/completions", t.handleCompletions)
			ar.Post("/eleven", t.handleSpeech)
		})
	}

	if t.opts.Sessions != nil {
		r.Route("/sessions", func(sr chi.Router) {
			sr.Post("/", t.handleCreateSession)
			sr.Route("/{id}", func(ir chi.Router) {
				ir.Use(t.withSession)
				ir.Get("/", t.handleGetSession)
				ir.Delete("/", t.handleDeleteSession)
				ir.Post("/audio", t.handleSubmitAudio)
				ir.Post("/text", t.handleSubmitText)
				ir.Put("/mode", t.handleSetMode)
				ir.Post("/toggle", t.handleToggle)
				ir.Get("/response-audio", t.handleResponseAudio)
				ir.Get("/ws", t.handleStream)
			})
		})
	}

	if t.opts.Sample != nil {
		r.Get("/sample", t.handleSample)
		r.Post("/sample/play", t.handlePlaySample)
		r.Get("/sample/status", t.handleSampleStatus)
	}

	if t.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(t.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}

// instrument counts requests by route pattern and status code.
func (t *Transport) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		t.opts.Metrics.RecordHTTPRequest(route, status)
	})
}

// Listen starts the HTTP server.
func (t *Transport) Listen(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", t.opts.Port),
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	slog.Info("http transport listening", "port", t.opts.Port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	t.mu.Lock()
	srv := t.server
	t.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return nil
}
