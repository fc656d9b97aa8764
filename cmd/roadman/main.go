// Roadman is a voice interaction daemon: it transcribes a recording (or takes
// typed text), has a language model translate or answer it in roadman style,
// and synthesizes the reply as speech.
//
// Usage:
//
//	roadman [flags]
//	roadman --config /path/to/roadman.yaml
//	roadman --text "how are you doing" --mode ask --out reply.mp3
//
// @title        roadman API
// @version      1.0
// @description  Voice interaction flow: transcription, roadman-style reply generation and speech synthesis.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/nadzzz/roadman/docs"
	"github.com/nadzzz/roadman/internal/api"
	"github.com/nadzzz/roadman/internal/audio"
	"github.com/nadzzz/roadman/internal/backend"
	"github.com/nadzzz/roadman/internal/config"
	"github.com/nadzzz/roadman/internal/flow"
	"github.com/nadzzz/roadman/internal/health"
	"github.com/nadzzz/roadman/internal/interpreter"
	localinterp "github.com/nadzzz/roadman/internal/interpreter/local"
	openaiinterp "github.com/nadzzz/roadman/internal/interpreter/openai"
	"github.com/nadzzz/roadman/internal/metrics"
	"github.com/nadzzz/roadman/internal/remote"
	"github.com/nadzzz/roadman/internal/session"
	"github.com/nadzzz/roadman/internal/transport"
	grpctransport "github.com/nadzzz/roadman/internal/transport/grpc"
	httptransport "github.com/nadzzz/roadman/internal/transport/http"
	"github.com/nadzzz/roadman/internal/tts"
	"github.com/nadzzz/roadman/internal/tts/elevenlabs"
	"github.com/nadzzz/roadman/internal/tts/piper"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/roadman.local.yaml)")
	text := flag.String("text", "", "run a single cycle on this text and exit")
	audioFile := flag.String("audio", "", "run a single cycle on this recording and exit")
	mode := flag.String("mode", "", "generation mode for a single cycle: translate or ask")
	out := flag.String("out", "", "write the synthesized reply of a single cycle to this file")
	play := flag.Bool("play", false, "play the synthesized reply of a single cycle")
	flag.Parse()

	if *showVersion {
		fmt.Printf("roadman %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, closeServices, err := newServices(cfg)
	if err != nil {
		slog.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer closeServices()

	player := newPlayer(cfg.Sample)

	if *text != "" || *audioFile != "" {
		err := runOnce(ctx, svc, player, oneShot{
			text:  *text,
			audio: *audioFile,
			mode:  *mode,
			out:   *out,
			play:  *play,
		})
		if err != nil {
			slog.Error("cycle failed", "error", err)
			closeServices()
			os.Exit(1)
		}
		return
	}

	serve(ctx, cfg, svc, player)
}

// newServices builds the three collaborators of the flow controller, either
// on top of the configured providers or as clients of a remote deployment.
func newServices(cfg *config.Config) (flow.Services, func(), error) {
	if cfg.Flow.Backend == "remote" {
		slog.Info("using remote services", "url", cfg.Flow.RemoteURL, "timeout", cfg.Flow.Timeout)
		return remote.New(cfg.Flow.RemoteURL, cfg.Flow.Timeout), func() {}, nil
	}

	var interp interpreter.Interpreter
	switch cfg.Interpreter.Backend {
	case "openai":
		interp = openaiinterp.New(cfg.Interpreter.OpenAI)
		slog.Info("using OpenAI interpreter",
			"transcription_model", cfg.Interpreter.OpenAI.TranscriptionModel,
			"completion_model", cfg.Interpreter.OpenAI.CompletionModel)
	case "local":
		interp = localinterp.New(cfg.Interpreter.Local)
		slog.Info("using local interpreter",
			"whisper", cfg.Interpreter.Local.WhisperEndpoint,
			"llm", cfg.Interpreter.Local.LLMEndpoint)
	default:
		return nil, nil, fmt.Errorf("unknown interpreter backend %q", cfg.Interpreter.Backend)
	}

	var synth tts.Synthesizer
	switch cfg.TTS.Backend {
	case "elevenlabs":
		synth = elevenlabs.New(cfg.TTS.ElevenLabs)
		slog.Info("using ElevenLabs TTS", "voice", cfg.TTS.ElevenLabs.VoiceID, "model", cfg.TTS.ElevenLabs.ModelID)
	case "piper":
		synth = piper.New(cfg.TTS.Piper)
		slog.Info("using Piper TTS", "endpoint", cfg.TTS.Piper.Endpoint, "voice", cfg.TTS.Piper.Voice)
	default:
		interp.Close()
		return nil, nil, fmt.Errorf("unknown tts backend %q", cfg.TTS.Backend)
	}

	b := backend.New(interp, synth)
	var once sync.Once
	return b, func() {
		once.Do(func() {
			if err := b.Close(); err != nil {
				slog.Warn("closing services", "error", err)
			}
		})
	}, nil
}

func newPlayer(cfg config.SampleConfig) audio.Player {
	fields := strings.Fields(cfg.Command)
	if len(fields) == 0 {
		return audio.DecodePlayer{}
	}
	return audio.CommandPlayer{Name: fields[0], Args: fields[1:]}
}

type oneShot struct {
	text  string
	audio string
	mode  string
	out   string
	play  bool
}

// runOnce drives a single cycle from the terminal and prints the reply.
func runOnce(ctx context.Context, svc flow.Services, player audio.Player, o oneShot) error {
	m, err := api.ParseMode(o.mode)
	if err != nil {
		return err
	}

	c := flow.New(svc)
	if err := c.SetMode(m); err != nil {
		return err
	}

	if o.audio != "" {
		data, err := os.ReadFile(o.audio)
		if err != nil {
			return fmt.Errorf("reading recording: %w", err)
		}
		ct := mime.TypeByExtension(filepath.Ext(o.audio))
		if !c.SubmitAudio(ctx, flow.RawAudio{Data: data, ContentType: ct}) {
			return errors.New("recording was not accepted")
		}
	} else if !c.SubmitText(ctx, o.text, m) {
		return errors.New("text was not accepted")
	}

	st := c.State()
	if st.LastError != "" {
		return errors.New(st.LastError)
	}
	if st.Transcript == "" {
		fmt.Println("(nothing heard)")
		return nil
	}

	fmt.Printf("transcript:  %s\n", st.Transcript)
	fmt.Printf("translation: %s\n", st.Response.DisplayText)
	fmt.Printf("phonetic:    %s\n", st.Response.SpeechText)

	if o.out != "" && st.Audio != nil {
		if err := os.WriteFile(o.out, st.Audio.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing reply audio: %w", err)
		}
		slog.Info("reply audio written", "path", o.out, "bytes", st.Audio.Len(), "content_type", st.Audio.ContentType)
	}
	if o.play {
		return c.PlayResponse(ctx, player)
	}
	return nil
}

// serve runs the daemon until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, svc flow.Services, player audio.Player) {
	slog.Info("roadman starting", "version", version)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := session.NewStore(func(l *slog.Logger) *flow.Controller {
		return flow.New(svc, flow.WithLogger(l), flow.WithMetrics(m))
	}, cfg.Session, m)
	go store.Run(ctx)

	sample := audio.NewSamplePlayer(cfg.Sample.Path, player)

	// Initialize enabled transports.
	var transports []transport.Transport
	var grpcTransport *grpctransport.Transport

	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(httptransport.Options{
			Port:           cfg.Transports.HTTP.Port,
			AllowedOrigins: cfg.Transports.HTTP.AllowedOrigins,
			RateLimit:      cfg.Transports.HTTP.RateLimit,
			Services:       svc,
			Sessions:       store,
			Sample:         sample,
			Metrics:        m,
			Gatherer:       reg,
		}))
	}
	if cfg.Transports.GRPC.Enabled {
		grpcTransport = grpctransport.New(cfg.Transports.GRPC.Port)
		transports = append(transports, grpcTransport)
	}

	if len(transports) == 0 {
		slog.Error("no transports enabled, enable at least one in config")
		os.Exit(1)
	}

	// Start health check server.
	healthServer := health.New(cfg.Server.HealthPort, version)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	// Start all transports.
	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	if grpcTransport != nil {
		grpcTransport.SetServing(true)
	}
	slog.Info("roadman ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort,
		"flow_backend", cfg.Flow.Backend)

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)
	if grpcTransport != nil {
		grpcTransport.SetServing(false)
	}

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	slog.Info("roadman stopped", "sessions", store.Len())
}
