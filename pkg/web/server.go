package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cupogo/andvari/utils/zlog"

	"github.com/lionbot/lionbot/pkg/models/aigc"
	"github.com/lionbot/lionbot/pkg/services/gemini"
	"github.com/lionbot/lionbot/pkg/services/stores"
	"github.com/lionbot/lionbot/pkg/settings"
)

type Service interface {
	Serve(ctx context.Context) error
	Stop(ctx context.Context) error
	// SetPreset swaps persona and welcome text for subsequent requests
	SetPreset(p aigc.Preset)
}

type Config struct {
	Addr  string
	Debug bool

	DocHandler http.Handler

	// optional collaborators, defaults come from settings
	Storage     stores.Storage
	Generator   gemini.Generator
	Preset      *aigc.Preset
	RateLimit   string
	MaxBodySize int64
}

type server struct {
	Addr string
	cfg  Config

	sto stores.Storage
	gen gemini.Generator

	ar *chi.Mux     // app router
	hs *http.Server // http server

	preset atomic.Pointer[aigc.Preset]
	hints  bool // attachment kind hints
}

// New return new web server
func New(cfg Config) (Service, error) {
	return newServer(cfg)
}

func newServer(cfg Config) (*server, error) {
	ar := chi.NewMux()
	if cfg.Debug {
		ar.Use(middleware.Logger)
	}
	ar.Use(middleware.Recoverer, middleware.RealIP, corsMw())

	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = settings.Current.MaxBodySize
	}
	if len(cfg.RateLimit) == 0 {
		cfg.RateLimit = settings.Current.RateLimit
	}

	s := &server{
		Addr: cfg.Addr, ar: ar,
		cfg:   cfg,
		sto:   cfg.Storage,
		gen:   cfg.Generator,
		hints: settings.Current.AttachmentHints,
	}
	if s.sto == nil {
		s.sto = stores.Sgt()
	}

	if cfg.Preset != nil {
		s.preset.Store(cfg.Preset)
	} else {
		preset, err := stores.LoadPreset(settings.Current.PresetFile)
		if err == nil && len(settings.Current.PresetFile) > 0 {
			logger().Infow("loaded preset", "file", settings.Current.PresetFile)
		}
		s.preset.Store(&preset)
	}

	if s.gen == nil {
		model := settings.Current.GeminiModel
		if p := s.preset.Load(); len(p.Model) > 0 {
			model = p.Model
		}
		gc, err := gemini.New(settings.Current.GeminiAPIKey, model,
			gemini.WithBaseURL(settings.Current.GeminiBaseURL),
			gemini.WithTimeout(settings.Current.UpstreamTimeout),
		)
		if err != nil {
			return nil, err
		}
		logger().Infow("using model", "model", gc.Model())
		s.gen = gc
	}

	s.strapRouter()

	s.hs = &http.Server{
		Addr:    s.Addr,
		Handler: s.ar,
	}

	if cfg.Debug {
		logger().Infow("routes:", "maxBody", formatSize(cfg.MaxBodySize), "rate", cfg.RateLimit)
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			route = strings.Replace(route, "/*/", "/", -1)
			fmt.Fprintf(os.Stderr, "DEBUG: %-6s %-24s --> %s (%d mw)\n", method, route, handlerName(handler), len(middlewares))
			return nil
		}

		if err := chi.Walk(ar, walkFunc); err != nil {
			logger().Infow("router walk fail", "err", err)
		}
	}
	return s, nil
}

func (s *server) Serve(ctx context.Context) error {
	// Run HTTP server
	runErrChan := make(chan error)
	t := time.AfterFunc(time.Millisecond*200, func() {
		runErrChan <- s.hs.ListenAndServe()
	})

	defer t.Stop()
	logger().Infow("Listen on", "addr", s.hs.Addr)

	// Wait
	for {
		select {
		case runErr := <-runErrChan:
			if runErr != nil {
				logger().Infow("run http server failed",
					"err", runErr,
				)
				return runErr
			}
		case <-ctx.Done():
			logger().Info("http server has been stopped")
			return ctx.Err()
		}
	}
}

func (s *server) Stop(ctx context.Context) error {
	if err := s.hs.Shutdown(ctx); err != nil {
		logger().Errorw("Server Shutdown", "err", err)
		return err
	}
	return nil
}

func (s *server) SetPreset(p aigc.Preset) {
	s.preset.Store(&p)
}

func (s *server) getPreset() *aigc.Preset {
	return s.preset.Load()
}

func logger() zlog.Logger {
	return zlog.Get()
}
