package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/ulule/limiter/v3"
	mstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	smemory "github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/lionbot/lionbot/pkg/services/stores"
	"github.com/lionbot/lionbot/pkg/settings"
)

type M = render.M

func (s *server) strapRouter() {

	s.ar.Get("/ping", handlerPing)

	s.ar.Route("/api", func(r chi.Router) {
		r.Use(recoverMw)
		r.Get("/welcome", s.getWelcome)
		r.Get("/history/{cid}", s.getHistory)
		r.Delete("/history/{cid}", s.deleteHistory)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequestSize(s.cfg.MaxBodySize))
			if mw := s.rateMw(); mw != nil {
				r.Use(mw)
			}
			r.Post("/chat", s.postChat)
			r.Post("/chat-{suffix}", s.postChat)
		})
	})

	if s.cfg.DocHandler != nil {
		s.ar.Get("/", s.cfg.DocHandler.ServeHTTP)
		s.ar.NotFound(s.cfg.DocHandler.ServeHTTP)
	}
}

func (s *server) rateMw() func(http.Handler) http.Handler {
	rate, err := limiter.NewRateFromFormatted(s.cfg.RateLimit)
	if err != nil {
		logger().Infow("invalid rate limit, disabled", "rate", s.cfg.RateLimit, "err", err)
		return nil
	}
	var store limiter.Store
	if w, ok := s.sto.(*stores.Wrap); ok && w.Redis() != nil {
		store, err = sredis.NewStoreWithOptions(w.Redis(), limiter.StoreOptions{Prefix: "lionbot-limiter"})
		if err != nil {
			logger().Infow("redis limiter store fail, fallback to memory", "err", err)
		}
	}
	if store == nil {
		store = smemory.NewStore()
	}
	mw := mstdlib.NewMiddleware(limiter.New(store, rate),
		mstdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			logger().Infow("rate limit reached", "ip", r.RemoteAddr, "path", r.URL.Path)
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, &ChatReply{Reply: ReplyBusy})
		}),
	)
	return mw.Handler
}

// recoverMw turns a panic into the fixed backend failure reply
func recoverMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger().Errorw("backend crash", "err", rec, "path", r.URL.Path)
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, &ChatReply{Reply: ReplyCrash})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMw allows the configured origins, * means any
func corsMw() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: settings.Current.AllowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Conversation-ID"},
		MaxAge:         300,
	})
}

func handlerPing(w http.ResponseWriter, r *http.Request) {
	render.Data(w, r, []byte("Pong\n"))
}

func apiFail(w http.ResponseWriter, r *http.Request, status int, err interface{}) {
	res := render.M{
		"status": status,
		"error":  err,
	}
	switch ret := err.(type) {
	case error:
		res["message"] = ret.Error()
		res["error"] = ret.Error()
	case fmt.Stringer:
		res["message"] = ret.String()
	case string, *string, []byte:
		res["message"] = ret
	}
	render.Status(r, status)
	render.JSON(w, r, res)
}

type RespDone struct {
	Status int `json:"status"`
	Data   any `json:"data,omitempty"`
	Count  int `json:"count,omitempty"`
}

func apiOk(w http.ResponseWriter, r *http.Request, args ...any) {
	res := &RespDone{}
	if len(args) > 0 && args[0] != nil {
		res.Data = args[0]
		if len(args) > 1 {
			if c, ok := args[1].(int); ok {
				res.Count = c
			}
		}
	}

	render.JSON(w, r, res)
}
