package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouteOptions struct {
	CORSOrigins    []string
	RateLimitRPM   int
	RequestTimeout time.Duration
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

func (h *Handler) Routes(m *Middleware, opts RouteOptions) *chi.Mux {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}

	r := chi.NewRouter()

	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(m.CORS(opts.CORSOrigins))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		// Streams stay outside the timeout and compression wrappers.
		r.Get("/stream", h.HandleSSE)
		r.Get("/ws", h.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(m.RateLimit(opts.RateLimitRPM))
			r.Use(m.Compress)
			r.Use(m.Timeout(opts.RequestTimeout))

			r.Get("/wallets", h.ListWallets)
			r.Post("/connect", h.Connect)
			r.Post("/disconnect", h.Disconnect)
			r.Get("/status", h.GetStatus)

			r.Route("/networks", func(r chi.Router) {
				r.Get("/", h.ListNetworks)
				r.Post("/select", h.SelectNetwork)
				r.Post("/switch", h.SwitchNetwork)
			})

			r.Route("/sign", func(r chi.Router) {
				r.Post("/message", h.SignMessage)
				r.Post("/message/verify", h.VerifyMessage)
				r.Post("/transaction", h.SignTransaction)
				r.Post("/transaction/verify", h.VerifyTransaction)
			})
			r.Post("/execute/transaction", h.ExecuteTransaction)

			r.Route("/legacy", func(r chi.Router) {
				r.Post("/sign-block", h.SignTransactionBlock)
				r.Post("/execute-block", h.ExecuteTransactionBlock)
			})

			r.Get("/email", h.RequestEmail)
			r.Get("/balances", h.GetBalances)
			r.Post("/faucet", h.RequestFaucet)
		})
	})

	return r
}
