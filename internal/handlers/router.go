package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	mW "github.com/recyclepay/backend/internal/middleware"
)

type Router struct {
	Auth   *mW.Authenticator
	Scans  *ScanHandler
	Wallet *WalletHandler
	Admin  *AdminHandler
	// Health reports dependency status; nil answers "healthy".
	Health func() map[string]string
}

func (rt Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "healthy"}
		if rt.Health != nil {
			status = rt.Health()
		}
		writeJSON(w, http.StatusOK, status)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.Auth.Middleware)

		r.Post("/scans", rt.Scans.Submit)
		r.Get("/scans", rt.Scans.List)

		r.Get("/me/stats", rt.Wallet.Stats)
		r.Get("/me/history", rt.Wallet.History)
		r.Get("/me/rank", rt.Wallet.Rank)
		r.Post("/me/withdrawals", rt.Wallet.Withdraw)
		r.Get("/leaderboard", rt.Wallet.Leaderboard)

		r.Route("/admin", rt.Admin.Routes)
	})

	return r
}
