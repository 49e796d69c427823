package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	// Public — no auth required.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.HandlerFor(g.metrics.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", g.handleRegister())
		r.Post("/login", g.handleLogin())
		r.Post("/change_password", g.handleChangePassword())

		r.Post("/chat", g.handleChat())
		r.Post("/clear_memory", g.handleClearMemory())
		r.Get("/memory_stats", g.handleMemoryStats())
		r.Post("/set_system_prompt", g.handleSetSystemPrompt())
		r.Post("/get_system_prompt", g.handleGetSystemPrompt())

		// Long-term memory administration — bearer token required.
		r.Route("/memory", func(r chi.Router) {
			r.Use(g.tokenMiddleware)
			r.Get("/status", g.handleMemoryStatus())
			r.Get("/long-term", g.handleListLongTerm())
			r.Delete("/long-term", g.handleClearLongTerm())
			r.Put("/long-term/{id}", g.handleUpdateLongTerm())
			r.Delete("/long-term/{id}", g.handleDeleteLongTerm())
		})
	})

	return r
}

// corsMiddleware allows browser frontends on any origin. The API's real
// protection is the token scheme, not the origin check.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
