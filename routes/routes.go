package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"blogspace/app"
	"blogspace/auth"
	"blogspace/handlers"
	"blogspace/httpx"
	"blogspace/logging"
)

func RegisterRoutes(r chi.Router, app *app.App) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if app.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", app.Metrics.Handler())
	}

	r.Route("/api/posts", func(r chi.Router) {
		r.Get("/", handlers.GetAllPostsHandler(app))
		r.Get("/{id}", handlers.GetPostHandler(app))
		r.Post("/", auth.Require(app.Verifier, handlers.CreatePostHandler(app)))
		r.Put("/{id}", auth.Require(app.Verifier, handlers.UpdatePostHandler(app)))
		r.Delete("/{id}", auth.Require(app.Verifier, handlers.DeletePostHandler(app)))
	})
}

// NewRouter builds the full middleware chain around the registered routes.
func NewRouter(app *app.App, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(app.Log))
	r.Use(httpx.Recoverer)
	if app.Metrics != nil {
		r.Use(app.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	RegisterRoutes(r, app)
	return r
}
