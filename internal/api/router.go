package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/ender-blog/internal/api/handlers"
	"github.com/isdelr/ender-blog/internal/auth"
	"github.com/isdelr/ender-blog/internal/markdown"
	"github.com/isdelr/ender-blog/internal/services"
	"github.com/isdelr/ender-blog/internal/views"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Services bundles what the router wires into its handlers.
type Services struct {
	Posts     services.PostServiceProvider
	Users     services.UserServiceProvider
	Events    services.EventServiceProvider
	Composer  *services.ContentComposer
	Publisher *markdown.Publisher
}

// MethodOverride lets HTML forms send PUT and DELETE as a POST with a
// _method field.
func MethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			switch method := strings.ToUpper(r.PostFormValue("_method")); method {
			case http.MethodPut, http.MethodPatch, http.MethodDelete:
				r.Method = method
			}
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter creates and configures a new Chi router.
func NewRouter(svc Services, renderer *views.Renderer, sessions *auth.Sessions, corsOrigin string) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	}))
	r.Use(middleware.Recoverer)
	r.Use(MethodOverride)
	r.Use(sessions.Middleware())

	// Initialize handlers
	pages := handlers.NewPages(renderer, svc.Composer)
	postHandler := handlers.NewPostHandler(pages, svc.Posts)
	userHandler := handlers.NewUserHandler(pages, svc.Users, sessions)
	postAPIHandler := handlers.NewPostAPIHandler(svc.Posts, svc.Composer)
	eventHandler := handlers.NewEventHandler(svc.Events)

	r.NotFound(pages.NotFound)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(views.Static())))
	r.Get("/static/highlight.css", highlightCSS(svc.Publisher))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/posts", http.StatusFound)
	})

	r.Route("/posts", func(r chi.Router) {
		r.Get("/", postHandler.Index)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Get("/new", postHandler.New)
			r.Get("/edit/{id}", postHandler.Edit)
			r.Post("/", postHandler.Create)
			r.Put("/{id}", postHandler.Update)
			r.Delete("/{id}", postHandler.Delete)
		})

		r.Get("/{slug}", postHandler.Show)
		r.Get("/{id}/{slug}", postHandler.ShowLegacy)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/register", userHandler.RegisterForm)
		r.Post("/register", userHandler.Register)
		r.Get("/login", userHandler.LoginForm)
		r.Post("/login", userHandler.Login)
		r.With(auth.RequireUser).Get("/logout", userHandler.Logout)
	})

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{corsOrigin},
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		r.Get("/posts", postAPIHandler.GetAll)
		r.Get("/posts/{slug}", postAPIHandler.Get)
		r.With(auth.RequireToken).Get("/events", eventHandler.GetRecent)
	})

	return r
}

func highlightCSS(publisher *markdown.Publisher) http.HandlerFunc {
	css, err := publisher.CSS()
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate highlighting stylesheet")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Write([]byte(css))
	}
}
