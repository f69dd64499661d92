package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/wadjakorntonsri/linkbio/pkg/config"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"
)

// Services are the core services the router dispatches to
type Services struct {
	Auth     ports.AuthService
	Profiles ports.ProfileService
	Visits   ports.VisitService

	// UploadDir is served at /uploads/ when set (local image storage)
	UploadDir string
}

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, log zerolog.Logger, svc Services) http.Handler {
	h := NewHTTPHandler(svc.Profiles, svc.Visits)
	mw := NewMiddleware(cfg)
	authHandler := NewAuthHandler(cfg, svc.Auth)

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.HandleFunc("GET /auth/google/login", authHandler.GoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", authHandler.GoogleCallback)
	mux.HandleFunc("GET /auth/logout", authHandler.Logout)

	if svc.UploadDir != "" {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(svc.UploadDir))))
	}

	// Sign-up forms check a handle before any account exists. The method and
	// full path make this more specific than the protected /api/v1/ prefix.
	mux.HandleFunc("POST /api/v1/search", h.SearchHandle)

	// Viewer identity is optional here; tracking runs before the profile is read
	track := mw.TrackVisits(svc.Visits, cfg.TrackTimeout)
	mux.Handle("GET /{handle}", mw.OptionalAuth(track(http.HandlerFunc(h.PublicProfile))))

	// Protected Routes
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("GET /api/v1/user", h.GetUser)
	protectedMux.HandleFunc("PATCH /api/v1/user", h.UpdateUser)
	protectedMux.HandleFunc("POST /api/v1/user/image", h.UploadImage)
	protectedMux.HandleFunc("GET /api/v1/stats/activity/{handle}", h.Activity)

	// protectedMux holds the full paths, so one prefix dispatches all API requests
	mux.Handle("/api/v1/", mw.AuthMiddleware(protectedMux))

	// Outermost first: request id, real ip when trusted, panic recovery, logging, cors
	var handler http.Handler = mux
	handler = cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.FrontendURL),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	})(handler)
	handler = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(handler)
	handler = requestIDField(handler)
	handler = hlog.RemoteAddrHandler("ip")(handler)
	handler = hlog.NewHandler(log)(handler)
	handler = middleware.Recoverer(handler)
	// Forwarding headers are client-controlled unless a proxy rewrites them,
	// and the anonymous visit key is the client address.
	if cfg.TrustProxy {
		handler = middleware.RealIP(handler)
	}
	handler = middleware.RequestID(handler)

	return handler
}

// requestIDField copies chi's request id onto the request logger
func requestIDField(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			log := zerolog.Ctx(r.Context())
			log.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func allowedOrigins(frontendURL string) []string {
	origins := []string{"http://localhost:5173"}
	if frontendURL != "" && frontendURL != origins[0] {
		origins = append(origins, frontendURL)
	}
	return origins
}
