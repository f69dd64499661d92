package handler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wadjakorntonsri/linkbio/pkg/config"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"
)

const authCookieName = "auth_token"

type contextKey string

const profileIDKey contextKey = "profile_id"

type Middleware struct {
	jwtSecret   []byte
	frontendURL string
}

func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{
		jwtSecret:   []byte(cfg.JWTSecret),
		frontendURL: cfg.FrontendURL,
	}
}

// AuthMiddleware verifies the JWT from the Authorization header or the auth cookie
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profileID, err := m.authenticate(r)
		if err != nil {
			if isAPIRequest(r) {
				writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
			} else {
				http.Redirect(w, r, m.frontendURL+"/login", http.StatusTemporaryRedirect)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(withProfileID(r.Context(), profileID)))
	})
}

// OptionalAuth attaches the viewer when a valid token is present. A missing
// or bad token leaves the request anonymous.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if profileID, err := m.authenticate(r); err == nil {
			r = r.WithContext(withProfileID(r.Context(), profileID))
		}
		next.ServeHTTP(w, r)
	})
}

// TrackVisits records the view of {handle} before the wrapped handler runs.
// Tracking gets its own deadline and outlives a cancelled request, and it
// never writes to the response.
func (m *Middleware) TrackVisits(visits ports.VisitService, timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if handle := r.PathValue("handle"); handle != "" {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
				viewerID, _ := ProfileIDFromContext(r.Context())
				visits.TrackVisit(ctx, handle, viewerID, clientIP(r))
				cancel()
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) authenticate(r *http.Request) (string, error) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			return "", err
		}
		tokenString = cookie.Value
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.jwtSecret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// clientIP reads RemoteAddr, which chi's RealIP rewrites when the proxy is trusted
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func withProfileID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, profileIDKey, id)
}

// ProfileIDFromContext returns the authenticated profile set by the auth middleware
func ProfileIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(profileIDKey).(string)
	return id, ok && id != ""
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
