package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/wadjakorntonsri/linkbio/pkg/config"
	"github.com/wadjakorntonsri/linkbio/pkg/core/domain"
)

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{
		JWTSecret:   "testservlet",
		FrontendURL: "http://localhost:5173",
	}
	mw := NewMiddleware(cfg)

	tests := []struct {
		name           string
		path           string
		cookieValue    string
		bearer         string
		expectedStatus int
		expectedID     string
	}{
		{
			name:           "No Token - API",
			path:           "/api/v1/user",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "No Token - Browser",
			path:           "/dashboard",
			expectedStatus: http.StatusTemporaryRedirect,
		},
		{
			name:           "Invalid Cookie - API",
			path:           "/api/v1/user",
			cookieValue:    "invalid",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Secret - API",
			path:           "/api/v1/user",
			bearer:         generateTestToken(t, "other-secret", "p1", time.Minute),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Expired Token - API",
			path:           "/api/v1/user",
			bearer:         generateTestToken(t, cfg.JWTSecret, "p1", -time.Minute),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Valid Cookie - API",
			path:           "/api/v1/user",
			cookieValue:    generateTestToken(t, cfg.JWTSecret, "p1", 5*time.Minute),
			expectedStatus: http.StatusOK,
			expectedID:     "p1",
		},
		{
			name:           "Valid Bearer - API",
			path:           "/api/v1/user",
			bearer:         generateTestToken(t, cfg.JWTSecret, "p2", 5*time.Minute),
			expectedStatus: http.StatusOK,
			expectedID:     "p2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.cookieValue != "" {
				req.AddCookie(&http.Cookie{Name: authCookieName, Value: tt.cookieValue})
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			var gotID string
			rr := httptest.NewRecorder()
			handler := mw.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, _ = ProfileIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			handler.ServeHTTP(rr, req)

			if status := rr.Code; status != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v",
					status, tt.expectedStatus)
			}
			if gotID != tt.expectedID {
				t.Errorf("profile id in context = %q, want %q", gotID, tt.expectedID)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testservlet"}
	mw := NewMiddleware(cfg)

	tests := []struct {
		name   string
		bearer string
		wantID string
	}{
		{"anonymous", "", ""},
		{"invalid token stays anonymous", "garbage", ""},
		{"valid token", generateTestToken(t, cfg.JWTSecret, "p9", time.Minute), "p9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ana", nil)
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			var gotID string
			rr := httptest.NewRecorder()
			mw.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, _ = ProfileIDFromContext(r.Context())
			})).ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rr.Code)
			}
			if gotID != tt.wantID {
				t.Errorf("profile id = %q, want %q", gotID, tt.wantID)
			}
		})
	}
}

type trackCall struct {
	handle, viewerID, ip string
	ctxErr               error
	hasDeadline          bool
}

type recordingVisits struct {
	calls []trackCall
}

func (v *recordingVisits) TrackVisit(ctx context.Context, handle, viewerID, ip string) {
	_, ok := ctx.Deadline()
	v.calls = append(v.calls, trackCall{handle: handle, viewerID: viewerID, ip: ip, ctxErr: ctx.Err(), hasDeadline: ok})
}

func (v *recordingVisits) GetActivity(ctx context.Context, handle string) (*domain.Activity, error) {
	return &domain.Activity{DailyActivity: []domain.DailyVisit{}}, nil
}

func TestTrackVisitsMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testservlet"}
	mw := NewMiddleware(cfg)
	visits := &recordingVisits{}

	mux := http.NewServeMux()
	track := mw.TrackVisits(visits, time.Second)
	mux.Handle("GET /{handle}", mw.OptionalAuth(track(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))))
	handler := middleware.RealIP(mux)

	// Anonymous view behind a proxy
	req := httptest.NewRequest("GET", "/ana", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// Authenticated view on a request that was already cancelled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req = httptest.NewRequest("GET", "/bea", nil).WithContext(ctx)
	req.RemoteAddr = "198.51.100.4:5555"
	req.Header.Set("Authorization", "Bearer "+generateTestToken(t, cfg.JWTSecret, "p1", time.Minute))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if rr.Code != http.StatusTeapot {
		t.Errorf("wrapped handler not called, status %d", rr.Code)
	}
	if len(visits.calls) != 2 {
		t.Fatalf("TrackVisit called %d times, want 2", len(visits.calls))
	}

	first := visits.calls[0]
	if first.handle != "ana" || first.viewerID != "" || first.ip != "203.0.113.7" {
		t.Errorf("unexpected anonymous call: %+v", first)
	}
	second := visits.calls[1]
	if second.handle != "bea" || second.viewerID != "p1" || second.ip != "198.51.100.4" {
		t.Errorf("unexpected authenticated call: %+v", second)
	}
	if second.ctxErr != nil || !second.hasDeadline {
		t.Errorf("tracking context should be live with its own deadline, got err=%v deadline=%v", second.ctxErr, second.hasDeadline)
	}
}

func generateTestToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	expirationTime := time.Now().Add(ttl)
	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expirationTime),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return tokenString
}
