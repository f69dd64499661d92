package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/wadjakorntonsri/linkbio/pkg/config"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type AuthHandler struct {
	auth         ports.AuthService
	oauthConfig  *oauth2.Config
	jwtSecret    []byte
	jwtTTL       time.Duration
	frontendURL  string
	isProduction bool
}

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func NewAuthHandler(cfg *config.Config, auth ports.AuthService) *AuthHandler {
	return &AuthHandler{
		auth: auth,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		jwtSecret:    []byte(cfg.JWTSecret),
		jwtTTL:       cfg.JWTTTL,
		frontendURL:  cfg.FrontendURL,
		isProduction: cfg.IsProduction(),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.auth.Register(r.Context(), req.Handle, req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	hlog.FromRequest(r).Info().Str("profile_id", profile.ID).Str("handle", profile.Handle).Msg("profile registered")
	writeJSON(w, http.StatusCreated, profile)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.issueToken(w, profile.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := h.generateStateOauthCookie(w)
	url := h.oauthConfig.AuthCodeURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	oauthState, err := r.Cookie("oauthstate")
	if err != nil {
		log.Warn().Err(err).Msg("oauth callback: missing oauthstate cookie")
		http.Redirect(w, r, h.frontendURL+"/login", http.StatusTemporaryRedirect)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		log.Warn().Msg("oauth callback: state mismatch")
		writeErrorMessage(w, http.StatusBadRequest, "invalid oauth google state")
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		log.Error().Err(err).Msg("oauth callback: code exchange failed")
		writeErrorMessage(w, http.StatusBadGateway, "code exchange failed")
		return
	}

	googleUser, err := h.fetchGoogleUser(r, token)
	if err != nil {
		log.Error().Err(err).Msg("oauth callback: failed getting user info")
		writeErrorMessage(w, http.StatusBadGateway, "failed getting user info")
		return
	}
	if !googleUser.VerifiedEmail {
		writeErrorMessage(w, http.StatusForbidden, "google account email is not verified")
		return
	}

	profile, err := h.auth.FindOrCreateByEmail(r.Context(), googleUser.Email, googleUser.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.issueToken(w, profile.ID); err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().Str("profile_id", profile.ID).Msg("google login successful")
	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Expires:  time.Now().Add(-1 * time.Hour),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.frontendURL+"/login", http.StatusTemporaryRedirect)
}

func (h *AuthHandler) fetchGoogleUser(r *http.Request, token *oauth2.Token) (*GoogleUser, error) {
	resp, err := h.oauthConfig.Client(r.Context(), token).Get(googleUserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed decoding user info: %w", err)
	}
	return &user, nil
}

// issueToken signs a JWT for the profile and sets it as the auth cookie
func (h *AuthHandler) issueToken(w http.ResponseWriter, profileID string) (string, error) {
	expirationTime := time.Now().Add(h.jwtTTL)
	claims := &jwt.RegisteredClaims{
		Subject:   profileID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expirationTime),
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed signing JWT: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    tokenString,
		Expires:  expirationTime,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return tokenString, nil
}

func (h *AuthHandler) generateStateOauthCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		Expires:  time.Now().Add(20 * time.Minute),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return state
}
