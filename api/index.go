package handler

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/wadjakorntonsri/linkbio/pkg/app"
	"github.com/wadjakorntonsri/linkbio/pkg/config"
	"github.com/wadjakorntonsri/linkbio/pkg/logger"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	// Vercel's edge overwrites X-Forwarded-For, so it is trusted unless set otherwise
	if _, set := os.LookupEnv("TRUST_PROXY"); !set {
		cfg.TrustProxy = true
	}
	log := logger.New(cfg.LogLevel, cfg.AppEnv)

	// On Vercel the filesystem is ephemeral; DATABASE_URL should point at Turso or MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		panic(err)
	}
	mux = application.Handler
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
