// Package app wires the store, image storage, services and router together.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wadjakorntonsri/linkbio/pkg/adapters/handler"
	"github.com/wadjakorntonsri/linkbio/pkg/adapters/repository"
	"github.com/wadjakorntonsri/linkbio/pkg/adapters/storage"
	"github.com/wadjakorntonsri/linkbio/pkg/config"
	"github.com/wadjakorntonsri/linkbio/pkg/core/services"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"
)

type App struct {
	Handler http.Handler
	Repo    ports.Repository
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	repo, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	images, err := storage.New(ctx, cfg)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to init image storage: %w", err)
	}

	svc := handler.Services{
		Auth:     services.NewAuthService(repo),
		Profiles: services.NewProfileService(repo, images, cfg.RecentVisitsLimit),
		Visits:   services.NewVisitService(repo, cfg.ActivityWindow(), log),
	}
	if local, ok := images.(*storage.LocalStore); ok {
		svc.UploadDir = local.Dir()
	}

	return &App{
		Handler: handler.NewRouter(cfg, log, svc),
		Repo:    repo,
	}, nil
}

func (a *App) Close() error {
	return a.Repo.Close()
}
