// Package repository selects a store backend from the database URL.
package repository

import (
	"context"
	"strings"

	"github.com/wadjakorntonsri/linkbio/pkg/adapters/repository/mongo"
	"github.com/wadjakorntonsri/linkbio/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/linkbio/pkg/config"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"
)

// Open returns a MongoDB repository for mongodb:// and mongodb+srv:// URLs
// and a SQLite/libsql repository for everything else.
func Open(ctx context.Context, cfg *config.Config) (ports.Repository, error) {
	if IsMongoURL(cfg.DatabaseURL) {
		repo, err := mongo.NewMongoRepository(ctx, cfg.DatabaseURL, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}

	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func IsMongoURL(url string) bool {
	return strings.HasPrefix(url, "mongodb://") || strings.HasPrefix(url, "mongodb+srv://")
}
