// Package storage holds the avatar image stores.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/wadjakorntonsri/linkbio/pkg/config"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"
)

// New builds the image store selected by STORAGE_DRIVER
func New(ctx context.Context, cfg *config.Config) (ports.ImageStore, error) {
	switch cfg.StorageDriver {
	case "", "local":
		store, err := NewLocalStore(cfg.UploadDir, strings.TrimSuffix(cfg.BaseURL, "/")+"/uploads")
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		store, err := NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(key, "/")
}
