package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wadjakorntonsri/linkbio/pkg/config"
)

func TestLocalStoreUpload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8080/uploads/")
	if err != nil {
		t.Fatal(err)
	}

	url, err := store.Upload(context.Background(), "../avatar.png", strings.NewReader("png-bytes"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://localhost:8080/uploads/avatar.png" {
		t.Errorf("url = %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "avatar.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("file content = %q", data)
	}
}

func TestNewSelectsDriver(t *testing.T) {
	cfg := &config.Config{StorageDriver: "local", UploadDir: t.TempDir(), BaseURL: "http://x"}
	store, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Errorf("expected *LocalStore, got %T", store)
	}

	cfg.StorageDriver = "ftp"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown driver")
	}

	cfg.StorageDriver = "s3"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("expected error for s3 without bucket")
	}
}
