package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/wadjakorntonsri/linkbio/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/linkbio/pkg/core/domain"
)

func newRepo(t *testing.T, name string) *sqlite.SQLiteRepository {
	t.Helper()
	repo, err := sqlite.NewSQLiteRepository("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newRepo(t, "cli_src")
	dst := newRepo(t, "cli_dst")

	now := time.Now()
	for _, h := range []string{"ana", "bea"} {
		p := &domain.Profile{ID: "id-" + h, Handle: h, Name: h, Email: h + "@example.com", Password: "hash-" + h, CreatedAt: now, UpdatedAt: now}
		if err := src.CreateProfile(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	// bea already lives in the destination
	if err := dst.CreateProfile(ctx, &domain.Profile{ID: "other", Handle: "bea", Name: "b", Email: "b@example.com", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := doExport(ctx, src, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"password": "hash-ana"`) {
		t.Errorf("export should carry password hashes: %s", buf.String())
	}

	count, err := doImport(ctx, dst, &buf, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("imported %d profiles, want 1", count)
	}

	ana, err := dst.GetProfileByHandle(ctx, "ana")
	if err != nil || ana == nil || ana.Password != "hash-ana" {
		t.Errorf("ana not imported with hash: (%+v, %v)", ana, err)
	}
	bea, _ := dst.GetProfileByHandle(ctx, "bea")
	if bea.ID != "other" {
		t.Errorf("existing bea was overwritten: %+v", bea)
	}
}
