package services

import (
	"context"
	"errors"
	"testing"

	"github.com/wadjakorntonsri/linkbio/pkg/core/domain"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	repo := newTestRepo(t)
	auth := NewAuthService(repo)
	ctx := context.Background()

	p, err := auth.Register(ctx, "John Doe", "John", " John@Example.com ", "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if p.Handle != "johndoe" || p.Email != "john@example.com" {
		t.Errorf("unexpected profile: %+v", p)
	}
	if p.Password == "s3cret" || p.Password == "" {
		t.Error("password was not hashed")
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid", "john@example.com", "s3cret", nil},
		{"email case insensitive", "JOHN@example.com", "s3cret", nil},
		{"wrong password", "john@example.com", "nope", domain.ErrInvalidCredentials},
		{"unknown email", "jane@example.com", "s3cret", domain.ErrProfileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.Authenticate(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if err == nil && got.ID != p.ID {
				t.Errorf("authenticated wrong profile %s", got.ID)
			}
		})
	}
}

func TestRegisterConflicts(t *testing.T) {
	repo := newTestRepo(t)
	auth := NewAuthService(repo)
	ctx := context.Background()
	register(t, auth, "ana")

	tests := []struct {
		name    string
		handle  string
		email   string
		wantErr error
	}{
		{"email taken", "other", "ana@example.com", domain.ErrEmailTaken},
		{"handle taken after normalization", "A-N-A", "new@example.com", domain.ErrHandleTaken},
		{"empty handle", "***", "new@example.com", domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Register(ctx, tt.handle, "x", tt.email, "pw")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFindOrCreateByEmail(t *testing.T) {
	repo := newTestRepo(t)
	auth := NewAuthService(repo)
	ctx := context.Background()
	register(t, auth, "ana")

	created, err := auth.FindOrCreateByEmail(ctx, "ana@gmail.com", "Ana G")
	if err != nil {
		t.Fatal(err)
	}
	if created.Handle != "ana1" || created.Name != "Ana G" {
		t.Errorf("unexpected profile: %+v", created)
	}

	again, err := auth.FindOrCreateByEmail(ctx, "ANA@gmail.com", "ignored")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != created.ID {
		t.Errorf("expected existing profile %s, got %s", created.ID, again.ID)
	}

	// OAuth accounts have no password to log in with
	if _, err := auth.Authenticate(ctx, "ana@gmail.com", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}
