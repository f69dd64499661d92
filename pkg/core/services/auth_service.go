package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wadjakorntonsri/linkbio/pkg/core/domain"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"
	"golang.org/x/crypto/bcrypt"
)

const maxHandleAttempts = 10

type AuthService struct {
	repo ports.ProfileRepository
	now  func() time.Time
}

func NewAuthService(repo ports.ProfileRepository) *AuthService {
	return &AuthService{repo: repo, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, handle, name, email, password string) (*domain.Profile, error) {
	handle = NormalizeHandle(handle)
	email = normalizeEmail(email)
	if handle == "" || email == "" || password == "" {
		return nil, domain.ErrInvalidInput
	}

	existing, err := s.repo.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	existing, err = s.repo.GetProfileByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrHandleTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := s.newProfile(handle, name, email)
	profile.Password = string(hash)

	// The unique indexes still catch a concurrent registration
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.Profile, error) {
	profile, err := s.repo.GetProfileByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}

	// Accounts created through Google have no password hash and never match
	if err := bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return profile, nil
}

// FindOrCreateByEmail returns the profile for an OAuth identity, creating one
// with a handle derived from the email's local part on first sign-in.
func (s *AuthService) FindOrCreateByEmail(ctx context.Context, email, name string) (*domain.Profile, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, domain.ErrInvalidInput
	}

	existing, err := s.repo.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	base := NormalizeHandle(strings.SplitN(email, "@", 2)[0])
	if base == "" {
		base = "user"
	}
	if name == "" {
		name = base
	}

	for i := 0; i < maxHandleAttempts; i++ {
		handle := base
		if i > 0 {
			handle = fmt.Sprintf("%s%d", base, i)
		}
		if i == maxHandleAttempts-1 {
			handle = base + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		}

		taken, err := s.repo.GetProfileByHandle(ctx, handle)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			continue
		}

		profile := s.newProfile(handle, name, email)
		err = s.repo.CreateProfile(ctx, profile)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, domain.ErrHandleTaken) {
			return nil, err
		}
	}
	return nil, domain.ErrHandleTaken
}

func (s *AuthService) newProfile(handle, name, email string) *domain.Profile {
	now := s.now()
	return &domain.Profile{
		ID:        uuid.NewString(),
		Handle:    handle,
		Name:      strings.TrimSpace(name),
		Email:     email,
		Links:     []domain.SocialLink{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
