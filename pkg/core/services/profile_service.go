package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wadjakorntonsri/linkbio/pkg/core/domain"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"
)

type ProfileService struct {
	repo        ports.Repository
	images      ports.ImageStore
	recentLimit int
	now         func() time.Time
}

func NewProfileService(repo ports.Repository, images ports.ImageStore, recentLimit int) *ProfileService {
	if recentLimit < 1 {
		recentLimit = 10
	}
	return &ProfileService{repo: repo, images: images, recentLimit: recentLimit, now: time.Now}
}

// GetPublicProfile composes the page shown at /{handle}. The unique visitor
// count comes from the visit store rather than the embedded set.
func (s *ProfileService) GetPublicProfile(ctx context.Context, handle string) (*domain.PublicProfile, error) {
	profile, err := s.repo.GetProfileByHandle(ctx, NormalizeHandle(handle))
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}

	unique, err := s.repo.CountVisits(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentVisits(ctx, profile.ID, s.recentLimit)
	if err != nil {
		return nil, err
	}

	links := profile.Links
	if links == nil {
		links = []domain.SocialLink{}
	}

	return &domain.PublicProfile{
		ID:          profile.ID,
		Handle:      profile.Handle,
		Name:        profile.Name,
		Description: profile.Description,
		Image:       profile.Image,
		Links:       links,
		CreatedAt:   profile.CreatedAt,
		UpdatedAt:   profile.UpdatedAt,
		Stats: domain.PublicStats{
			TotalVisits:    profile.Stats.TotalVisits,
			UniqueVisitors: unique,
			RecentVisits:   recent,
		},
	}, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	profile, err := s.repo.GetProfileByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}
	return profile, nil
}

// UpdateProfile replaces the editable fields. An empty handle keeps the
// current one and nil links keep the current list.
func (s *ProfileService) UpdateProfile(ctx context.Context, id, handle, description string, links []domain.SocialLink) (*domain.Profile, error) {
	profile, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if handle != "" {
		normalized := NormalizeHandle(handle)
		if normalized == "" {
			return nil, domain.ErrInvalidInput
		}
		if normalized != profile.Handle {
			existing, err := s.repo.GetProfileByHandle(ctx, normalized)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != profile.ID {
				return nil, domain.ErrHandleTaken
			}
			profile.Handle = normalized
		}
	}

	profile.Description = description
	if links != nil {
		profile.Links = links
	}
	profile.UpdatedAt = s.now()

	if err := s.repo.UpdateProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *ProfileService) UploadImage(ctx context.Context, id string, body io.Reader, filename, contentType string) (string, error) {
	profile, err := s.GetProfile(ctx, id)
	if err != nil {
		return "", err
	}

	key := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	url, err := s.images.Upload(ctx, key, body, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	profile.Image = url
	profile.UpdatedAt = s.now()
	if err := s.repo.UpdateProfile(ctx, profile); err != nil {
		return "", err
	}
	return url, nil
}

func (s *ProfileService) IsHandleAvailable(ctx context.Context, handle string) (bool, error) {
	normalized := NormalizeHandle(handle)
	if normalized == "" {
		return false, domain.ErrInvalidInput
	}
	existing, err := s.repo.GetProfileByHandle(ctx, normalized)
	if err != nil {
		return false, err
	}
	return existing == nil, nil
}
