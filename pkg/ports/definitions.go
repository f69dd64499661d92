package ports

import (
	"context"
	"io"
	"time"

	"github.com/wadjakorntonsri/linkbio/pkg/core/domain"
)

// ProfileRepository defines storage operations for profiles.
// Lookups return (nil, nil) when nothing matches.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *domain.Profile) error
	GetProfileByID(ctx context.Context, id string) (*domain.Profile, error)
	GetProfileByHandle(ctx context.Context, handle string) (*domain.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, profile *domain.Profile) error
	Dump(ctx context.Context) ([]domain.Profile, error) // For migration
}

// VisitRepository defines storage operations for visits
type VisitRepository interface {
	FindVisit(ctx context.Context, profileID string, key domain.VisitorKey) (*domain.Visit, error)

	// RecordVisit inserts the visit and, only if the insert succeeded, bumps
	// the profile's embedded stats. Returns domain.ErrVisitConflict when the
	// visitor was already recorded for this profile.
	RecordVisit(ctx context.Context, visit *domain.Visit) error

	CountVisits(ctx context.Context, profileID string) (int64, error)
	CountVisitsBetween(ctx context.Context, profileID string, from, to time.Time) (int64, error)
	RecentVisits(ctx context.Context, profileID string, limit int) ([]domain.Visit, error)
	DailyVisits(ctx context.Context, profileID string, from, to time.Time) ([]domain.DailyVisit, error)
}

// Repository is a store backend serving both profiles and visits
type Repository interface {
	ProfileRepository
	VisitRepository
	Close() error
}

// ImageStore persists uploaded avatars and returns their public URL
type ImageStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// VisitService records profile views and reports on them
type VisitService interface {
	TrackVisit(ctx context.Context, handle, viewerID, ip string)
	GetActivity(ctx context.Context, handle string) (*domain.Activity, error)
}

// ProfileService defines profile reads and edits
type ProfileService interface {
	GetPublicProfile(ctx context.Context, handle string) (*domain.PublicProfile, error)
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, id, handle, description string, links []domain.SocialLink) (*domain.Profile, error)
	UploadImage(ctx context.Context, id string, body io.Reader, filename, contentType string) (string, error)
	IsHandleAvailable(ctx context.Context, handle string) (bool, error)
}

// AuthService defines account registration and credential checks
type AuthService interface {
	Register(ctx context.Context, handle, name, email, password string) (*domain.Profile, error)
	Authenticate(ctx context.Context, email, password string) (*domain.Profile, error)
	FindOrCreateByEmail(ctx context.Context, email, name string) (*domain.Profile, error)
}
