package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wadjakorntonsri/linkbio/pkg/core/domain"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"
)

type VisitService struct {
	repo   ports.Repository
	window time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

func NewVisitService(repo ports.Repository, window time.Duration, log zerolog.Logger) *VisitService {
	return &VisitService{
		repo:   repo,
		window: window,
		log:    log.With().Str("component", "visits").Logger(),
		now:    time.Now,
	}
}

// TrackVisit counts a view of handle at most once per distinct viewer.
// viewerID is empty for anonymous views, which are keyed by ip instead.
// It never fails; storage errors are logged and dropped.
func (s *VisitService) TrackVisit(ctx context.Context, handle, viewerID, ip string) {
	log := s.log.With().Str("handle", handle).Logger()

	profile, err := s.repo.GetProfileByHandle(ctx, NormalizeHandle(handle))
	if err != nil {
		log.Error().Err(err).Msg("visit tracking: profile lookup failed")
		return
	}
	if profile == nil {
		return
	}
	if viewerID != "" && viewerID == profile.ID {
		return
	}

	key := domain.VisitorKey{VisitorID: viewerID}
	if !key.Authenticated() {
		if ip == "" {
			log.Warn().Msg("visit tracking: anonymous view without address")
			return
		}
		key.IP = ip
	}

	existing, err := s.repo.FindVisit(ctx, profile.ID, key)
	if err != nil {
		log.Error().Err(err).Msg("visit tracking: visit lookup failed")
		return
	}
	if existing != nil {
		return
	}

	visit := &domain.Visit{
		ID:        uuid.NewString(),
		ProfileID: profile.ID,
		VisitorID: key.VisitorID,
		IP:        key.IP,
		CreatedAt: s.now().UTC(),
	}

	// A racing request for the same viewer may win the insert
	err = s.repo.RecordVisit(ctx, visit)
	switch {
	case errors.Is(err, domain.ErrVisitConflict):
		log.Debug().Msg("visit tracking: already recorded")
	case err != nil:
		log.Error().Err(err).Msg("visit tracking: record failed")
	}
}

// GetActivity reports daily visit counts over the trailing window, both
// bounds inclusive, with days taken in UTC. Today spans the current UTC day.
func (s *VisitService) GetActivity(ctx context.Context, handle string) (*domain.Activity, error) {
	profile, err := s.repo.GetProfileByHandle(ctx, NormalizeHandle(handle))
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}

	now := s.now().UTC()
	daily, err := s.repo.DailyVisits(ctx, profile.ID, now.Add(-s.window), now)
	if err != nil {
		return nil, err
	}

	dayStart := now.Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24*time.Hour - time.Millisecond)
	today, err := s.repo.CountVisitsBetween(ctx, profile.ID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	return &domain.Activity{Today: today, DailyActivity: daily}, nil
}
