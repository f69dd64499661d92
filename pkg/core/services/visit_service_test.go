package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/wadjakorntonsri/linkbio/pkg/core/domain"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"
)

const activityWindow = 180 * 24 * time.Hour

func newTestVisitService(repo ports.Repository) *VisitService {
	return NewVisitService(repo, activityWindow, zerolog.Nop())
}

func TestTrackVisitCountsDistinctViewersOnce(t *testing.T) {
	repo := newTestRepo(t)
	auth := NewAuthService(repo)
	svc := newTestVisitService(repo)
	ctx := context.Background()

	owner := register(t, auth, "ana")
	viewer := register(t, auth, "bea")

	tests := []struct {
		name       string
		viewerID   string
		ip         string
		wantTotal  int64
		wantVisits int64
	}{
		{"authenticated first view", viewer.ID, "10.0.0.1", 1, 1},
		{"authenticated repeat view", viewer.ID, "10.0.0.1", 1, 1},
		{"authenticated repeat from new address", viewer.ID, "10.9.9.9", 1, 1},
		{"self view", owner.ID, "10.0.0.5", 1, 1},
		{"anonymous first view", "", "10.0.0.1", 2, 2},
		{"anonymous same address", "", "10.0.0.1", 2, 2},
		{"anonymous other address", "", "10.0.0.2", 3, 3},
		{"anonymous without address", "", "", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.TrackVisit(ctx, "ana", tt.viewerID, tt.ip)

			p, err := repo.GetProfileByID(ctx, owner.ID)
			if err != nil {
				t.Fatal(err)
			}
			if p.Stats.TotalVisits != tt.wantTotal {
				t.Errorf("total visits = %d, want %d", p.Stats.TotalVisits, tt.wantTotal)
			}
			n, err := repo.CountVisits(ctx, owner.ID)
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.wantVisits {
				t.Errorf("stored visits = %d, want %d", n, tt.wantVisits)
			}
		})
	}

	p, _ := repo.GetProfileByID(ctx, owner.ID)
	if len(p.Stats.UniqueVisitors) != 1 || p.Stats.UniqueVisitors[0] != viewer.ID {
		t.Errorf("unique visitors = %v, want [%s]", p.Stats.UniqueVisitors, viewer.ID)
	}
}

func TestTrackVisitRepeatedViewsAreIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	auth := NewAuthService(repo)
	svc := newTestVisitService(repo)
	ctx := context.Background()

	owner := register(t, auth, "ana")
	viewer := register(t, auth, "bea")

	for i := 0; i < 25; i++ {
		svc.TrackVisit(ctx, "Ana", viewer.ID, "")
	}

	p, _ := repo.GetProfileByID(ctx, owner.ID)
	n, _ := repo.CountVisits(ctx, owner.ID)
	if p.Stats.TotalVisits != 1 || n != 1 || len(p.Stats.VisitHistory) != 1 {
		t.Errorf("after 25 views: total=%d stored=%d history=%d, want 1/1/1", p.Stats.TotalVisits, n, len(p.Stats.VisitHistory))
	}
}

func TestTrackVisitMissingProfileIsNoop(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestVisitService(repo)

	svc.TrackVisit(context.Background(), "ghost", "", "10.0.0.1")

	n, err := repo.CountVisits(context.Background(), "ghost")
	if err != nil || n != 0 {
		t.Errorf("CountVisits = (%d, %v), want 0", n, err)
	}
}

func TestTrackVisitConcurrentDuplicates(t *testing.T) {
	repo := newTestRepo(t)
	auth := NewAuthService(repo)
	svc := newTestVisitService(repo)
	ctx := context.Background()

	owner := register(t, auth, "ana")
	viewer := register(t, auth, "bea")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.TrackVisit(ctx, "ana", viewer.ID, "")
		}()
	}
	wg.Wait()

	p, _ := repo.GetProfileByID(ctx, owner.ID)
	n, _ := repo.CountVisits(ctx, owner.ID)
	if n != 1 || p.Stats.TotalVisits != 1 {
		t.Errorf("stored=%d total=%d, want exactly one recorded visit", n, p.Stats.TotalVisits)
	}
}

// racingRepo reports no existing visit but rejects the insert, like a
// request that lost the race on the unique index.
type racingRepo struct {
	ports.Repository
	recordErr error
	recorded  int
}

func (r *racingRepo) GetProfileByHandle(ctx context.Context, handle string) (*domain.Profile, error) {
	return &domain.Profile{ID: "p1", Handle: handle}, nil
}

func (r *racingRepo) FindVisit(ctx context.Context, profileID string, key domain.VisitorKey) (*domain.Visit, error) {
	return nil, nil
}

func (r *racingRepo) RecordVisit(ctx context.Context, visit *domain.Visit) error {
	r.recorded++
	return r.recordErr
}

func TestTrackVisitStoreErrors(t *testing.T) {
	tests := []struct {
		name      string
		recordErr error
		wantLevel string
	}{
		{"conflict is benign", fmt.Errorf("insert: %w", domain.ErrVisitConflict), ""},
		{"store failure is logged", errors.New("disk full"), `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			repo := &racingRepo{recordErr: tt.recordErr}
			svc := NewVisitService(repo, activityWindow, zerolog.New(&buf).Level(zerolog.InfoLevel))

			svc.TrackVisit(context.Background(), "ana", "u1", "")

			if repo.recorded != 1 {
				t.Errorf("RecordVisit called %d times, want 1", repo.recorded)
			}
			logged := buf.String()
			if tt.wantLevel == "" && logged != "" {
				t.Errorf("expected no log output, got %s", logged)
			}
			if tt.wantLevel != "" && !strings.Contains(logged, tt.wantLevel) {
				t.Errorf("expected %s in log output, got %s", tt.wantLevel, logged)
			}
		})
	}
}

func TestGetActivityWindowAndToday(t *testing.T) {
	repo := newTestRepo(t)
	owner := register(t, NewAuthService(repo), "ana")
	ctx := context.Background()

	svc := newTestVisitService(repo)
	svc.now = fixedClock("2025-06-30T12:00:00Z")
	now := svc.now()
	boundary := now.Add(-activityWindow)

	stamps := []time.Time{
		boundary.Add(-time.Millisecond), // just outside the window
		boundary,                        // exactly on the boundary
		now.Truncate(24 * time.Hour).Add(-time.Millisecond),
		now.Truncate(24 * time.Hour),
		now,
	}
	for i, ts := range stamps {
		v := &domain.Visit{ID: fmt.Sprintf("v%d", i), ProfileID: owner.ID, IP: fmt.Sprintf("10.0.0.%d", i), CreatedAt: ts}
		if err := repo.RecordVisit(ctx, v); err != nil {
			t.Fatal(err)
		}
	}

	activity, err := svc.GetActivity(ctx, "ana")
	if err != nil {
		t.Fatal(err)
	}
	if activity.Today != 2 {
		t.Errorf("today = %d, want 2", activity.Today)
	}

	want := []domain.DailyVisit{
		{Date: "2025-01-01", Count: 1},
		{Date: "2025-06-29", Count: 1},
		{Date: "2025-06-30", Count: 2},
	}
	if len(activity.DailyActivity) != len(want) {
		t.Fatalf("daily activity = %+v, want %+v", activity.DailyActivity, want)
	}
	for i := range want {
		if activity.DailyActivity[i] != want[i] {
			t.Errorf("day %d = %+v, want %+v", i, activity.DailyActivity[i], want[i])
		}
	}
}

func TestGetActivityGroupsByUTCDay(t *testing.T) {
	repo := newTestRepo(t)
	owner := register(t, NewAuthService(repo), "ana")
	ctx := context.Background()

	svc := newTestVisitService(repo)
	svc.now = fixedClock("2025-02-20T00:00:00Z")

	for i, s := range []string{"2025-02-13T00:00:00Z", "2025-02-12T23:00:00Z", "2025-02-12T01:00:00Z"} {
		ts, _ := time.Parse(time.RFC3339, s)
		v := &domain.Visit{ID: s, ProfileID: owner.ID, IP: fmt.Sprintf("10.1.0.%d", i), CreatedAt: ts}
		if err := repo.RecordVisit(ctx, v); err != nil {
			t.Fatal(err)
		}
	}

	activity, err := svc.GetActivity(ctx, "ana")
	if err != nil {
		t.Fatal(err)
	}
	want := []domain.DailyVisit{{Date: "2025-02-12", Count: 2}, {Date: "2025-02-13", Count: 1}}
	if len(activity.DailyActivity) != 2 || activity.DailyActivity[0] != want[0] || activity.DailyActivity[1] != want[1] {
		t.Errorf("daily activity = %+v, want %+v", activity.DailyActivity, want)
	}
	if activity.Today != 0 {
		t.Errorf("today = %d, want 0", activity.Today)
	}
}

func TestGetActivityEmptyAndMissing(t *testing.T) {
	repo := newTestRepo(t)
	register(t, NewAuthService(repo), "ana")
	svc := newTestVisitService(repo)
	ctx := context.Background()

	activity, err := svc.GetActivity(ctx, "ana")
	if err != nil {
		t.Fatal(err)
	}
	if activity.DailyActivity == nil || len(activity.DailyActivity) != 0 || activity.Today != 0 {
		t.Errorf("expected empty report, got %+v", activity)
	}

	if _, err := svc.GetActivity(ctx, "ghost"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Errorf("expected ErrProfileNotFound, got %v", err)
	}
}
