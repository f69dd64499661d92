package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"github.com/wadjakorntonsri/linkbio/pkg/core/domain"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"
	msqlite "modernc.org/sqlite" // Local SQLite driver
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	// A local SQLite file has a single writer; one connection avoids
	// SQLITE_BUSY when concurrent requests upgrade to write transactions.
	if driverName == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		handle TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		links JSON NOT NULL DEFAULT '[]',
		total_visits INTEGER NOT NULL DEFAULT 0,
		unique_visitors JSON NOT NULL DEFAULT '[]',
		visit_history JSON NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS visits (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		visitor_id TEXT,
		ip TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY(profile_id) REFERENCES profiles(id)
	);
	CREATE INDEX IF NOT EXISTS idx_visits_profile_created ON visits(profile_id, created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS uq_visits_profile_visitor ON visits(profile_id, visitor_id) WHERE visitor_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS uq_visits_profile_ip ON visits(profile_id, ip) WHERE ip IS NOT NULL;
	`
	_, err := db.Exec(query)
	return err
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Timestamps are stored as unix milliseconds so range filters compare integers.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// libsql reports constraint failures as plain text
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// profileConflict maps a unique violation on the profiles table to the
// matching domain error.
func profileConflict(err error) error {
	if !isUniqueViolation(err) {
		return err
	}
	if strings.Contains(err.Error(), "profiles.email") {
		return domain.ErrEmailTaken
	}
	return domain.ErrHandleTaken
}

// --- Profile Repository Implementation ---

const profileColumns = `id, handle, name, email, password, description, image, links,
	total_visits, unique_visitors, visit_history, created_at, updated_at`

type historyEntry struct {
	VisitorID *string `json:"visitor_id"`
	Timestamp int64   `json:"timestamp"`
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var p domain.Profile
	var linksJSON, uniqueJSON, historyJSON []byte
	var createdAt, updatedAt int64

	err := row.Scan(
		&p.ID, &p.Handle, &p.Name, &p.Email, &p.Password, &p.Description, &p.Image, &linksJSON,
		&p.Stats.TotalVisits, &uniqueJSON, &historyJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)

	if err := json.Unmarshal(linksJSON, &p.Links); err != nil {
		return nil, fmt.Errorf("profile %s: bad links column: %w", p.ID, err)
	}
	if err := json.Unmarshal(uniqueJSON, &p.Stats.UniqueVisitors); err != nil {
		return nil, fmt.Errorf("profile %s: bad unique_visitors column: %w", p.ID, err)
	}

	var history []historyEntry
	if err := json.Unmarshal(historyJSON, &history); err != nil {
		return nil, fmt.Errorf("profile %s: bad visit_history column: %w", p.ID, err)
	}
	for _, h := range history {
		entry := domain.VisitHistory{Timestamp: fromMillis(h.Timestamp)}
		if h.VisitorID != nil {
			entry.VisitorID = *h.VisitorID
		}
		p.Stats.VisitHistory = append(p.Stats.VisitHistory, entry)
	}

	if p.Links == nil {
		p.Links = []domain.SocialLink{}
	}
	if p.Stats.UniqueVisitors == nil {
		p.Stats.UniqueVisitors = []string{}
	}
	return &p, nil
}

func (r *SQLiteRepository) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	query := `INSERT INTO profiles (` + profileColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	linksJSON, err := json.Marshal(nonNilLinks(profile.Links))
	if err != nil {
		return err
	}
	uniqueJSON, err := json.Marshal(nonNilStrings(profile.Stats.UniqueVisitors))
	if err != nil {
		return err
	}
	history := make([]historyEntry, 0, len(profile.Stats.VisitHistory))
	for _, h := range profile.Stats.VisitHistory {
		entry := historyEntry{Timestamp: toMillis(h.Timestamp)}
		if h.VisitorID != "" {
			id := h.VisitorID
			entry.VisitorID = &id
		}
		history = append(history, entry)
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		profile.ID, profile.Handle, profile.Name, profile.Email, profile.Password,
		profile.Description, profile.Image, string(linksJSON),
		profile.Stats.TotalVisits, string(uniqueJSON), string(historyJSON),
		toMillis(profile.CreatedAt), toMillis(profile.UpdatedAt),
	)
	if err != nil {
		return profileConflict(err)
	}
	return nil
}

func (r *SQLiteRepository) getProfile(ctx context.Context, where string, arg interface{}) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE ` + where
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *SQLiteRepository) GetProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	return r.getProfile(ctx, "id = ?", id)
}

func (r *SQLiteRepository) GetProfileByHandle(ctx context.Context, handle string) (*domain.Profile, error) {
	return r.getProfile(ctx, "handle = ?", handle)
}

func (r *SQLiteRepository) GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return r.getProfile(ctx, "email = ?", email)
}

func (r *SQLiteRepository) UpdateProfile(ctx context.Context, profile *domain.Profile) error {
	query := `UPDATE profiles SET handle = ?, name = ?, description = ?, image = ?, links = ?, updated_at = ? WHERE id = ?`

	linksJSON, err := json.Marshal(nonNilLinks(profile.Links))
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		profile.Handle, profile.Name, profile.Description, profile.Image, string(linksJSON),
		toMillis(profile.UpdatedAt), profile.ID,
	)
	if err != nil {
		return profileConflict(err)
	}
	return nil
}

func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// --- Visit Repository Implementation ---

func (r *SQLiteRepository) FindVisit(ctx context.Context, profileID string, key domain.VisitorKey) (*domain.Visit, error) {
	query := `SELECT id, profile_id, visitor_id, ip, created_at FROM visits WHERE profile_id = ? AND ip = ?`
	arg := key.IP
	if key.Authenticated() {
		query = `SELECT id, profile_id, visitor_id, ip, created_at FROM visits WHERE profile_id = ? AND visitor_id = ?`
		arg = key.VisitorID
	}

	v, err := scanVisit(r.db.QueryRowContext(ctx, query, profileID, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func scanVisit(row rowScanner) (*domain.Visit, error) {
	var v domain.Visit
	var visitorID, ip sql.NullString
	var createdAt int64
	if err := row.Scan(&v.ID, &v.ProfileID, &visitorID, &ip, &createdAt); err != nil {
		return nil, err
	}
	v.VisitorID = visitorID.String
	v.IP = ip.String
	v.CreatedAt = fromMillis(createdAt)
	return &v, nil
}

func (r *SQLiteRepository) RecordVisit(ctx context.Context, visit *domain.Visit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	createdAt := toMillis(visit.CreatedAt)

	// 1. Insert Visit Record; the partial unique indexes reject repeat viewers
	queryVisit := `INSERT INTO visits (id, profile_id, visitor_id, ip, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, queryVisit, visit.ID, visit.ProfileID, nullable(visit.VisitorID), nullable(visit.IP), createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVisitConflict
		}
		return err
	}

	// 2. Bump embedded stats (Atomic within the transaction)
	visitor := nullable(visit.VisitorID)
	queryStats := `
		UPDATE profiles SET
			total_visits = total_visits + 1,
			visit_history = json_insert(visit_history, '$[#]', json_object('visitor_id', ?, 'timestamp', ?)),
			unique_visitors = CASE
				WHEN ? IS NULL OR EXISTS (SELECT 1 FROM json_each(profiles.unique_visitors) WHERE value = ?)
				THEN unique_visitors
				ELSE json_insert(unique_visitors, '$[#]', ?)
			END
		WHERE id = ?`
	res, err := tx.ExecContext(ctx, queryStats, visitor, createdAt, visitor, visitor, visitor, visit.ProfileID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrProfileNotFound // rolls back the visit insert
	}

	return tx.Commit()
}

func (r *SQLiteRepository) CountVisits(ctx context.Context, profileID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits WHERE profile_id = ?`, profileID).Scan(&count)
	return count, err
}

func (r *SQLiteRepository) CountVisitsBetween(ctx context.Context, profileID string, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visits WHERE profile_id = ? AND created_at >= ? AND created_at <= ?`,
		profileID, toMillis(from), toMillis(to),
	).Scan(&count)
	return count, err
}

func (r *SQLiteRepository) RecentVisits(ctx context.Context, profileID string, limit int) ([]domain.Visit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, profile_id, visitor_id, ip, created_at
		FROM visits
		WHERE profile_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, profileID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visits := []domain.Visit{}
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, *v)
	}
	return visits, rows.Err()
}

func (r *SQLiteRepository) DailyVisits(ctx context.Context, profileID string, from, to time.Time) ([]domain.DailyVisit, error) {
	// Day buckets are UTC: strftime with 'unixepoch' yields UTC dates
	rows, err := r.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d', created_at / 1000, 'unixepoch') AS date, COUNT(*)
		FROM visits
		WHERE profile_id = ? AND created_at >= ? AND created_at <= ?
		GROUP BY date
		ORDER BY date ASC`, profileID, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("daily visits: %w", err)
	}
	defer rows.Close()

	days := []domain.DailyVisit{}
	for rows.Next() {
		var d domain.DailyVisit
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func nonNilLinks(links []domain.SocialLink) []domain.SocialLink {
	if links == nil {
		return []domain.SocialLink{}
	}
	return links
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Ensure interface compliance
var _ ports.Repository = (*SQLiteRepository)(nil)
