// internal/adapter/storage/report_store.go

// Package storage provides the PostgreSQL-backed report store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"kavach/internal/domain/report"
	"kavach/internal/geo"
)

// ReportStore implements report.Store on PostgreSQL.
type ReportStore struct {
	db *pgxpool.Pool
}

// NewReportStore creates a new report store.
func NewReportStore(db *pgxpool.Pool) *ReportStore {
	return &ReportStore{
		db: db,
	}
}

// EnsureSchema creates the report tables when they do not exist.
func (s *ReportStore) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			lat DOUBLE PRECISION NOT NULL,
			lng DOUBLE PRECISION NOT NULL,
			geo_key TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			urgent BOOLEAN NOT NULL DEFAULT FALSE,
			anonymous BOOLEAN NOT NULL DEFAULT FALSE,
			station_id TEXT NOT NULL DEFAULT '',
			media_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_reports_geo_key ON reports (geo_key, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports (created_at DESC);

		CREATE TABLE IF NOT EXISTS status_updates (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			report_id TEXT NOT NULL,
			author TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_status_updates_report ON status_updates (report_id, seq);

		CREATE TABLE IF NOT EXISTS media_refs (
			id TEXT PRIMARY KEY,
			report_id TEXT NOT NULL,
			url TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_media_refs_report ON media_refs (report_id);
	`

	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("error creating report schema: %w", err)
	}

	return nil
}

const reportColumns = `
	id, category, description, lat, lng, geo_key, status,
	created_at, updated_at, urgent, anonymous, station_id, media_count
`

func scanReport(row pgx.Row) (*report.Report, error) {
	var r report.Report
	var category, status string

	err := row.Scan(
		&r.ID,
		&category,
		&r.Description,
		&r.Lat,
		&r.Lng,
		&r.GeoKey,
		&status,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.Urgent,
		&r.Anonymous,
		&r.StationID,
		&r.MediaCount,
	)
	if err != nil {
		return nil, err
	}

	r.Category = report.Category(category)
	r.Status = report.Status(status)

	return &r, nil
}

// Get retrieves a report by ID.
func (s *ReportStore) Get(ctx context.Context, id string) (*report.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	r, err := scanReport(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, report.ErrNotFound
		}
		return nil, fmt.Errorf("error querying report: %w", err)
	}

	return r, nil
}

// Put inserts or replaces a report.
func (s *ReportStore) Put(ctx context.Context, r report.Report) error {
	query := `
		INSERT INTO reports (
			id, category, description, lat, lng, geo_key, status,
			created_at, updated_at, urgent, anonymous, station_id, media_count
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (id) DO UPDATE
		SET
			category = $2,
			description = $3,
			lat = $4,
			lng = $5,
			geo_key = $6,
			status = $7,
			updated_at = $9,
			urgent = $10,
			anonymous = $11,
			station_id = $12,
			media_count = $13
	`

	_, err := s.db.Exec(
		ctx,
		query,
		r.ID,
		string(r.Category),
		r.Description,
		r.Lat,
		r.Lng,
		r.GeoKey,
		string(r.Status),
		r.CreatedAt,
		r.UpdatedAt,
		r.Urgent,
		r.Anonymous,
		r.StationID,
		r.MediaCount,
	)
	if err != nil {
		return fmt.Errorf("error saving report: %w", err)
	}

	return nil
}

// Delete removes a report record.
func (s *ReportStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return report.ErrNotFound
	}

	return nil
}

// UpdateCoordinate sets a report's coordinate and derived key.
func (s *ReportStore) UpdateCoordinate(ctx context.Context, id string, lat, lng float64, geoKey string, updatedAt time.Time) (*report.Report, error) {
	query := `
		UPDATE reports
		SET lat = $2, lng = $3, geo_key = $4, updated_at = $5
		WHERE id = $1
		RETURNING ` + reportColumns

	r, err := scanReport(s.db.QueryRow(ctx, query, id, lat, lng, geoKey, updatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, report.ErrNotFound
		}
		return nil, fmt.Errorf("error updating report coordinate: %w", err)
	}

	return r, nil
}

// CompareAndSwapStatus moves a report between statuses only when it still
// holds the expected one. The conditional UPDATE serializes concurrent
// transitions on the same report at the database.
func (s *ReportStore) CompareAndSwapStatus(ctx context.Context, id string, from, to report.Status, updatedAt time.Time) (*report.Report, error) {
	query := `
		UPDATE reports
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + reportColumns

	r, err := scanReport(s.db.QueryRow(ctx, query, id, string(from), string(to), updatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing report from a lost race.
			if _, getErr := s.Get(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, report.ErrStatusConflict
		}
		return nil, fmt.Errorf("error updating report status: %w", err)
	}

	return r, nil
}

// QueryKeyRange returns reports whose geohash key falls inside the
// inclusive lexicographic range.
func (s *ReportStore) QueryKeyRange(ctx context.Context, kr geo.KeyRange, limit int) ([]report.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE geo_key >= $1 AND geo_key <= $2
		ORDER BY geo_key, created_at DESC
	`
	args := []interface{}{kr.Start, kr.End}

	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying key range: %w", err)
	}
	defer rows.Close()

	return collectReports(rows)
}

// QueryWindow returns reports created within [from, to], newest first.
func (s *ReportStore) QueryWindow(ctx context.Context, from, to time.Time) ([]report.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("error querying report window: %w", err)
	}
	defer rows.Close()

	return collectReports(rows)
}

func collectReports(rows pgx.Rows) ([]report.Report, error) {
	reports := []report.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return reports, nil
}

// AppendUpdate appends one audit entry.
func (s *ReportStore) AppendUpdate(ctx context.Context, u report.StatusUpdate) error {
	query := `
		INSERT INTO status_updates (id, report_id, author, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.Exec(ctx, query, u.ID, u.ReportID, string(u.Author), u.Content, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("error appending status update: %w", err)
	}

	return nil
}

// ListUpdates returns a report's audit trail in insertion order.
func (s *ReportStore) ListUpdates(ctx context.Context, reportID string) ([]report.StatusUpdate, error) {
	query := `
		SELECT id, report_id, author, content, created_at
		FROM status_updates
		WHERE report_id = $1
		ORDER BY seq
	`

	rows, err := s.db.Query(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("error querying status updates: %w", err)
	}
	defer rows.Close()

	updates := []report.StatusUpdate{}
	for rows.Next() {
		var u report.StatusUpdate
		var author string
		if err := rows.Scan(&u.ID, &u.ReportID, &author, &u.Content, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning status update: %w", err)
		}
		u.Author = report.AuthorKind(author)
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status updates: %w", err)
	}

	return updates, nil
}

// DeleteUpdates removes a report's audit trail.
func (s *ReportStore) DeleteUpdates(ctx context.Context, reportID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM status_updates WHERE report_id = $1`, reportID); err != nil {
		return fmt.Errorf("error deleting status updates: %w", err)
	}

	return nil
}

// AddMediaRef attaches a media reference to a report.
func (s *ReportStore) AddMediaRef(ctx context.Context, m report.MediaRef) error {
	query := `
		INSERT INTO media_refs (id, report_id, url, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.Exec(ctx, query, m.ID, m.ReportID, m.URL, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("error adding media reference: %w", err)
	}

	return nil
}

// ListMedia returns a report's media references.
func (s *ReportStore) ListMedia(ctx context.Context, reportID string) ([]report.MediaRef, error) {
	query := `
		SELECT id, report_id, url, created_at
		FROM media_refs
		WHERE report_id = $1
		ORDER BY created_at
	`

	rows, err := s.db.Query(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("error querying media references: %w", err)
	}
	defer rows.Close()

	media := []report.MediaRef{}
	for rows.Next() {
		var m report.MediaRef
		if err := rows.Scan(&m.ID, &m.ReportID, &m.URL, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning media reference: %w", err)
		}
		media = append(media, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media references: %w", err)
	}

	return media, nil
}

// DeleteMedia removes a report's media references.
func (s *ReportStore) DeleteMedia(ctx context.Context, reportID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM media_refs WHERE report_id = $1`, reportID); err != nil {
		return fmt.Errorf("error deleting media references: %w", err)
	}

	return nil
}
