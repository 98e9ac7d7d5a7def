package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
)

// LinkAdapter implements domain.LinkRepository over pgxQuerier, so the
// same adapter runs against a pooled connection standalone or against an
// open transaction when embedded in an EmailProcessorTx.
type LinkAdapter struct {
	db pgxQuerier
}

func NewLinkAdapter(db *pgxpool.Pool) *LinkAdapter {
	return &LinkAdapter{db: db}
}

func (a *LinkAdapter) GetByID(ctx context.Context, id int64) (*domain.Link, error) {
	query := `
		SELECT id, user_id, email_id, type, canonical_url, video_id, playlist_id, is_duplicate, extracted_at
		FROM links WHERE id = $1`

	return a.scanLink(a.db.QueryRow(ctx, query, id))
}

func (a *LinkAdapter) scanLink(row pgx.Row) (*domain.Link, error) {
	var l domain.Link
	err := row.Scan(
		&l.ID, &l.UserID, &l.EmailID, &l.Type, &l.CanonicalURL,
		&l.VideoID, &l.PlaylistID, &l.IsDuplicate, &l.ExtractedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("link")
		}
		return nil, apperr.DatabaseError("get link", err)
	}
	return &l, nil
}

// CreateIgnoreDuplicate determines IsDuplicate via SELECT EXISTS for the
// video id, then inserts the row. Callers that need the check and the
// insert to be atomic against concurrently processed emails referencing
// the same video run this through EmailProcessorUnitOfWork, which embeds
// an instance of this adapter bound to the same open transaction rather
// than a standalone pooled connection (spec.md §3, §4.2 open question).
func (a *LinkAdapter) CreateIgnoreDuplicate(ctx context.Context, link *domain.Link) (int64, bool, error) {
	var exists bool
	if link.VideoID != "" {
		err := a.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM links WHERE user_id = $1 AND video_id = $2)`,
			link.UserID, link.VideoID,
		).Scan(&exists)
		if err != nil {
			return 0, false, apperr.DatabaseError("check link duplicate", err)
		}
	}
	link.IsDuplicate = exists

	query := `
		INSERT INTO links (user_id, email_id, type, canonical_url, video_id, playlist_id, is_duplicate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, email_id, video_id) DO NOTHING
		RETURNING id, extracted_at`

	var id int64
	var extractedAt time.Time
	err := a.db.QueryRow(ctx, query,
		link.UserID, link.EmailID, link.Type, link.CanonicalURL,
		link.VideoID, link.PlaylistID, link.IsDuplicate,
	).Scan(&id, &extractedAt)

	switch {
	case err == pgx.ErrNoRows:
		// ON CONFLICT DO NOTHING fired: another processor already inserted
		// this (user, email, video) triple. Not an error — at-least-once
		// redelivery proof (spec.md §4.2).
		return 0, false, nil
	case err != nil:
		return 0, false, apperr.DatabaseError("insert link", err)
	}

	link.ID = id
	link.ExtractedAt = extractedAt
	return id, true, nil
}

func (a *LinkAdapter) ExistsForVideoID(ctx context.Context, userID uuid.UUID, videoID string) (bool, error) {
	var exists bool
	err := a.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM links WHERE user_id = $1 AND video_id = $2)`,
		userID, videoID,
	).Scan(&exists)
	if err != nil {
		return false, apperr.DatabaseError("check link exists", err)
	}
	return exists, nil
}

func (a *LinkAdapter) ListByEmailID(ctx context.Context, emailID int64) ([]*domain.Link, error) {
	query := `
		SELECT id, user_id, email_id, type, canonical_url, video_id, playlist_id, is_duplicate, extracted_at
		FROM links WHERE email_id = $1 ORDER BY id`

	rows, err := a.db.Query(ctx, query, emailID)
	if err != nil {
		return nil, apperr.DatabaseError("list links by email", err)
	}
	defer rows.Close()
	return collectLinks(rows)
}

func (a *LinkAdapter) ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Link, error) {
	query := `
		SELECT id, user_id, email_id, type, canonical_url, video_id, playlist_id, is_duplicate, extracted_at
		FROM links
		WHERE user_id = $1 AND extracted_at >= $2 AND extracted_at < $3
		ORDER BY extracted_at`

	rows, err := a.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, apperr.DatabaseError("list links by date range", err)
	}
	defer rows.Close()
	return collectLinks(rows)
}

func collectLinks(rows pgx.Rows) ([]*domain.Link, error) {
	var links []*domain.Link
	for rows.Next() {
		var l domain.Link
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.EmailID, &l.Type, &l.CanonicalURL,
			&l.VideoID, &l.PlaylistID, &l.IsDuplicate, &l.ExtractedAt,
		); err != nil {
			return nil, apperr.DatabaseError("scan link", err)
		}
		links = append(links, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.DatabaseError("list links", err)
	}
	return links, nil
}

// ListMissingMetadata returns the subset of videoIDs with no VideoMetadata
// row, for fan-out into enrich jobs (spec.md §4.2 step 5).
func (a *LinkAdapter) ListMissingMetadata(ctx context.Context, userID uuid.UUID, videoIDs []string) ([]string, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT v.video_id
		FROM unnest($1::text[]) AS v(video_id)
		WHERE NOT EXISTS (SELECT 1 FROM video_metadata m WHERE m.video_id = v.video_id)`

	rows, err := a.db.Query(ctx, query, videoIDs)
	if err != nil {
		return nil, apperr.DatabaseError("list missing metadata", err)
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var videoID string
		if err := rows.Scan(&videoID); err != nil {
			return nil, apperr.DatabaseError("scan missing metadata video id", err)
		}
		missing = append(missing, videoID)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.DatabaseError("list missing metadata", err)
	}
	return missing, nil
}
