package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LinkType distinguishes a canonicalized video reference from a
// playlist-only reference (spec.md §4.2, shape "playlist?list=PID").
type LinkType string

const (
	LinkTypeVideo    LinkType = "video"
	LinkTypePlaylist LinkType = "playlist"
)

// Link is a canonicalized reference to the target platform extracted from
// one Email, identified by (user, email, video-id). Created by the Email
// Processor; never mutated.
type Link struct {
	ID          int64     `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	EmailID     int64     `json:"email_id"`
	Type        LinkType  `json:"type"`
	CanonicalURL string   `json:"canonical_url"`
	VideoID      string   `json:"video_id,omitempty"`
	PlaylistID   string   `json:"playlist_id,omitempty"`

	// IsDuplicate is true iff this (user, video-id) pair already existed
	// before this row was inserted (spec.md §3). Computed at insert time
	// inside the same transaction via SELECT EXISTS, never recomputed
	// afterward.
	IsDuplicate bool `json:"is_duplicate"`

	ExtractedAt time.Time `json:"extracted_at"`
}

// LinkRepository persists Link rows with ON CONFLICT DO NOTHING semantics
// on (user_id, email_id, video_id) per spec.md §4.2.
type LinkRepository interface {
	GetByID(ctx context.Context, id int64) (*Link, error)

	// CreateIgnoreDuplicate inserts link, tolerating a unique-constraint
	// hit as a no-op success (at-least-once redelivery proof). Returns the
	// new row id (0 when the insert was a no-op) and whether the row was
	// newly inserted.
	CreateIgnoreDuplicate(ctx context.Context, link *Link) (id int64, inserted bool, err error)

	// ExistsForVideoID reports whether (userID, videoID) already has a
	// Link row. CreateIgnoreDuplicate runs the same check itself to set
	// IsDuplicate.
	ExistsForVideoID(ctx context.Context, userID uuid.UUID, videoID string) (bool, error)

	ListByEmailID(ctx context.Context, emailID int64) ([]*Link, error)
	ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*Link, error)

	// ListMissingMetadata returns the distinct ids among videoIDs that have
	// no VideoMetadata row yet, for fan-out into enrich jobs.
	ListMissingMetadata(ctx context.Context, userID uuid.UUID, videoIDs []string) ([]string, error)
}
