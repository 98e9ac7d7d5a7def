package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Preferences holds per-user tunables the pipeline consults when scoring.
// LearningGoals is an ordered list of keywords used by the feature
// extractor's topic-match score (spec.md §4.4); order is preserved on the
// wire but carries no scoring weight today.
type Preferences struct {
	LearningGoals []string `json:"learning_goals,omitempty"`
}

// User is the pipeline's top-level identity. A change cursor is mutated
// only by the Inbox Synchronizer (spec.md §4.1); credential material is
// stored encrypted at rest and never logged.
type User struct {
	ID      uuid.UUID `json:"id"`
	Email   string    `json:"email"`
	Name    *string   `json:"name,omitempty"`
	Country *string   `json:"country,omitempty"`

	// Inbox credential, encrypted at rest. AccessToken is short-lived and
	// refreshed from RefreshToken; both are opaque ciphertext to every
	// layer above the credential store.
	EncryptedAccessToken  string    `json:"-"`
	EncryptedRefreshToken string    `json:"-"`
	TokenExpiresAt        time.Time `json:"token_expires_at"`

	// NeedsReauthorization is set when a refresh attempt fails with an
	// unambiguous revocation signal (e.g. OAuth2 invalid_grant). The
	// synchronizer stops advancing this user until it is cleared out of
	// band by a fresh authorization.
	NeedsReauthorization bool `json:"needs_reauthorization"`

	// ChangeCursor is the opaque token identifying "what changed since" in
	// the inbox provider. Empty means no sync has completed yet, which
	// triggers a bounded initial sync (spec.md §4.1).
	ChangeCursor string `json:"change_cursor,omitempty"`

	Preferences Preferences `json:"preferences"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// TokenExpired reports whether the stored access token needs a refresh.
func (u *User) TokenExpired() bool {
	return !u.TokenExpiresAt.IsZero() && time.Now().After(u.TokenExpiresAt)
}

// HasCursor reports whether this user has completed at least one sync pass.
func (u *User) HasCursor() bool {
	return u.ChangeCursor != ""
}

// UserRepository persists User rows, including the change cursor mutated by
// the Inbox Synchronizer and the credential fields refreshed by its OAuth
// collaborator.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error

	// UpdateCursor atomically advances the change cursor; it is the only
	// sanctioned path for mutating ChangeCursor (spec.md §3).
	UpdateCursor(ctx context.Context, id uuid.UUID, cursor string) error

	// MarkNeedsReauthorization flags a user after an unambiguous credential
	// revocation signal; the synchronizer stops advancing them.
	MarkNeedsReauthorization(ctx context.Context, id uuid.UUID) error

	// ListActive returns users eligible for sync: not soft-deleted and not
	// awaiting reauthorization.
	ListActive(ctx context.Context) ([]*User, error)
}
