package persistence

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
)

// UserAdapter implements domain.UserRepository over pgxpool.
type UserAdapter struct {
	db *pgxpool.Pool
}

func NewUserAdapter(db *pgxpool.Pool) *UserAdapter {
	return &UserAdapter{db: db}
}

func (a *UserAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, email, name, country, encrypted_access_token, encrypted_refresh_token,
		       token_expires_at, needs_reauthorization, change_cursor, learning_goals,
		       created_at, updated_at, deleted_at
		FROM users WHERE id = $1 AND deleted_at IS NULL`

	return a.scanUser(a.db.QueryRow(ctx, query, id))
}

func (a *UserAdapter) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, name, country, encrypted_access_token, encrypted_refresh_token,
		       token_expires_at, needs_reauthorization, change_cursor, learning_goals,
		       created_at, updated_at, deleted_at
		FROM users WHERE email = $1 AND deleted_at IS NULL`

	return a.scanUser(a.db.QueryRow(ctx, query, email))
}

func (a *UserAdapter) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var name, country sql.NullString
	var deletedAt sql.NullTime

	err := row.Scan(
		&u.ID, &u.Email, &name, &country,
		&u.EncryptedAccessToken, &u.EncryptedRefreshToken, &u.TokenExpiresAt,
		&u.NeedsReauthorization, &u.ChangeCursor, &u.Preferences.LearningGoals,
		&u.CreatedAt, &u.UpdatedAt, &deletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.DatabaseError("get user", err)
	}
	if name.Valid {
		u.Name = &name.String
	}
	if country.Valid {
		u.Country = &country.String
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return &u, nil
}

func (a *UserAdapter) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, country, encrypted_access_token, encrypted_refresh_token,
		                    token_expires_at, needs_reauthorization, change_cursor, learning_goals)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	err := a.db.QueryRow(ctx, query,
		user.ID, user.Email, user.Name, user.Country,
		user.EncryptedAccessToken, user.EncryptedRefreshToken, user.TokenExpiresAt,
		user.NeedsReauthorization, user.ChangeCursor, user.Preferences.LearningGoals,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return wrapIntegrityOrDB("create user", "users_email_key", err)
	}
	return nil
}

func (a *UserAdapter) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users SET name = $2, country = $3, encrypted_access_token = $4,
		       encrypted_refresh_token = $5, token_expires_at = $6, needs_reauthorization = $7,
		       learning_goals = $8, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := a.db.QueryRow(ctx, query,
		user.ID, user.Name, user.Country, user.EncryptedAccessToken,
		user.EncryptedRefreshToken, user.TokenExpiresAt, user.NeedsReauthorization,
		user.Preferences.LearningGoals,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperr.NotFound("user")
		}
		return apperr.DatabaseError("update user", err)
	}
	return nil
}

func (a *UserAdapter) UpdateCursor(ctx context.Context, id uuid.UUID, cursor string) error {
	query := `UPDATE users SET change_cursor = $2, updated_at = NOW() WHERE id = $1`

	tag, err := a.db.Exec(ctx, query, id, cursor)
	if err != nil {
		return apperr.DatabaseError("update cursor", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (a *UserAdapter) MarkNeedsReauthorization(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET needs_reauthorization = true, updated_at = NOW() WHERE id = $1`

	tag, err := a.db.Exec(ctx, query, id)
	if err != nil {
		return apperr.DatabaseError("mark needs reauthorization", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (a *UserAdapter) ListActive(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT id, email, name, country, encrypted_access_token, encrypted_refresh_token,
		       token_expires_at, needs_reauthorization, change_cursor, learning_goals,
		       created_at, updated_at, deleted_at
		FROM users WHERE deleted_at IS NULL AND needs_reauthorization = false
		ORDER BY id`

	rows, err := a.db.Query(ctx, query)
	if err != nil {
		return nil, apperr.DatabaseError("list active users", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := a.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.DatabaseError("list active users", err)
	}
	return users, nil
}
