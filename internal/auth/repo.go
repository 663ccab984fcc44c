package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campusportal/portal-rest/internal/platform/db"
)

// ErrAccountNotFound reports an unknown username.
var ErrAccountNotFound = errors.New("auth: account not found")

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Account, error)
	CreateSession(ctx context.Context, id, username string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository over up_person and up_login_session.
type PGRepository struct {
	db db.Querier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(q db.Querier) *PGRepository {
	return &PGRepository{db: q}
}

// FindByUsername fetches the credentials of username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*Account, error) {
	account := &Account{Username: username}
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(password_hash, ''), enabled FROM up_person WHERE username = $1`,
		username,
	).Scan(&account.PasswordHash, &account.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("auth: find account: %w", err)
	}
	return account, nil
}

// CreateSession records a login for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id, username string, expiresAt time.Time, ip, ua string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO up_login_session (id, username, created_at, expires_at, ip, user_agent)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))`,
		id, username, time.Now().UTC(), expiresAt.UTC(), ip, ua,
	)
	if err != nil {
		return fmt.Errorf("auth: create session: %w", err)
	}
	return nil
}

// DeleteSession removes a login record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM up_login_session WHERE id = $1`, id); err != nil {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
