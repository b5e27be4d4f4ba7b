package postgres

import (
	"Tutorhub/internal/core/auth"
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

type postgresTokenRepo struct {
	db *sql.DB
}

// NewTokenRepository creates a new PostgreSQL token repository
func NewTokenRepository(db *sql.DB) auth.TokenRepository {
	return &postgresTokenRepo{db: db}
}

// CreateGrant stores an authorization-code grant
func (r *postgresTokenRepo) CreateGrant(ctx context.Context, grant *auth.GrantToken) error {
	query := `
		INSERT INTO oauth_grant_tokens (id, client_id, user_id, code_hash, redirect_uri, scope, expires_at, challenge, challenge_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	if grant.ID == uuid.Nil {
		grant.ID = uuid.New()
	}

	err := r.db.QueryRowContext(ctx, query,
		grant.ID, grant.ClientID, grant.UserID, grant.CodeHash, grant.RedirectURI,
		grant.Scope, grant.ExpiresAt, grant.Challenge, grant.ChallengeMethod).
		Scan(&grant.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create grant token: %w", err)
	}

	return nil
}

// GetGrantByCodeHash retrieves a grant by its code digest without
// consuming it
func (r *postgresTokenRepo) GetGrantByCodeHash(ctx context.Context, codeHash []byte) (*auth.GrantToken, error) {
	grant := &auth.GrantToken{}
	query := `
		SELECT id, client_id, user_id, code_hash, redirect_uri, scope, expires_at, challenge, challenge_method, created_at
		FROM oauth_grant_tokens
		WHERE code_hash = $1`

	err := r.db.QueryRowContext(ctx, query, codeHash).
		Scan(&grant.ID, &grant.ClientID, &grant.UserID, &grant.CodeHash,
			&grant.RedirectURI, &grant.Scope, &grant.ExpiresAt,
			&grant.Challenge, &grant.ChallengeMethod, &grant.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, auth.ErrInvalidGrant
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grant token: %w", err)
	}

	return grant, nil
}

// ExchangeGrant deletes the grant and inserts the bearer token in one
// transaction. Two concurrent exchanges of the same code race on the
// row delete and exactly one commits; a failed bearer insert rolls the
// delete back, leaving the code exchangeable.
func (r *postgresTokenRepo) ExchangeGrant(ctx context.Context, codeHash []byte, token *auth.BearerToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("failed to rollback transaction",
				slog.String("error", err.Error()),
			)
		}
	}()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM oauth_grant_tokens WHERE code_hash = $1`, codeHash)
	if err != nil {
		return fmt.Errorf("failed to consume grant token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return auth.ErrInvalidGrant
	}

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	var refreshHash any
	if len(token.RefreshHash) > 0 {
		refreshHash = token.RefreshHash
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO oauth_bearer_tokens (id, client_id, user_id, access_hash, refresh_hash, scope, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		token.ID, token.ClientID, token.UserID, token.AccessHash,
		refreshHash, token.Scope, token.ExpiresAt).
		Scan(&token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bearer token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit grant exchange: %w", err)
	}

	return nil
}

// CreateBearer stores an access/refresh token pair
func (r *postgresTokenRepo) CreateBearer(ctx context.Context, token *auth.BearerToken) error {
	query := `
		INSERT INTO oauth_bearer_tokens (id, client_id, user_id, access_hash, refresh_hash, scope, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	var refreshHash any
	if len(token.RefreshHash) > 0 {
		refreshHash = token.RefreshHash
	}

	err := r.db.QueryRowContext(ctx, query,
		token.ID, token.ClientID, token.UserID, token.AccessHash,
		refreshHash, token.Scope, token.ExpiresAt).
		Scan(&token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bearer token: %w", err)
	}

	return nil
}

const bearerColumns = `id, client_id, user_id, access_hash, refresh_hash, scope, expires_at, created_at`

func scanBearer(row interface{ Scan(...any) error }) (*auth.BearerToken, error) {
	token := &auth.BearerToken{}
	var refreshHash []byte
	err := row.Scan(&token.ID, &token.ClientID, &token.UserID, &token.AccessHash,
		&refreshHash, &token.Scope, &token.ExpiresAt, &token.CreatedAt)
	if err != nil {
		return nil, err
	}
	token.RefreshHash = refreshHash
	return token, nil
}

// GetBearerByAccessHash retrieves a bearer token by its access digest
func (r *postgresTokenRepo) GetBearerByAccessHash(ctx context.Context, accessHash []byte) (*auth.BearerToken, error) {
	query := `SELECT ` + bearerColumns + ` FROM oauth_bearer_tokens WHERE access_hash = $1`

	token, err := scanBearer(r.db.QueryRowContext(ctx, query, accessHash))
	if err == sql.ErrNoRows {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bearer token by access hash: %w", err)
	}

	return token, nil
}

// GetBearerByRefreshHash retrieves a bearer token by its refresh digest
func (r *postgresTokenRepo) GetBearerByRefreshHash(ctx context.Context, refreshHash []byte) (*auth.BearerToken, error) {
	query := `SELECT ` + bearerColumns + ` FROM oauth_bearer_tokens WHERE refresh_hash = $1`

	token, err := scanBearer(r.db.QueryRowContext(ctx, query, refreshHash))
	if err == sql.ErrNoRows {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bearer token by refresh hash: %w", err)
	}

	return token, nil
}

// DeleteBearer removes a bearer token row
func (r *postgresTokenRepo) DeleteBearer(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oauth_bearer_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bearer token: %w", err)
	}
	return nil
}

// CleanupExpired reaps grant codes and bearer tokens past expiry.
// Refresh-bearing tokens survive access expiry so the refresh grant can
// still find them; only tokens with no refresh digest are reaped.
func (r *postgresTokenRepo) CleanupExpired(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_grant_tokens WHERE expires_at < NOW()`); err != nil {
		return fmt.Errorf("failed to clean up grant tokens: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_bearer_tokens WHERE expires_at < NOW() AND refresh_hash IS NULL`); err != nil {
		return fmt.Errorf("failed to clean up bearer tokens: %w", err)
	}
	return nil
}
