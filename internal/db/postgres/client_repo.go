package postgres

import (
	"Tutorhub/internal/core/auth"
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type postgresClientRepo struct {
	db *sql.DB
}

// NewClientRepository creates a new PostgreSQL OAuth client repository
func NewClientRepository(db *sql.DB) auth.ClientRepository {
	return &postgresClientRepo{db: db}
}

// GetByID retrieves a registered client by its ID
func (r *postgresClientRepo) GetByID(ctx context.Context, id uuid.UUID) (*auth.Client, error) {
	client := &auth.Client{}
	query := `
		SELECT id, secret_hash, user_id, grant_type, response_type, scope, redirect_uris, created_at, updated_at
		FROM oauth_clients
		WHERE id = $1`

	var secretHash []byte
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&client.ID, &secretHash, &client.UserID, &client.GrantType,
			&client.ResponseType, &client.Scope, pq.Array(&client.RedirectURIs),
			&client.CreatedAt, &client.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, auth.ErrInvalidClient
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	client.SecretHash = secretHash
	return client, nil
}

// Create inserts a registered client
func (r *postgresClientRepo) Create(ctx context.Context, client *auth.Client) (*auth.Client, error) {
	query := `
		INSERT INTO oauth_clients (id, secret_hash, user_id, grant_type, response_type, scope, redirect_uris)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}

	err := r.db.QueryRowContext(ctx, query,
		client.ID, client.SecretHash, client.UserID, client.GrantType,
		client.ResponseType, client.Scope, pq.Array(client.RedirectURIs)).
		Scan(&client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, fmt.Errorf("client already registered: %w", err)
		}
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, nil
}
