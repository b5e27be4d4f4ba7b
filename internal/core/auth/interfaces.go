package auth

import (
	"context"

	"github.com/google/uuid"
)

// ClientRepository defines the interface for OAuth client persistence
type ClientRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Client, error)
	Create(ctx context.Context, client *Client) (*Client, error)
}

// TokenRepository defines the interface for grant-code and bearer-token
// persistence. Lookups are by digest; plaintext never reaches storage.
type TokenRepository interface {
	CreateGrant(ctx context.Context, grant *GrantToken) error

	// GetGrantByCodeHash returns the grant with the given code digest
	// without consuming it. Returns ErrInvalidGrant when absent.
	GetGrantByCodeHash(ctx context.Context, codeHash []byte) (*GrantToken, error)

	// ExchangeGrant deletes the grant and stores the replacement bearer
	// token as one atomic unit. The first caller wins the delete;
	// concurrent exchanges of the same code observe ErrInvalidGrant. A
	// failure storing the bearer leaves the grant in place, so the code
	// is never consumed without a token existing.
	ExchangeGrant(ctx context.Context, codeHash []byte, token *BearerToken) error

	CreateBearer(ctx context.Context, token *BearerToken) error
	GetBearerByAccessHash(ctx context.Context, accessHash []byte) (*BearerToken, error)
	GetBearerByRefreshHash(ctx context.Context, refreshHash []byte) (*BearerToken, error)
	DeleteBearer(ctx context.Context, id uuid.UUID) error

	// CleanupExpired reaps rows past expiry. Validation never depends on
	// the reaper having run; expiry is checked at lookup time.
	CleanupExpired(ctx context.Context) error
}
