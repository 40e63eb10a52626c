package repositories

import (
	"context"
	"time"

	"cred-vault.backend/internal/domain/entities"
	"github.com/volatiletech/null/v8"
)

type CredentialRepository interface {
	Create(ctx context.Context, cred *entities.Credential) error
	Update(ctx context.Context, cred *entities.Credential) error
	// FindByID returns the credential regardless of its active flag.
	FindByID(ctx context.Context, id uint) (*entities.Credential, error)
	FindActiveByID(ctx context.Context, id uint) (*entities.Credential, error)
	// FindByHash returns the credential for a connection hash regardless of
	// its active flag; soft-deleted rows are found here for reactivation.
	FindByHash(ctx context.Context, hash string) (*entities.Credential, error)
	FindActiveByHash(ctx context.Context, hash string) (*entities.Credential, error)
	// ListActive returns active credentials visible to the session (owned by
	// it or global), most recently used first.
	ListActive(ctx context.Context, ownerSession null.String) ([]*entities.Credential, error)
	TouchLastUsed(ctx context.Context, id uint, at time.Time) error
	SoftDelete(ctx context.Context, id uint, at time.Time) error
}
