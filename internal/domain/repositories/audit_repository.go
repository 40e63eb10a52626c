package repositories

import (
	"context"

	"cred-vault.backend/internal/domain/entities"
)

type AuditRepository interface {
	// Append writes one audit entry. The audit log is append-only; there is
	// no update or delete.
	Append(ctx context.Context, entry *entities.AuditEntry) error
	// List returns entries newest first, bounded by limit. A nil
	// credentialID lists entries across all credentials.
	List(ctx context.Context, credentialID *uint, limit int) ([]*entities.AuditEntry, error)
}
