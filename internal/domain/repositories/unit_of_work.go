package repositories

import (
	"context"
)

// UnitOfWork scopes a group of repository writes to a single transaction.
// The vault uses it for the primary write of a save; audit appends stay
// outside so an audit failure can never roll back the primary operation.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
