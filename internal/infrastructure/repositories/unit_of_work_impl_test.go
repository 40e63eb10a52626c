package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	domainerrors "cred-vault.backend/internal/domain/errors"
)

func TestUnitOfWork_Commit(t *testing.T) {
	db := newTestDB(t)
	createCredentialTable(t, db)
	uow := NewUnitOfWork(db)
	repo := NewCredentialRepository(db)
	ctx := context.Background()

	cred := testCredential("db.internal", 5432, null.String{})
	err := uow.Do(ctx, func(txCtx context.Context) error {
		return repo.Create(txCtx, cred)
	})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, cred.ID)
	require.NoError(t, err)
	require.Equal(t, cred.ConnectionHash, got.ConnectionHash)
}

func TestUnitOfWork_RollbackOnError(t *testing.T) {
	db := newTestDB(t)
	createCredentialTable(t, db)
	uow := NewUnitOfWork(db)
	repo := NewCredentialRepository(db)
	ctx := context.Background()

	cred := testCredential("db.internal", 5432, null.String{})
	boom := errors.New("boom")
	err := uow.Do(ctx, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, cred); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// the insert was rolled back
	_, err = repo.FindByHash(ctx, cred.ConnectionHash)
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestUnitOfWork_WritesOutsideTxUnaffected(t *testing.T) {
	db := newTestDB(t)
	createCredentialTable(t, db)
	uow := NewUnitOfWork(db)
	repo := NewCredentialRepository(db)
	ctx := context.Background()

	outside := testCredential("outside.internal", 5432, null.String{})
	require.NoError(t, repo.Create(ctx, outside))

	inside := testCredential("inside.internal", 5432, null.String{})
	_ = uow.Do(ctx, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, inside); err != nil {
			return err
		}
		return errors.New("force rollback")
	})

	// the row created outside the transaction survives the rollback
	got, err := repo.FindByID(ctx, outside.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)

	require.NoError(t, repo.TouchLastUsed(ctx, outside.ID, time.Now().UTC()))
}
