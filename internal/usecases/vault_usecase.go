package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"cred-vault.backend/internal/domain/entities"
	domainerrors "cred-vault.backend/internal/domain/errors"
	"cred-vault.backend/internal/domain/repositories"
	"cred-vault.backend/pkg/crypto"
	"cred-vault.backend/pkg/logger"
	"cred-vault.backend/pkg/metrics"
)

// VaultUsecase implements credential storage: deduplicated saves, encrypted
// secrets, soft deletes, and an unconditional audit trail. Conflicting saves
// for the same connection hash are serialized by a per-hash lock; the unique
// index on connection_hash backstops races across processes.
type VaultUsecase struct {
	credRepo  repositories.CredentialRepository
	auditRepo repositories.AuditRepository
	uow       repositories.UnitOfWork
	cipher    *crypto.CredentialCipher
	saveLocks *kmutex.Kmutex

	// sessionScopedDelete restricts DeleteCredential to rows visible to the
	// caller's session. Off by default.
	sessionScopedDelete bool
	auditListLimit      int
}

// NewVaultUsecase creates the credential vault usecase.
func NewVaultUsecase(
	credRepo repositories.CredentialRepository,
	auditRepo repositories.AuditRepository,
	uow repositories.UnitOfWork,
	cipher *crypto.CredentialCipher,
	sessionScopedDelete bool,
	auditListLimit int,
) *VaultUsecase {
	return &VaultUsecase{
		credRepo:            credRepo,
		auditRepo:           auditRepo,
		uow:                 uow,
		cipher:              cipher,
		saveLocks:           kmutex.New(),
		sessionScopedDelete: sessionScopedDelete,
		auditListLimit:      auditListLimit,
	}
}

// SaveCredential stores a credential with duplicate detection. An active
// credential with the same connection hash short-circuits to status "exists"
// and the supplied secret is discarded, never re-encrypted or compared. A
// soft-deleted row with the same hash is reactivated in place under the new
// secret. Exactly one audit entry is written per call, success or failure.
func (u *VaultUsecase) SaveCredential(ctx context.Context, input *entities.SaveCredentialInput) (*entities.SaveResult, error) {
	hash := crypto.ConnectionFingerprint(input.Host, input.Port, input.Database, input.Username, string(input.EngineType))

	if err := validateSaveInput(input); err != nil {
		return u.saveFailure(ctx, input.OwnerSession, hash, nil, entities.AuditOpCreate, err, domainerrors.BadRequest(err.Error()))
	}

	u.saveLocks.Lock(hash)
	defer u.saveLocks.Unlock(hash)

	now := time.Now().UTC()

	existing, err := u.credRepo.FindByHash(ctx, hash)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return u.saveFailure(ctx, input.OwnerSession, hash, nil, entities.AuditOpCreate, err, domainerrors.PersistenceError(err))
	}

	if existing != nil && existing.IsActive {
		if err := u.credRepo.TouchLastUsed(ctx, existing.ID, now); err != nil {
			return u.saveFailure(ctx, input.OwnerSession, hash, &existing.ID, entities.AuditOpDuplicateCheck, err, domainerrors.PersistenceError(err))
		}
		existing.LastUsed = &now

		u.recordAudit(ctx, &entities.AuditEntry{
			CredentialID:   &existing.ID,
			ConnectionHash: hash,
			Operation:      entities.AuditOpDuplicateCheck,
			Success:        true,
			OwnerSession:   input.OwnerSession,
			Metadata:       map[string]interface{}{"action": "found_existing"},
		})
		metrics.RecordOperation("save", string(entities.SaveStatusExists))

		return &entities.SaveResult{
			Status:     entities.SaveStatusExists,
			Message:    "Credentials already exist for this connection",
			Credential: existing,
			Duplicate:  true,
		}, nil
	}

	ciphertext, salt, err := u.cipher.Encrypt(input.Secret)
	if err != nil {
		return u.saveFailure(ctx, input.OwnerSession, hash, nil, entities.AuditOpCreate, err, domainerrors.InternalError(err))
	}

	var (
		cred      *entities.Credential
		operation entities.AuditOperation
		status    entities.SaveStatus
	)
	if existing != nil {
		// reactivate the soft-deleted row in place, keeping its id and hash slot
		existing.Name = input.DisplayName()
		existing.EncryptedSecret = ciphertext
		existing.EncryptionSalt = salt
		existing.OwnerSession = input.OwnerSession
		existing.IsActive = true
		existing.UpdatedAt = now
		existing.LastUsed = &now
		cred = existing
		operation = entities.AuditOpUpdate
		status = entities.SaveStatusReactivated
		err = u.uow.Do(ctx, func(txCtx context.Context) error {
			return u.credRepo.Update(txCtx, cred)
		})
	} else {
		cred = &entities.Credential{
			ConnectionHash:  hash,
			Name:            input.DisplayName(),
			Host:            input.Host,
			Port:            input.Port,
			Database:        input.Database,
			Username:        input.Username,
			EngineType:      input.EngineType,
			EncryptedSecret: ciphertext,
			EncryptionSalt:  salt,
			OwnerSession:    input.OwnerSession,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
			LastUsed:        &now,
		}
		operation = entities.AuditOpCreate
		status = entities.SaveStatusCreated
		err = u.uow.Do(ctx, func(txCtx context.Context) error {
			return u.credRepo.Create(txCtx, cred)
		})
	}
	if err != nil {
		var credID *uint
		if existing != nil {
			credID = &existing.ID
		}
		return u.saveFailure(ctx, input.OwnerSession, hash, credID, operation, err, domainerrors.PersistenceError(err))
	}

	u.recordAudit(ctx, &entities.AuditEntry{
		CredentialID:   &cred.ID,
		ConnectionHash: hash,
		Operation:      operation,
		Success:        true,
		OwnerSession:   input.OwnerSession,
		Metadata: map[string]interface{}{
			"name":        cred.Name,
			"engine_type": string(cred.EngineType),
		},
	})
	metrics.RecordOperation("save", string(status))
	logger.Info(ctx, "Credential saved",
		zap.String("name", cred.Name),
		zap.String("engine_type", string(cred.EngineType)),
		zap.String("status", string(status)),
	)

	return &entities.SaveResult{
		Status:     status,
		Message:    "Credentials saved successfully",
		Credential: cred,
	}, nil
}

// GetCredential returns an active credential visible to the session,
// refreshing last_used. Every call writes one "access" audit entry.
func (u *VaultUsecase) GetCredential(ctx context.Context, id uint, ownerSession null.String) (*entities.Credential, error) {
	cred, err := u.credRepo.FindActiveByID(ctx, id)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		metrics.RecordOperation("get", "error")
		return nil, domainerrors.PersistenceError(err)
	}
	if err != nil || !cred.VisibleTo(ownerSession) {
		u.recordAudit(ctx, &entities.AuditEntry{
			ConnectionHash: "",
			Operation:      entities.AuditOpAccess,
			Success:        false,
			ErrorMessage:   null.StringFrom("credential not found"),
			OwnerSession:   ownerSession,
		})
		metrics.RecordOperation("get", "not_found")
		return nil, domainerrors.NotFound("credential not found")
	}

	now := time.Now().UTC()
	if err := u.credRepo.TouchLastUsed(ctx, cred.ID, now); err != nil {
		u.recordAudit(ctx, &entities.AuditEntry{
			CredentialID:   &cred.ID,
			ConnectionHash: cred.ConnectionHash,
			Operation:      entities.AuditOpAccess,
			Success:        false,
			ErrorMessage:   null.StringFrom(err.Error()),
			OwnerSession:   ownerSession,
		})
		metrics.RecordOperation("get", "error")
		return nil, domainerrors.PersistenceError(err)
	}
	cred.LastUsed = &now

	u.recordAudit(ctx, &entities.AuditEntry{
		CredentialID:   &cred.ID,
		ConnectionHash: cred.ConnectionHash,
		Operation:      entities.AuditOpAccess,
		Success:        true,
		OwnerSession:   ownerSession,
	})
	metrics.RecordOperation("get", "success")

	return cred, nil
}

// GetSecret returns the decrypted secret of a credential. Decryption
// failures are audited and surfaced to the caller.
func (u *VaultUsecase) GetSecret(ctx context.Context, id uint, ownerSession null.String) (string, error) {
	cred, err := u.GetCredential(ctx, id, ownerSession)
	if err != nil {
		return "", err
	}

	secret, err := u.cipher.Decrypt(cred.EncryptedSecret, cred.EncryptionSalt)
	if err != nil {
		u.recordAudit(ctx, &entities.AuditEntry{
			CredentialID:   &cred.ID,
			ConnectionHash: cred.ConnectionHash,
			Operation:      entities.AuditOpDecrypt,
			Success:        false,
			ErrorMessage:   null.StringFrom(err.Error()),
			OwnerSession:   ownerSession,
		})
		metrics.RecordOperation("get_secret", "error")
		logger.Error(ctx, "Failed to decrypt credential secret",
			zap.Uint("credential_id", cred.ID),
			zap.Error(err),
		)
		return "", domainerrors.DecryptionError(err)
	}

	metrics.RecordOperation("get_secret", "success")
	return secret, nil
}

// ListCredentials returns active credentials visible to the session, most
// recently used first. Bulk reads are not individually audited.
func (u *VaultUsecase) ListCredentials(ctx context.Context, ownerSession null.String) ([]*entities.Credential, error) {
	creds, err := u.credRepo.ListActive(ctx, ownerSession)
	if err != nil {
		metrics.RecordOperation("list", "error")
		return nil, domainerrors.PersistenceError(err)
	}
	metrics.RecordOperation("list", "success")
	return creds, nil
}

// ListConnections returns the client-facing projection of the visible
// credentials, with live connection status from the tracker.
func (u *VaultUsecase) ListConnections(ctx context.Context, ownerSession null.String, tracker *ConnectionStateTracker) ([]*entities.ConnectionConfig, error) {
	creds, err := u.ListCredentials(ctx, ownerSession)
	if err != nil {
		return nil, err
	}

	configs := make([]*entities.ConnectionConfig, 0, len(creds))
	for _, cred := range creds {
		connected := tracker != nil && tracker.IsConnected(cred.ConnectionHash)
		configs = append(configs, cred.ToConnectionConfig(connected))
	}
	return configs, nil
}

// GetConnectionWithSecret returns the connection projection with the
// decrypted secret filled in, for the connection-lifecycle collaborator.
func (u *VaultUsecase) GetConnectionWithSecret(ctx context.Context, id uint, ownerSession null.String) (*entities.ConnectionConfig, error) {
	cred, err := u.GetCredential(ctx, id, ownerSession)
	if err != nil {
		return nil, err
	}

	secret, err := u.cipher.Decrypt(cred.EncryptedSecret, cred.EncryptionSalt)
	if err != nil {
		u.recordAudit(ctx, &entities.AuditEntry{
			CredentialID:   &cred.ID,
			ConnectionHash: cred.ConnectionHash,
			Operation:      entities.AuditOpDecrypt,
			Success:        false,
			ErrorMessage:   null.StringFrom(err.Error()),
			OwnerSession:   ownerSession,
		})
		return nil, domainerrors.DecryptionError(err)
	}

	config := cred.ToConnectionConfig(false)
	config.Config.Password = secret
	return config, nil
}

// DeleteCredential soft-deletes a credential. It returns false when no row
// exists for the id; with the session-scoped policy enabled it also returns
// false for rows the session may not see. A "delete" audit entry is written
// on success only.
func (u *VaultUsecase) DeleteCredential(ctx context.Context, id uint, ownerSession null.String) (bool, error) {
	cred, err := u.credRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			metrics.RecordOperation("delete", "not_found")
			return false, nil
		}
		metrics.RecordOperation("delete", "error")
		return false, domainerrors.PersistenceError(err)
	}
	if u.sessionScopedDelete && !cred.VisibleTo(ownerSession) {
		metrics.RecordOperation("delete", "not_found")
		return false, nil
	}

	now := time.Now().UTC()
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		return u.credRepo.SoftDelete(txCtx, id, now)
	})
	if err != nil {
		metrics.RecordOperation("delete", "error")
		logger.Error(ctx, "Failed to delete credential", zap.Uint("credential_id", id), zap.Error(err))
		return false, domainerrors.PersistenceError(err)
	}

	u.recordAudit(ctx, &entities.AuditEntry{
		CredentialID:   &cred.ID,
		ConnectionHash: cred.ConnectionHash,
		Operation:      entities.AuditOpDelete,
		Success:        true,
		OwnerSession:   ownerSession,
	})
	metrics.RecordOperation("delete", "success")
	logger.Info(ctx, "Credential deleted", zap.String("name", cred.Name))

	return true, nil
}

// CheckDuplicate reports whether an active credential already exists for the
// connection identity. Pure read: no audit entry, no mutation.
func (u *VaultUsecase) CheckDuplicate(ctx context.Context, host string, port int, database, username string, engineType entities.EngineType) (*entities.Credential, error) {
	hash := crypto.ConnectionFingerprint(host, port, database, username, string(engineType))

	cred, err := u.credRepo.FindActiveByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, nil
		}
		return nil, domainerrors.PersistenceError(err)
	}
	return cred, nil
}

// ListAuditTrail returns audit entries newest first. A nil credentialID
// lists across all credentials; a non-positive limit falls back to the
// configured default.
func (u *VaultUsecase) ListAuditTrail(ctx context.Context, credentialID *uint, limit int) ([]*entities.AuditEntry, error) {
	if limit <= 0 {
		limit = u.auditListLimit
	}
	entries, err := u.auditRepo.List(ctx, credentialID, limit)
	if err != nil {
		return nil, domainerrors.PersistenceError(err)
	}
	return entries, nil
}

// recordAudit appends one audit entry. Audit failures never reach the
// caller: they are logged and counted, and the primary operation's outcome
// stands.
func (u *VaultUsecase) recordAudit(ctx context.Context, entry *entities.AuditEntry) {
	if info, ok := ClientInfoFromContext(ctx); ok {
		entry.IPAddress = null.StringFrom(info.IPAddress)
		entry.UserAgent = null.StringFrom(info.UserAgent)
	}
	entry.Timestamp = time.Now().UTC()

	if err := u.auditRepo.Append(ctx, entry); err != nil {
		metrics.RecordAuditWriteFailure()
		logger.Warn(ctx, "Failed to append audit entry",
			zap.String("operation", string(entry.Operation)),
			zap.Error(err),
		)
		return
	}
	logger.LogVaultOperation(ctx, string(entry.Operation), entry.ConnectionHash, entry.Success)
}

func (u *VaultUsecase) saveFailure(
	ctx context.Context,
	ownerSession null.String,
	hash string,
	credentialID *uint,
	operation entities.AuditOperation,
	cause error,
	wrapped error,
) (*entities.SaveResult, error) {
	u.recordAudit(ctx, &entities.AuditEntry{
		CredentialID:   credentialID,
		ConnectionHash: hash,
		Operation:      operation,
		Success:        false,
		ErrorMessage:   null.StringFrom(cause.Error()),
		OwnerSession:   ownerSession,
	})
	metrics.RecordOperation("save", string(entities.SaveStatusError))
	logger.Error(ctx, "Failed to save credential", zap.Error(cause))

	return &entities.SaveResult{
		Status:  entities.SaveStatusError,
		Message: fmt.Sprintf("Failed to save credentials: %s", cause.Error()),
	}, wrapped
}

func validateSaveInput(in *entities.SaveCredentialInput) error {
	switch {
	case in.Host == "":
		return errors.New("host is required")
	case in.Port <= 0 || in.Port > 65535:
		return fmt.Errorf("invalid port %d", in.Port)
	case in.Database == "":
		return errors.New("database is required")
	case in.Username == "":
		return errors.New("username is required")
	case in.Secret == "":
		return errors.New("secret is required")
	case in.EngineType == "":
		return errors.New("engine type is required")
	}
	return nil
}
