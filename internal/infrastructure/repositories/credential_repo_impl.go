package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"cred-vault.backend/internal/domain/entities"
	domainerrors "cred-vault.backend/internal/domain/errors"
	"cred-vault.backend/internal/infrastructure/models"
)

// CredentialRepository implements credential data operations
type CredentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create inserts a new credential row and backfills the generated fields.
func (r *CredentialRepository) Create(ctx context.Context, cred *entities.Credential) error {
	m := credentialToModel(cred)
	if err := GetDB(ctx, r.db).WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	cred.ID = m.ID
	cred.CreatedAt = m.CreatedAt
	cred.UpdatedAt = m.UpdatedAt
	return nil
}

// Update persists the mutable fields of a credential. Identity fields are
// immutable by contract and are not written.
func (r *CredentialRepository) Update(ctx context.Context, cred *entities.Credential) error {
	res := GetDB(ctx, r.db).WithContext(ctx).
		Model(&models.DatabaseCredential{}).
		Where("id = ?", cred.ID).
		Updates(map[string]interface{}{
			"name":             cred.Name,
			"encrypted_secret": cred.EncryptedSecret,
			"encryption_salt":  cred.EncryptionSalt,
			"owner_session":    cred.OwnerSession,
			"is_active":        cred.IsActive,
			"last_used":        cred.LastUsed,
			"updated_at":       cred.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// FindByID returns the credential regardless of its active flag.
func (r *CredentialRepository) FindByID(ctx context.Context, id uint) (*entities.Credential, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindActiveByID returns the credential only if it has not been soft-deleted.
func (r *CredentialRepository) FindActiveByID(ctx context.Context, id uint) (*entities.Credential, error) {
	return r.findOne(ctx, "id = ? AND is_active = ?", id, true)
}

// FindByHash returns the credential holding the connection-hash slot,
// active or not. Save uses this to reactivate soft-deleted rows in place.
func (r *CredentialRepository) FindByHash(ctx context.Context, hash string) (*entities.Credential, error) {
	return r.findOne(ctx, "connection_hash = ?", hash)
}

// FindActiveByHash returns the active credential for a connection hash.
func (r *CredentialRepository) FindActiveByHash(ctx context.Context, hash string) (*entities.Credential, error) {
	return r.findOne(ctx, "connection_hash = ? AND is_active = ?", hash, true)
}

// ListActive returns active credentials visible to the session, most
// recently used first. Without a session tag only global rows are visible.
func (r *CredentialRepository) ListActive(ctx context.Context, ownerSession null.String) ([]*entities.Credential, error) {
	q := GetDB(ctx, r.db).WithContext(ctx).
		Where("is_active = ?", true)
	if ownerSession.Valid {
		q = q.Where("owner_session IS NULL OR owner_session = ?", ownerSession.String)
	} else {
		q = q.Where("owner_session IS NULL")
	}

	var ms []models.DatabaseCredential
	if err := q.Order("last_used DESC").Find(&ms).Error; err != nil {
		return nil, err
	}

	creds := make([]*entities.Credential, 0, len(ms))
	for i := range ms {
		creds = append(creds, credentialToEntity(&ms[i]))
	}
	return creds, nil
}

// TouchLastUsed refreshes last_used without touching updated_at.
func (r *CredentialRepository) TouchLastUsed(ctx context.Context, id uint, at time.Time) error {
	return GetDB(ctx, r.db).WithContext(ctx).
		Model(&models.DatabaseCredential{}).
		Where("id = ?", id).
		UpdateColumn("last_used", at).Error
}

// SoftDelete marks the credential inactive; the row and its audit lineage
// remain.
func (r *CredentialRepository) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	res := GetDB(ctx, r.db).WithContext(ctx).
		Model(&models.DatabaseCredential{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"is_active":  false,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *CredentialRepository) findOne(ctx context.Context, cond string, args ...interface{}) (*entities.Credential, error) {
	var m models.DatabaseCredential
	if err := GetDB(ctx, r.db).WithContext(ctx).Where(cond, args...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return credentialToEntity(&m), nil
}

func credentialToModel(e *entities.Credential) *models.DatabaseCredential {
	return &models.DatabaseCredential{
		ID:              e.ID,
		ConnectionHash:  e.ConnectionHash,
		Name:            e.Name,
		Host:            e.Host,
		Port:            e.Port,
		DatabaseName:    e.Database,
		Username:        e.Username,
		EngineType:      string(e.EngineType),
		EncryptedSecret: e.EncryptedSecret,
		EncryptionSalt:  e.EncryptionSalt,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
		LastUsed:        e.LastUsed,
		OwnerSession:    e.OwnerSession,
		IsActive:        e.IsActive,
	}
}

func credentialToEntity(m *models.DatabaseCredential) *entities.Credential {
	return &entities.Credential{
		ID:              m.ID,
		ConnectionHash:  m.ConnectionHash,
		Name:            m.Name,
		Host:            m.Host,
		Port:            m.Port,
		Database:        m.DatabaseName,
		Username:        m.Username,
		EngineType:      entities.EngineType(m.EngineType),
		EncryptedSecret: m.EncryptedSecret,
		EncryptionSalt:  m.EncryptionSalt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		LastUsed:        m.LastUsed,
		OwnerSession:    m.OwnerSession,
		IsActive:        m.IsActive,
	}
}
