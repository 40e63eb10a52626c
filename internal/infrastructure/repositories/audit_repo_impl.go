package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"cred-vault.backend/internal/domain/entities"
	"cred-vault.backend/internal/infrastructure/models"
)

// DefaultAuditListLimit bounds List calls that pass a non-positive limit.
const DefaultAuditListLimit = 100

// AuditRepository implements append-only audit log operations
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit row. The log is append-only; no update or delete
// path exists.
func (r *AuditRepository) Append(ctx context.Context, entry *entities.AuditEntry) error {
	m, err := auditToModel(entry)
	if err != nil {
		return err
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if err := GetDB(ctx, r.db).WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	entry.ID = m.ID
	entry.Timestamp = m.Timestamp
	return nil
}

// List returns audit entries newest first, bounded by limit.
func (r *AuditRepository) List(ctx context.Context, credentialID *uint, limit int) ([]*entities.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultAuditListLimit
	}

	q := GetDB(ctx, r.db).WithContext(ctx).Model(&models.CredentialAuditLog{})
	if credentialID != nil {
		q = q.Where("credential_id = ?", *credentialID)
	}

	var ms []models.CredentialAuditLog
	if err := q.Order("timestamp DESC, id DESC").Limit(limit).Find(&ms).Error; err != nil {
		return nil, err
	}

	entries := make([]*entities.AuditEntry, 0, len(ms))
	for i := range ms {
		entry, err := auditToEntity(&ms[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func auditToModel(e *entities.AuditEntry) (*models.CredentialAuditLog, error) {
	var metadata null.String
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = null.StringFrom(string(raw))
	}

	return &models.CredentialAuditLog{
		ID:             e.ID,
		CredentialID:   e.CredentialID,
		ConnectionHash: e.ConnectionHash,
		Operation:      string(e.Operation),
		Success:        e.Success,
		ErrorMessage:   e.ErrorMessage,
		OwnerSession:   e.OwnerSession,
		IPAddress:      e.IPAddress,
		UserAgent:      e.UserAgent,
		Timestamp:      e.Timestamp,
		MetadataJSON:   metadata,
	}, nil
}

func auditToEntity(m *models.CredentialAuditLog) (*entities.AuditEntry, error) {
	var metadata map[string]interface{}
	if m.MetadataJSON.Valid && m.MetadataJSON.String != "" {
		if err := json.Unmarshal([]byte(m.MetadataJSON.String), &metadata); err != nil {
			return nil, err
		}
	}

	return &entities.AuditEntry{
		ID:             m.ID,
		CredentialID:   m.CredentialID,
		ConnectionHash: m.ConnectionHash,
		Operation:      entities.AuditOperation(m.Operation),
		Success:        m.Success,
		ErrorMessage:   m.ErrorMessage,
		OwnerSession:   m.OwnerSession,
		IPAddress:      m.IPAddress,
		UserAgent:      m.UserAgent,
		Timestamp:      m.Timestamp,
		Metadata:       metadata,
	}, nil
}
