package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// CredentialAuditLog is one append-only audit row. CredentialID is nullable:
// a failed save may be audited before any credential row exists.
type CredentialAuditLog struct {
	ID             uint        `gorm:"primaryKey;autoIncrement"`
	CredentialID   *uint       `gorm:"index"`
	ConnectionHash string      `gorm:"type:varchar(64);index"`
	Operation      string      `gorm:"type:varchar(50);not null"`
	Success        bool        `gorm:"not null"`
	ErrorMessage   null.String `gorm:"type:text"`
	OwnerSession   null.String `gorm:"type:varchar(255)"`
	IPAddress      null.String `gorm:"type:varchar(45)"` // IPv6 compatible
	UserAgent      null.String `gorm:"type:text"`
	Timestamp      time.Time   `gorm:"index"`
	MetadataJSON   null.String `gorm:"column:metadata_json;type:text"`
}

func (CredentialAuditLog) TableName() string {
	return "credential_audit_log"
}
