package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// DatabaseCredential is the persisted form of a vault credential. The
// connection hash is unique across all rows: a soft-deleted row keeps its
// hash slot and is reactivated in place by a later save for the same
// identity.
type DatabaseCredential struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ConnectionHash string `gorm:"type:varchar(64);uniqueIndex;not null"`

	Name         string `gorm:"type:varchar(255);not null"`
	Host         string `gorm:"type:varchar(255);not null;index:idx_connection_lookup"`
	Port         int    `gorm:"not null;index:idx_connection_lookup"`
	DatabaseName string `gorm:"column:database;type:varchar(255);not null;index:idx_connection_lookup"`
	Username     string `gorm:"type:varchar(255);not null;index:idx_connection_lookup"`
	EngineType   string `gorm:"type:varchar(50);not null"`

	EncryptedSecret string `gorm:"type:text;not null"`
	EncryptionSalt  string `gorm:"type:varchar(32);not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
	LastUsed  *time.Time

	OwnerSession null.String `gorm:"type:varchar(255);index:idx_session_credentials"`
	IsActive     bool        `gorm:"default:true;not null;index:idx_session_credentials"`
}

func (DatabaseCredential) TableName() string {
	return "database_credentials"
}
