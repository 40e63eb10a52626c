package entities

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// AuditOperation enumerates the vault operations recorded in the audit log.
type AuditOperation string

const (
	AuditOpCreate         AuditOperation = "create"
	AuditOpUpdate         AuditOperation = "update"
	AuditOpDuplicateCheck AuditOperation = "duplicate_check"
	AuditOpAccess         AuditOperation = "access"
	AuditOpDecrypt        AuditOperation = "decrypt"
	AuditOpDelete         AuditOperation = "delete"
)

// AuditEntry is one append-only record of a vault operation. Entries are
// never mutated or deleted; CredentialID is nil when the operation failed
// before a credential row existed.
type AuditEntry struct {
	ID             uint                   `json:"id"`
	CredentialID   *uint                  `json:"credentialId,omitempty"`
	ConnectionHash string                 `json:"connectionHash"`
	Operation      AuditOperation         `json:"operation"`
	Success        bool                   `json:"success"`
	ErrorMessage   null.String            `json:"errorMessage,omitempty"`
	OwnerSession   null.String            `json:"ownerSession,omitempty"`
	IPAddress      null.String            `json:"ipAddress,omitempty"`
	UserAgent      null.String            `json:"userAgent,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}
