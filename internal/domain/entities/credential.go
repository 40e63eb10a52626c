package entities

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"
)

// EngineType identifies the database engine a credential targets.
type EngineType string

const (
	EnginePostgreSQL EngineType = "postgresql"
	EngineMySQL      EngineType = "mysql"
	EngineMongoDB    EngineType = "mongodb"
	EngineSQLite     EngineType = "sqlite"
)

// SaveStatus is the outcome of a SaveCredential call.
type SaveStatus string

const (
	SaveStatusCreated     SaveStatus = "created"
	SaveStatusReactivated SaveStatus = "reactivated"
	SaveStatusExists      SaveStatus = "exists"
	SaveStatusError       SaveStatus = "error"
)

// Credential is a stored database connection credential. The identity fields
// (host, port, database, username, engine type) are immutable for a given
// connection hash; changing any of them produces a different credential.
type Credential struct {
	ID             uint       `json:"id"`
	ConnectionHash string     `json:"connectionHash"`
	Name           string     `json:"name"`
	Host           string     `json:"host"`
	Port           int        `json:"port"`
	Database       string     `json:"database"`
	Username       string     `json:"username"`
	EngineType     EngineType `json:"engineType"`

	// Ciphertext and salt are never serialized out of the vault.
	EncryptedSecret string `json:"-"`
	EncryptionSalt  string `json:"-"`

	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	LastUsed     *time.Time  `json:"lastUsed,omitempty"`
	OwnerSession null.String `json:"ownerSession,omitempty"`
	IsActive     bool        `json:"isActive"`
}

// HasCredentials reports whether an encrypted secret is stored.
func (c *Credential) HasCredentials() bool {
	return c.EncryptedSecret != ""
}

// VisibleTo reports whether a caller holding the given session tag may see
// this credential. Credentials without an owner session are global.
func (c *Credential) VisibleTo(session null.String) bool {
	if !c.OwnerSession.Valid {
		return true
	}
	return session.Valid && session.String == c.OwnerSession.String
}

// ConnectionParams is the connection detail block of a ConnectionConfig.
// Password is always blank; secrets only leave the vault via GetSecret.
type ConnectionParams struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// ConnectionConfig is the client-facing projection of a credential.
type ConnectionConfig struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Config               ConnectionParams `json:"config"`
	Type                 EngineType       `json:"type"`
	Status               string           `json:"status"`
	LastConnected        *time.Time       `json:"lastConnected,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
	HasSecureCredentials bool             `json:"hasSecureCredentials"`
}

// ToConnectionConfig builds the client projection of the credential.
func (c *Credential) ToConnectionConfig(connected bool) *ConnectionConfig {
	status := "disconnected"
	if connected {
		status = "connected"
	}
	return &ConnectionConfig{
		ID:   fmt.Sprintf("%d", c.ID),
		Name: c.Name,
		Config: ConnectionParams{
			Host:     c.Host,
			Port:     fmt.Sprintf("%d", c.Port),
			Database: c.Database,
			Username: c.Username,
		},
		Type:                 c.EngineType,
		Status:               status,
		LastConnected:        c.LastUsed,
		CreatedAt:            c.CreatedAt,
		HasSecureCredentials: c.HasCredentials(),
	}
}

// SaveCredentialInput carries the caller-supplied fields for SaveCredential.
type SaveCredentialInput struct {
	Name         string      `json:"name"`
	Host         string      `json:"host"`
	Port         int         `json:"port"`
	Database     string      `json:"database"`
	Username     string      `json:"username"`
	Secret       string      `json:"secret"`
	EngineType   EngineType  `json:"engineType"`
	OwnerSession null.String `json:"ownerSession,omitempty"`
}

// DisplayName returns the caller-supplied name, or a synthesized label when
// none was given.
func (in *SaveCredentialInput) DisplayName() string {
	if in.Name != "" {
		return in.Name
	}
	return fmt.Sprintf("%s@%s:%d/%s", in.Username, in.Host, in.Port, in.Database)
}

// SaveResult is the structured outcome of a SaveCredential call.
type SaveResult struct {
	Status     SaveStatus  `json:"status"`
	Message    string      `json:"message"`
	Credential *Credential `json:"credential,omitempty"`
	Duplicate  bool        `json:"duplicate"`
}
