package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ConnectionFingerprint returns the deterministic identity hash for a
// connection target. The canonical form is "host:port/database@username:engine";
// inputs are not normalized, so "DB1" and "db1" are different identities.
func ConnectionFingerprint(host string, port int, database, username, engineType string) string {
	canonical := fmt.Sprintf("%s:%d/%s@%s:%s", host, port, database, username, engineType)
	digest := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(digest[:])
}
