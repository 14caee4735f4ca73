// Package ids mints the short random identifiers used for rows and sessions.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

const tokenLength = 9

// Token returns nine random lowercase hex digits taken from a v4 UUID.
func Token() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:tokenLength]
}

// New returns prefix followed by a fresh Token, e.g. "ord-3f9a1c2be".
func New(prefix string) string {
	return prefix + Token()
}
