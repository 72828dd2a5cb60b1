package recording

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidID is returned for folder names that are not recording identifiers.
var ErrInvalidID = errors.New("invalid recording identifier")

// NewID generates a fresh recording identifier. IDs double as folder names,
// so they must stay filesystem-safe; lowercase UUID strings are.
func NewID() string {
	return uuid.NewString()
}

// ParseID validates a folder name as a recording identifier and returns its
// canonical (lowercase) form.
func ParseID(name string) (string, error) {
	// uuid.Parse accepts urn: and braced forms; folder names must be the
	// plain 36-character form.
	if len(name) != 36 {
		return "", ErrInvalidID
	}
	id, err := uuid.Parse(name)
	if err != nil {
		return "", ErrInvalidID
	}
	return strings.ToLower(id.String()), nil
}
