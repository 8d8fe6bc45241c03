package valueobjects

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	pkgerrors "synergy-backend/pkg/errors"
)

// DefaultMaxDomainIDLength bounds domain keys when no configuration is supplied.
const DefaultMaxDomainIDLength = 256

// DomainID is a value object identifying a domain (a node of the synergy graph).
// Domain keys are stable strings chosen by the caller.
type DomainID struct {
	value string
}

// NewDomainID creates a DomainID from a caller supplied key
func NewDomainID(key string) (DomainID, error) {
	return NewDomainIDWithLimit(key, DefaultMaxDomainIDLength)
}

// NewDomainIDWithLimit creates a DomainID, rejecting keys longer than maxLength runes
func NewDomainIDWithLimit(key string, maxLength int) (DomainID, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return DomainID{}, pkgerrors.NewValidationError("domain id cannot be empty")
	}
	if utf8.RuneCountInString(key) > maxLength {
		return DomainID{}, pkgerrors.NewValidationError(fmt.Sprintf("domain id exceeds maximum length of %d characters", maxLength))
	}
	return DomainID{value: key}, nil
}

// MustDomainID is NewDomainID for keys known to be valid.
func MustDomainID(key string) DomainID {
	id, err := NewDomainID(key)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the string representation of the DomainID
func (id DomainID) String() string {
	return id.value
}

// Equals checks if two DomainIDs are equal
func (id DomainID) Equals(other DomainID) bool {
	return id.value == other.value
}

// IsZero checks if the DomainID is the zero value
func (id DomainID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id DomainID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler
func (id *DomainID) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("DomainID must be a string: %w", err)
	}
	parsed, err := NewDomainID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
