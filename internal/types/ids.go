package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// AuditID is a custom type that wraps a UUID string.
// It provides type-safe UUID generation, validation, and serialization
// for identifying individual audit runs.
type AuditID string

// NewAuditID generates a new UUID v4 and returns it as an AuditID.
func NewAuditID() AuditID {
	return AuditID(uuid.New().String())
}

// ParseAuditID parses and validates a string as a UUID, returning an AuditID.
// It returns an error if the string is not a valid UUID format.
func ParseAuditID(s string) (AuditID, error) {
	if s == "" {
		return "", fmt.Errorf("audit ID cannot be empty")
	}

	parsedUUID, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID format: %w", err)
	}

	return AuditID(parsedUUID.String()), nil
}

// Validate checks if the AuditID is a valid UUID.
func (id AuditID) Validate() error {
	if id == "" {
		return fmt.Errorf("audit ID cannot be empty")
	}

	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("invalid UUID format: %w", err)
	}

	return nil
}

// String returns the string representation of the AuditID.
func (id AuditID) String() string {
	return string(id)
}

// IsZero checks if the AuditID is empty.
func (id AuditID) IsZero() bool {
	return id == ""
}

// MarshalJSON implements the json.Marshaler interface.
func (id AuditID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (id *AuditID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*id = ""
		return nil
	}
	parsed, err := ParseAuditID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
