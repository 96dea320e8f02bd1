package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier string
func GenerateID() string {
	return uuid.New().String()
}

// GeneratePrefixedID returns an identifier of the form "<prefix>_<uuid>"
func GeneratePrefixedID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}
