package helper

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// NewContextID generates a short random grouping tag for an upload batch that
// did not supply one. Eight hex characters are enough to keep batches apart.
func NewContextID() string {
	id := uuid.NewString()
	return strings.ReplaceAll(id, "-", "")[:8]
}

// NewChunkID creates a random unique id for a stored chunk.
func NewChunkID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate chunk id: %v", err)
	}
	return id.String(), nil
}

// CreateFolder makes the directory (and parents) if it does not exist.
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %v", path, err)
	}
	return nil
}
