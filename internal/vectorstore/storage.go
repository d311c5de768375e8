// Package vectorstore holds what the store implementations share.
package vectorstore

import (
	"errors"
	"fmt"

	"disasterwatch/internal/domain"
)

var (
	ErrInvalidDimension = errors.New("invalid dimension")
	ErrNotInitialized   = errors.New("vector store not initialized")
)

// CheckPoints verifies that every point has an id and the expected dimension.
func CheckPoints(points []domain.Point, dimension int) error {
	for _, p := range points {
		if p.ID == "" {
			return errors.New("point without id")
		}
		if len(p.Vector) != dimension {
			return fmt.Errorf("point %s: vector dimension %d, want %d", p.ID, len(p.Vector), dimension)
		}
	}
	return nil
}
