package dedup

import (
	"context"
	"fmt"

	"CTIScraper/internal/domain"
	"CTIScraper/internal/ports"
)

// Deduplicator is the admission gate in front of the article store.
type Deduplicator struct {
	index ports.HashIndex
}

// New wires the fingerprint index used for lookups.
func New(index ports.HashIndex) *Deduplicator {
	return &Deduplicator{index: index}
}

// Admit fills the candidate fingerprint when absent and reports whether it is new.
func (d *Deduplicator) Admit(ctx context.Context, c *domain.Candidate) (bool, error) {
	if c.Fingerprint == "" {
		c.Fingerprint = Fingerprint(c.Title, c.URL, c.Content)
	}
	if d.index == nil {
		return true, nil
	}

	seen, err := d.index.HashExists(ctx, c.Fingerprint)
	if err != nil {
		return false, fmt.Errorf("lookup fingerprint: %w", err)
	}
	return !seen, nil
}
