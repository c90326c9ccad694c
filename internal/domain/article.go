package domain

import "time"

// ProcessingStatus enumerates article pipeline milestones.
type ProcessingStatus string

const (
	StatusPending  ProcessingStatus = "pending"
	StatusScraped  ProcessingStatus = "scraped"
	StatusAnalyzed ProcessingStatus = "analyzed"
)

// Candidate is an article extracted by a fetcher but not yet admitted to storage.
type Candidate struct {
	URL         string
	Title       string
	Summary     string
	Content     string
	PublishedAt *time.Time
	Authors     []string
	Fingerprint string
}

// Article is a persisted, deduplicated piece of threat-intelligence content.
type Article struct {
	ID           int64
	SourceID     int64
	URL          string
	Title        string
	Summary      string
	Content      string
	PublishedAt  *time.Time
	ModifiedAt   *time.Time
	Authors      []string
	Fingerprint  string
	Metadata     map[string]any
	WordCount    int
	Status       ProcessingStatus
	Archived     bool
	DiscoveredAt time.Time
}

// HuntScore reads the rule-based relevance score stored in metadata.
func (a Article) HuntScore() float64 {
	if a.Metadata == nil {
		return 0
	}
	switch v := a.Metadata["hunt_score"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// ContentHashRecord indexes fingerprints independently of the article table.
type ContentHashRecord struct {
	Fingerprint string
	ArticleID   int64
	FirstSeen   time.Time
}
