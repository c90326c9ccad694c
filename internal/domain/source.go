package domain

import "time"

// CheckMethod names the fetch strategy used for a poll attempt.
type CheckMethod string

const (
	MethodFeed CheckMethod = "feed"
	MethodPage CheckMethod = "page"
)

// Selectors holds site-specific CSS selectors for page extraction.
type Selectors struct {
	Article string `yaml:"article" json:"article,omitempty"`
	Title   string `yaml:"title" json:"title,omitempty"`
	Link    string `yaml:"link" json:"link,omitempty"`
	Date    string `yaml:"date" json:"date,omitempty"`
	Summary string `yaml:"summary" json:"summary,omitempty"`
}

// Empty reports whether no selector is configured.
func (s Selectors) Empty() bool {
	return s == Selectors{}
}

// Source is a polled origin of articles together with its health counters.
type Source struct {
	ID                  int64
	Identifier          string
	Name                string
	URL                 string
	FeedURL             string
	CheckFrequency      time.Duration
	Active              bool
	Selectors           Selectors
	FetchFullContent    bool
	ConsecutiveFailures int
	LastCheck           *time.Time
	LastSuccess         *time.Time
	TotalArticles       int
}

// Method returns feed when a feed URL is configured, page otherwise.
func (s Source) Method() CheckMethod {
	if s.FeedURL != "" {
		return MethodFeed
	}
	return MethodPage
}

// Due reports whether the polling interval has elapsed since the last check.
func (s Source) Due(now time.Time) bool {
	if s.LastCheck == nil {
		return true
	}
	return now.Sub(*s.LastCheck) >= s.CheckFrequency
}

// SourceCheck is an append-only record of one poll attempt.
type SourceCheck struct {
	ID            int64
	SourceID      int64
	CheckedAt     time.Time
	Success       bool
	Method        CheckMethod
	ArticlesFound int
	Latency       time.Duration
	Error         string
}

// SourceHealth is the delta applied to a source together with its check record.
type SourceHealth struct {
	Success     bool
	CheckedAt   time.Time
	NewArticles int
}

// Apply mutates the source counters the same way storage does.
func (s *Source) Apply(h SourceHealth) {
	at := h.CheckedAt
	s.LastCheck = &at
	if h.Success {
		s.LastSuccess = &at
		s.ConsecutiveFailures = 0
		s.TotalArticles += h.NewArticles
		return
	}
	s.ConsecutiveFailures++
}
