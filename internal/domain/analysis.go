package domain

import "time"

// Chunk is a bounded text segment of an article.
type Chunk struct {
	Index         int
	Text          string
	Start         int
	End           int
	WordCount     int
	SentenceCount int
	HasCode       bool
	HasCommand    bool
	HasIOC        bool
}

// Classification labels.
const (
	LabelHuntable    = "huntable"
	LabelNotHuntable = "not_huntable"
	LabelUnknown     = "unknown"
)

// ChunkResult is a persisted classification of one chunk.
type ChunkResult struct {
	ID           int64
	ArticleID    int64
	ChunkIndex   int
	ChunkText    string
	Label        string
	Confidence   float64
	HuntScore    float64
	PassedFilter bool
	ModelVersion string
	CreatedAt    time.Time
}

// Feedback is a human correction of a chunk classification.
type Feedback struct {
	ID              int64
	ChunkResultID   int64
	ArticleID       int64
	ChunkText       string
	ModelLabel      string
	CorrectLabel    string
	ModelConfidence float64
	Comment         string
	CreatedAt       time.Time
}

// ModelVersion describes a trained model artifact and its evaluation.
type ModelVersion struct {
	ID              int64
	Name            string
	Version         string
	ModelKey        string
	VectorizerKey   string
	TrainingSamples int
	TrainingTime    time.Duration
	Hyperparameters map[string]any
	Metrics         map[string]float64
	Active          bool
	CreatedAt       time.Time
}

// Classification is the uniform output of both classifier tiers.
type Classification struct {
	Label         string
	Confidence    float64
	Probabilities map[string]float64
	ModelVersion  string
	Latency       time.Duration
	Features      []string
}
