package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

const topFeatures = 10

// Model pairs a vectorizer with the estimator trained on its output.
type Model struct {
	Vectorizer *Vectorizer
	Estimator  *Estimator
	Version    string
}

// NewModel validates that the vectorizer and estimator agree on dimensions.
func NewModel(vec *Vectorizer, est *Estimator, version string) (*Model, error) {
	if vec == nil || est == nil {
		return nil, fmt.Errorf("model: vectorizer and estimator are required")
	}
	if err := vec.prepare(); err != nil {
		return nil, err
	}
	if err := est.prepare(vec.Features()); err != nil {
		return nil, err
	}
	return &Model{Vectorizer: vec, Estimator: est, Version: version}, nil
}

func loadJSON(path string, into any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(into); err != nil {
		return fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return nil
}

// Classify runs one vectorized prediction.
func (m *Model) Classify(text string) Result {
	return m.predict(m.Vectorizer.Transform(text))
}

func (m *Model) predict(x map[int]float64) Result {
	label, probs := m.Estimator.predict(x)

	res := Result{Label: label, ModelVersion: m.Version}
	if probs == nil {
		res.Confidence = defaultConfidence
		res.Probabilities = fixedProbabilities(label, defaultConfidence)
	} else {
		res.Probabilities = probs
		res.Confidence = probs[label]
	}
	res.Features = m.features(x, label)
	return res
}

// ClassifyBatch vectorizes every text before predicting. It aborts when the
// context is done.
func (m *Model) ClassifyBatch(ctx context.Context, texts []string) ([]Result, error) {
	vectors := make([]map[int]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = m.Vectorizer.Transform(t)
	}

	out := make([]Result, len(vectors))
	for i, x := range vectors {
		out[i] = m.predict(x)
	}
	return out, nil
}

func (m *Model) features(x map[int]float64, label string) []string {
	var cols []int
	if len(m.Estimator.FeatureImportances) > 0 {
		cols = m.Estimator.topImportances(topFeatures)
	} else {
		cols = m.Estimator.contributions(x, label, topFeatures)
	}
	if len(cols) == 0 {
		return nil
	}
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, m.Vectorizer.Name(c))
	}
	return names
}

// fixedProbabilities splits confidence between huntable and not_huntable.
func fixedProbabilities(label string, confidence float64) map[string]float64 {
	if label == LabelHuntable {
		return map[string]float64{LabelHuntable: confidence, LabelNotHuntable: 1 - confidence}
	}
	return map[string]float64{LabelHuntable: 1 - confidence, LabelNotHuntable: confidence}
}
