package classifier

import (
	"fmt"
	"math"
	"sort"
)

// Estimator types understood by the model tier.
const (
	LogisticRegression = "logistic_regression"
	LinearSVC          = "linear_svc"
)

// defaultConfidence is reported by estimators without probabilities.
const defaultConfidence = 0.8

// Estimator is a fitted linear model exported as JSON.
type Estimator struct {
	Type               string      `json:"type"`
	Classes            []string    `json:"classes"`
	Coef               [][]float64 `json:"coef"`
	Intercept          []float64   `json:"intercept"`
	FeatureImportances []float64   `json:"feature_importances,omitempty"`
}

func (e *Estimator) prepare(features int) error {
	switch e.Type {
	case LogisticRegression, LinearSVC:
	default:
		return fmt.Errorf("estimator: unsupported type %q", e.Type)
	}
	if len(e.Classes) < 2 {
		return fmt.Errorf("estimator: need at least two classes, got %d", len(e.Classes))
	}

	rows := len(e.Classes)
	if rows == 2 {
		rows = 1
	}
	if len(e.Coef) != rows || len(e.Intercept) != rows {
		return fmt.Errorf("estimator: expected %d coefficient rows, got %d coef / %d intercept", rows, len(e.Coef), len(e.Intercept))
	}
	for i, row := range e.Coef {
		if len(row) != features {
			return fmt.Errorf("estimator: coef row %d has %d features, vectorizer has %d", i, len(row), features)
		}
	}
	if n := len(e.FeatureImportances); n != 0 && n != features {
		return fmt.Errorf("estimator: %d feature importances for %d features", n, features)
	}
	return nil
}

func (e *Estimator) binary() bool {
	return len(e.Classes) == 2
}

func (e *Estimator) decision(x map[int]float64) []float64 {
	out := make([]float64, len(e.Coef))
	for r, row := range e.Coef {
		sum := e.Intercept[r]
		for idx, val := range x {
			sum += row[idx] * val
		}
		out[r] = sum
	}
	return out
}

// predict returns the label and, for probabilistic estimators, the class
// probabilities.
func (e *Estimator) predict(x map[int]float64) (string, map[string]float64) {
	d := e.decision(x)

	if e.Type == LinearSVC {
		if e.binary() {
			if d[0] > 0 {
				return e.Classes[1], nil
			}
			return e.Classes[0], nil
		}
		return e.Classes[argmax(d)], nil
	}

	probs := make(map[string]float64, len(e.Classes))
	if e.binary() {
		p := sigmoid(d[0])
		probs[e.Classes[0]] = 1 - p
		probs[e.Classes[1]] = p
		if p > 0.5 {
			return e.Classes[1], probs
		}
		return e.Classes[0], probs
	}

	soft := softmax(d)
	for i, c := range e.Classes {
		probs[c] = soft[i]
	}
	return e.Classes[argmax(d)], probs
}

// contributions ranks the terms of x that push toward label.
func (e *Estimator) contributions(x map[int]float64, label string, limit int) []int {
	row := 0
	if e.binary() {
		if label == e.Classes[0] {
			return nil
		}
	} else {
		for i, c := range e.Classes {
			if c == label {
				row = i
			}
		}
	}

	type contrib struct {
		idx int
		val float64
	}
	var all []contrib
	for idx, val := range x {
		if c := e.Coef[row][idx] * val; c > 0 {
			all = append(all, contrib{idx, c})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].val == all[j].val {
			return all[i].idx < all[j].idx
		}
		return all[i].val > all[j].val
	})

	out := make([]int, 0, limit)
	for i := 0; i < len(all) && i < limit; i++ {
		out = append(out, all[i].idx)
	}
	return out
}

// topImportances returns the columns with the largest global importance.
func (e *Estimator) topImportances(limit int) []int {
	idx := make([]int, len(e.FeatureImportances))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return e.FeatureImportances[idx[a]] > e.FeatureImportances[idx[b]]
	})
	if len(idx) > limit {
		idx = idx[:limit]
	}
	return idx
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func softmax(z []float64) []float64 {
	peak := z[argmax(z)]
	out := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
