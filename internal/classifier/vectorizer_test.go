package classifier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorizerTransform(t *testing.T) {
	t.Parallel()

	v := &Vectorizer{
		Vocabulary: map[string]int{"lsass": 0, "dump": 1, "lsass dump": 2},
		IDF:        []float64{1, 2, 3},
		NgramRange: [2]int{1, 2},
		Norm:       "l2",
	}
	require.NoError(t, v.prepare())

	x := v.Transform("LSASS dump, lsass a")
	// counts: lsass=2, dump=1, "lsass dump"=1; weights 2, 2, 3
	norm := math.Sqrt(4 + 4 + 9)
	assert.InDelta(t, 2/norm, x[0], 1e-9)
	assert.InDelta(t, 2/norm, x[1], 1e-9)
	assert.InDelta(t, 3/norm, x[2], 1e-9)
	assert.Equal(t, "lsass dump", v.Name(2))
}

func TestVectorizerSublinearAndNoNorm(t *testing.T) {
	t.Parallel()

	v := &Vectorizer{
		Vocabulary:  map[string]int{"beacon": 0},
		IDF:         []float64{1.5},
		SublinearTF: true,
		Norm:        "none",
	}
	require.NoError(t, v.prepare())

	x := v.Transform("beacon beacon beacon")
	assert.InDelta(t, (1+math.Log(3))*1.5, x[0], 1e-9)
}

func TestVectorizerRejectsMismatchedIDF(t *testing.T) {
	t.Parallel()

	v := &Vectorizer{Vocabulary: map[string]int{"a1": 0, "b2": 1}, IDF: []float64{1}}
	require.Error(t, v.prepare())
}

func TestEstimatorMulticlass(t *testing.T) {
	t.Parallel()

	e := &Estimator{
		Type:      LogisticRegression,
		Classes:   []string{"a", "b", "c"},
		Coef:      [][]float64{{1, 0}, {0, 1}, {0, 0}},
		Intercept: []float64{0, 0, 0},
	}
	require.NoError(t, e.prepare(2))

	label, probs := e.predict(map[int]float64{1: 3})
	assert.Equal(t, "b", label)
	assert.InDelta(t, 1.0, probs["a"]+probs["b"]+probs["c"], 1e-9)
	assert.Greater(t, probs["b"], probs["a"])
}

func TestEstimatorRejectsUnknownType(t *testing.T) {
	t.Parallel()

	e := &Estimator{Type: "random_forest", Classes: []string{"a", "b"}}
	require.Error(t, e.prepare(1))
}

func TestTopImportances(t *testing.T) {
	t.Parallel()

	model, err := NewModel(testVectorizer(), &Estimator{
		Type:               LinearSVC,
		Classes:            []string{LabelNotHuntable, LabelHuntable},
		Coef:               [][]float64{{1, 1, 1}},
		Intercept:          []float64{0},
		FeatureImportances: []float64{0.1, 0.7, 0.2},
	}, "fi")
	require.NoError(t, err)

	res := model.Classify("anything")
	assert.Equal(t, []string{"lsass", "webinar", "mimikatz"}, res.Features)
}
