package scoring

import (
	"testing"

	"parsely-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScorerValidatesWeights(t *testing.T) {
	s, err := NewScorer(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), s.Weights())

	bad := []map[types.Category]float64{
		{types.CategoryName: 50, "hobbies": 50},
		{types.CategoryName: 110, types.CategoryEmail: -10},
		{types.CategoryName: 60, types.CategoryEmail: 30},
	}
	for _, w := range bad {
		_, err := NewScorer(w)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrConfiguration)
	}

	s, err = NewScorer(map[types.Category]float64{types.CategoryName: 40, types.CategoryEmail: 60})
	require.NoError(t, err)
	w := s.Weights()
	w[types.CategoryName] = 0
	assert.Equal(t, 40.0, s.Weights()[types.CategoryName], "Weights 返回副本")
}

func TestFieldConfidence(t *testing.T) {
	assert.InDelta(t, 0.95, FieldConfidence(types.FieldEvidence{Method: types.MethodRegex, Agreement: 1, Plausibility: 1}), 1e-9)
	assert.InDelta(t, 0.7, FieldConfidence(types.FieldEvidence{Method: types.MethodHeuristic, Agreement: 0.5, Plausibility: 1}), 1e-9)
	assert.InDelta(t, 0.15, FieldConfidence(types.FieldEvidence{Method: "unknown"}), 1e-9)
	// 越界输入被截断
	assert.InDelta(t, 1.0, FieldConfidence(types.FieldEvidence{Method: types.MethodNER, Agreement: 5, Plausibility: 5}), 1e-9)
}

func TestScore(t *testing.T) {
	s, err := NewScorer(nil)
	require.NoError(t, err)

	report := s.Score(&types.DraftSchema{Evidence: []types.FieldEvidence{
		{Category: types.CategoryName, Field: types.FieldPersonName, Method: types.MethodRegex, Agreement: 1, Plausibility: 1},
		{Category: types.CategoryEmail, Field: types.FieldEmail, Method: types.MethodRegex, Agreement: 0.5, Plausibility: 1},
	}})

	assert.Equal(t, 0.95, report.Categories[types.CategoryName])
	assert.Equal(t, 0.85, report.Categories[types.CategoryEmail])
	assert.Equal(t, 0.0, report.Categories[types.CategoryEducation])
	assert.Len(t, report.Categories, len(types.AllCategories()))
	assert.Equal(t, 22.75, report.QualityScore)
	assert.Equal(t, 90.0, report.ConfidencePercentage)
	require.Len(t, report.Fields, 2)
	assert.Equal(t, types.FieldEmail, report.Fields[1].Field)
}

func TestScoreEmpty(t *testing.T) {
	s, err := NewScorer(nil)
	require.NoError(t, err)

	for _, draft := range []*types.DraftSchema{nil, {}} {
		report := s.Score(draft)
		assert.Equal(t, 0.0, report.QualityScore)
		assert.Equal(t, 0.0, report.ConfidencePercentage)
		assert.NotNil(t, report.Fields)
		for _, c := range types.AllCategories() {
			assert.Equal(t, 0.0, report.Categories[c])
		}
	}
}

func TestScoreBoundedAndMonotonic(t *testing.T) {
	s, err := NewScorer(nil)
	require.NoError(t, err)

	var evidence []types.FieldEvidence
	prev := 0.0
	for _, c := range types.AllCategories() {
		evidence = append(evidence, types.FieldEvidence{Category: c, Method: types.MethodRegex, Agreement: 1, Plausibility: 1})
		q := s.Score(&types.DraftSchema{Evidence: evidence}).QualityScore
		assert.GreaterOrEqual(t, q, prev)
		assert.LessOrEqual(t, q, 100.0)
		prev = q
	}
	assert.InDelta(t, 95.0, prev, 0.01)
}
