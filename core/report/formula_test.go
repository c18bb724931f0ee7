package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTermFormula(t *testing.T) {
	_, err := NewTermFormula("0.3 * opener + 0.7 * end_term")
	assert.NoError(t, err)

	_, err = NewTermFormula("0.5 * quiz + 0.5 * end_term")
	assert.Error(t, err, "unknown exam type")

	_, err = NewTermFormula("0.3 * (opener")
	assert.Error(t, err, "invalid syntax")

	f, err := NewTermFormula("   ")
	require.NoError(t, err)
	assert.Equal(t, "mean", f.String())
}

func TestTermFormula_Score(t *testing.T) {
	weighted, err := NewTermFormula("0.3 * opener + 0.7 * end_term")
	require.NoError(t, err)
	mean, err := NewTermFormula("")
	require.NoError(t, err)

	tests := []struct {
		name      string
		formula   *TermFormula
		marks     map[string]float64
		wantScore float64
		wantOk    bool
	}{
		{name: "no marks", formula: mean, marks: nil},
		{name: "mean", formula: mean, marks: map[string]float64{"opener": 60, "mid_term": 70, "end_term": 81}, wantScore: 70.33, wantOk: true},
		{name: "weighted", formula: weighted, marks: map[string]float64{"opener": 60, "end_term": 80}, wantScore: 74, wantOk: true},
		{name: "missing exam takes the mean", formula: weighted, marks: map[string]float64{"end_term": 80}, wantScore: 80, wantOk: true},
		{name: "weighted without marks", formula: weighted, marks: map[string]float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, ok, err := tt.formula.Score(tt.marks)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantScore, score)
		})
	}
}
