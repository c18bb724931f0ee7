package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompetitionRanks(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   []int
	}{
		{name: "empty", values: nil, want: []int{}},
		{name: "distinct", values: []float64{70, 90, 80}, want: []int{3, 1, 2}},
		{name: "ties share a rank", values: []float64{90, 80, 80, 70}, want: []int{1, 2, 2, 4}},
		{name: "compared rounded", values: []float64{80.001, 80.004, 79.99}, want: []int{1, 1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, competitionRanks(tt.values))
		})
	}
}
