package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForPoints(t *testing.T) {
	thresholds := []int{100, 250, 500, 1000}

	tests := []struct {
		points int
		want   int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{105, 2},
		{249, 2},
		{250, 3},
		{999, 4},
		{1000, 5},
		{50000, 5},
		{-20, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForPoints(tt.points, thresholds), "points=%d", tt.points)
	}
	assert.Equal(t, 1, LevelForPoints(1000, nil))
}

func TestNextLevelPoints(t *testing.T) {
	thresholds := []int{100, 250}

	next, ok := NextLevelPoints(0, thresholds)
	assert.True(t, ok)
	assert.Equal(t, 100, next)

	next, ok = NextLevelPoints(100, thresholds)
	assert.True(t, ok)
	assert.Equal(t, 250, next)

	_, ok = NextLevelPoints(250, thresholds)
	assert.False(t, ok)
}
