package merge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_DescendingOrder(t *testing.T) {
	index := ElementIndexMap{}
	index.Add("{{a}}", Range{StartIndex: 5, EndIndex: 9})
	index.Add("{{b}}", Range{StartIndex: 50, EndIndex: 60})
	index.Add("{{c}}", Range{StartIndex: 12, EndIndex: 20})

	got, err := Collect(index)
	require.NoError(t, err)

	starts := make([]int, 0, len(got))
	for _, placed := range got {
		starts = append(starts, placed.Range.StartIndex)
	}
	assert.Equal(t, []int{50, 12, 5}, starts)
	assert.Equal(t, "{{b}}", got[0].Placeholder)
	assert.Equal(t, "{{a}}", got[2].Placeholder)
}

func TestCollect_RepeatedPlaceholder(t *testing.T) {
	index := ElementIndexMap{
		"{{item}}": {
			3:  {StartIndex: 3, EndIndex: 8},
			40: {StartIndex: 40, EndIndex: 45},
		},
		"{{other}}": {
			20: {StartIndex: 20, EndIndex: 30},
		},
	}

	got, err := Collect(index)
	require.NoError(t, err)
	assert.Equal(t, []PlacedRange{
		{Placeholder: "{{item}}", Range: Range{StartIndex: 40, EndIndex: 45}},
		{Placeholder: "{{other}}", Range: Range{StartIndex: 20, EndIndex: 30}},
		{Placeholder: "{{item}}", Range: Range{StartIndex: 3, EndIndex: 8}},
	}, got)
}

func TestCollect_SharedStartIsDeterministic(t *testing.T) {
	index := ElementIndexMap{
		"{{z}}": {10: {StartIndex: 10, EndIndex: 12}},
		"{{a}}": {10: {StartIndex: 10, EndIndex: 15}},
	}

	for i := 0; i < 20; i++ {
		got, err := Collect(index)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "{{a}}", got[0].Placeholder)
		assert.Equal(t, "{{z}}", got[1].Placeholder)
	}
}

func TestCollect_Empty(t *testing.T) {
	got, err := Collect(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollect_InvalidRange(t *testing.T) {
	tests := []struct {
		name  string
		index ElementIndexMap
	}{
		{
			name:  "start equals end",
			index: ElementIndexMap{"{{x}}": {7: {StartIndex: 7, EndIndex: 7}}},
		},
		{
			name:  "start after end",
			index: ElementIndexMap{"{{x}}": {9: {StartIndex: 9, EndIndex: 3}}},
		},
		{
			name:  "negative start",
			index: ElementIndexMap{"{{x}}": {-1: {StartIndex: -1, EndIndex: 3}}},
		},
		{
			name:  "offset without range",
			index: ElementIndexMap{"{{x}}": {4: {}}},
		},
		{
			name:  "offset of another range",
			index: ElementIndexMap{"{{x}}": {4: {StartIndex: 6, EndIndex: 9}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Collect(tt.index)
			assert.Nil(t, got)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRange))

			var rangeErr *RangeError
			require.True(t, errors.As(err, &rangeErr))
			assert.Equal(t, "{{x}}", rangeErr.Placeholder)
		})
	}
}
