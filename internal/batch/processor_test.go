package batch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProcessBatchesConcatenatesAllItems(t *testing.T) {
	items := make([]int, 250)
	for i := range items {
		items[i] = i
	}

	p := New[int, int](Config{})
	out := p.ProcessBatches(items, func(batch []int) ([]int, error) {
		doubled := make([]int, len(batch))
		for i, v := range batch {
			doubled[i] = v * 2
		}
		return doubled, nil
	})

	require.Len(t, out, len(items))

	sum := 0
	for _, v := range out {
		sum += v
	}
	expected := 0
	for _, v := range items {
		expected += v * 2
	}
	require.Equal(t, expected, sum)
}

func TestProcessBatchesFallsBackOnError(t *testing.T) {
	items := []int{1, 2, 3, 4}
	p := New[int, int](Config{BatchSize: 2, MaxWorkers: 1})

	out := p.ProcessBatches(items, func(batch []int) ([]int, error) {
		return nil, errors.New("boom")
	})

	require.Len(t, out, len(items), "failed batches fall back to their original items")
	require.Greater(t, p.Stats().TotalBatches, 0)
	require.Equal(t, p.Stats().TotalBatches, p.Stats().Failures)
}

func TestProcessBatchesEmpty(t *testing.T) {
	p := New[int, string](Config{})
	out := p.ProcessBatches(nil, func(batch []int) ([]string, error) { return nil, nil })
	require.Nil(t, out)
}
