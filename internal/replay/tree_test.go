package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growdu/pg-ferret/internal/model"
)

func TestBuildForestParentLinks(t *testing.T) {
	records := []model.Record{
		rec(1, 0, 0, 100),
		rec(2, 1, 10, 50),
	}

	f := BuildForest(records, nil)

	assert.Equal(t, []int{0}, f.Roots)
	assert.Equal(t, []int{1}, f.Children[0])
	assert.Empty(t, f.Children[1])
}

func TestBuildForestOrphanPromotion(t *testing.T) {
	// Parent 99 exists nowhere in the set; the record is demoted to a root
	// rather than rejected.
	records := []model.Record{
		rec(3, 99, 5, 6),
	}

	f := BuildForest(records, nil)

	assert.Equal(t, []int{0}, f.Roots)
	assert.Empty(t, f.Children[0])
}

func TestBuildForestPartition(t *testing.T) {
	// Two traces plus one orphan: every record lands in exactly one of the
	// root set or a single child list.
	records := []model.Record{
		rec(1, 0, 0, 100),
		rec(2, 1, 10, 40),
		rec(3, 1, 50, 90),
		rec(4, 2, 15, 30),
		rec(5, 0, 200, 300),
		rec(6, 77, 210, 220), // orphan
	}

	f := BuildForest(records, nil)

	seen := make(map[int]int)
	for _, root := range f.Roots {
		seen[root]++
	}
	for _, children := range f.Children {
		for _, c := range children {
			seen[c]++
		}
	}
	require.Len(t, seen, len(records))
	for i := range records {
		assert.Equal(t, 1, seen[i], "record %d must appear exactly once", i)
	}
	assert.Equal(t, []int{0, 4, 5}, f.Roots)
}

func TestBuildForestSelfParent(t *testing.T) {
	// A record naming itself as parent must not create a cycle.
	r := rec(7, 7, 0, 10)
	f := BuildForest([]model.Record{r}, nil)

	assert.Equal(t, []int{0}, f.Roots)
	assert.Empty(t, f.Children[0])
}

func TestBuildForestShapeIdempotent(t *testing.T) {
	records := []model.Record{
		rec(1, 0, 0, 100),
		rec(2, 1, 10, 40),
		rec(3, 2, 20, 30),
		rec(4, 9, 50, 60),
	}

	first := BuildForest(records, nil)
	second := BuildForest(records, nil)

	assert.Equal(t, first.Roots, second.Roots)
	assert.Equal(t, first.Children, second.Children)
}
