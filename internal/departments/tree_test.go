package departments

import (
	"testing"

	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func sampleTree() *Tree {
	return NewTree([]models.Department{
		{ID: 1, Name: "Kommunstyrelsen", Slug: "ks"},
		{ID: 2, Name: "Socialförvaltningen", Slug: "social", ParentID: ptr(1)},
		{ID: 3, Name: "Äldreomsorg", Slug: "aldreomsorg", ParentID: ptr(2)},
		{ID: 4, Name: "Individ och familj", Slug: "ifo", ParentID: ptr(2)},
		{ID: 5, Name: "Kultur", Slug: "kultur"},
		{ID: 6, Name: "Orphan", Slug: "orphan", ParentID: ptr(99)},
	})
}

func TestDescendantsOf(t *testing.T) {
	tree := sampleTree()

	assert.Equal(t, []int64{1, 2, 4, 3}, tree.DescendantsOf(1))
	assert.Equal(t, []int64{3}, tree.DescendantsOf(3))
	assert.Empty(t, tree.DescendantsOf(42))
}

func TestAncestorsAndPaths(t *testing.T) {
	tree := sampleTree()

	assert.Equal(t, []int64{2, 1}, tree.AncestorsOf(3))
	assert.Empty(t, tree.AncestorsOf(1))
	assert.Equal(t, "Kommunstyrelsen / Socialförvaltningen / Äldreomsorg", tree.FullPath(3))
	assert.Equal(t, "ks/social/aldreomsorg", tree.SlugPath(3))
	assert.Equal(t, "Orphan", tree.FullPath(6))
	assert.Equal(t, "", tree.FullPath(42))
}

func TestExpandAllDeduplicates(t *testing.T) {
	tree := sampleTree()
	assert.Equal(t, []int64{2, 4, 3, 5}, tree.ExpandAll([]int64{2, 3, 5}))
}

func TestHierarchy(t *testing.T) {
	tree := sampleTree()
	roots := tree.Hierarchy()

	require.Len(t, roots, 3)
	assert.Equal(t, "Kommunstyrelsen", roots[0].Name)
	require.Len(t, roots[0].Children, 1)
	assert.Len(t, roots[0].Children[0].Children, 2)
	assert.Equal(t, "Kultur", roots[1].Name)
	assert.Equal(t, "Orphan", roots[2].Name)
}

func TestCycleIsTolerated(t *testing.T) {
	tree := NewTree([]models.Department{
		{ID: 1, Name: "A", Slug: "a", ParentID: ptr(2)},
		{ID: 2, Name: "B", Slug: "b", ParentID: ptr(1)},
	})

	assert.Equal(t, []int64{2}, tree.AncestorsOf(1))
	assert.ElementsMatch(t, []int64{1, 2}, tree.DescendantsOf(1))
	assert.Len(t, tree.Hierarchy(), 1)
}
