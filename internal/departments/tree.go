// Package departments provides read-only traversal of the department hierarchy.
package departments

import (
	"sort"
	"strings"

	"github.com/kunskapsportal-search-api/internal/models"
)

// PathSeparator joins department names in FullPath
const PathSeparator = " / "

// Tree is an immutable snapshot of the department adjacency list
type Tree struct {
	nodes    map[int64]models.Department
	children map[int64][]int64
	roots    []int64
}

// NewTree builds a snapshot. Departments whose parent is unknown become roots.
func NewTree(depts []models.Department) *Tree {
	t := &Tree{
		nodes:    make(map[int64]models.Department, len(depts)),
		children: make(map[int64][]int64),
	}
	for _, d := range depts {
		t.nodes[d.ID] = d
	}

	ids := make([]int64, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return t.nodes[ids[i]].Name < t.nodes[ids[j]].Name ||
			(t.nodes[ids[i]].Name == t.nodes[ids[j]].Name && ids[i] < ids[j])
	})

	for _, id := range ids {
		d := t.nodes[id]
		if d.ParentID != nil && *d.ParentID != id {
			if _, ok := t.nodes[*d.ParentID]; ok {
				t.children[*d.ParentID] = append(t.children[*d.ParentID], id)
				continue
			}
		}
		t.roots = append(t.roots, id)
	}

	// members of a parent cycle are unreachable from any root; promote one per cycle
	reached := make(map[int64]bool, len(ids))
	for _, r := range t.roots {
		for _, d := range t.DescendantsOf(r) {
			reached[d] = true
		}
	}
	for _, id := range ids {
		if reached[id] {
			continue
		}
		t.roots = append(t.roots, id)
		for _, d := range t.DescendantsOf(id) {
			reached[d] = true
		}
	}
	return t
}

// Get returns a department by id
func (t *Tree) Get(id int64) (models.Department, bool) {
	d, ok := t.nodes[id]
	return d, ok
}

// Len returns the number of departments in the snapshot
func (t *Tree) Len() int {
	return len(t.nodes)
}

// DescendantsOf returns id followed by every department below it, breadth first.
// Unknown ids yield an empty slice.
func (t *Tree) DescendantsOf(id int64) []int64 {
	if _, ok := t.nodes[id]; !ok {
		return []int64{}
	}
	seen := map[int64]bool{id: true}
	out := []int64{id}
	for i := 0; i < len(out); i++ {
		for _, child := range t.children[out[i]] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
		}
	}
	return out
}

// ExpandAll returns the union of DescendantsOf for every id, preserving first occurrence
func (t *Tree) ExpandAll(ids []int64) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, id := range ids {
		for _, d := range t.DescendantsOf(id) {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// AncestorsOf returns the parents of id, nearest first. Cycles are cut.
func (t *Tree) AncestorsOf(id int64) []int64 {
	d, ok := t.nodes[id]
	if !ok {
		return []int64{}
	}
	seen := map[int64]bool{id: true}
	out := []int64{}
	for d.ParentID != nil {
		pid := *d.ParentID
		parent, ok := t.nodes[pid]
		if !ok || seen[pid] {
			break
		}
		seen[pid] = true
		out = append(out, pid)
		d = parent
	}
	return out
}

// FullPath renders "Root / Child / Leaf" for id, or "" when unknown
func (t *Tree) FullPath(id int64) string {
	d, ok := t.nodes[id]
	if !ok {
		return ""
	}
	ancestors := t.AncestorsOf(id)
	names := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		names = append(names, t.nodes[ancestors[i]].Name)
	}
	names = append(names, d.Name)
	return strings.Join(names, PathSeparator)
}

// SlugPath renders "root/child/leaf" from department slugs
func (t *Tree) SlugPath(id int64) string {
	d, ok := t.nodes[id]
	if !ok {
		return ""
	}
	ancestors := t.AncestorsOf(id)
	slugs := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		slugs = append(slugs, t.nodes[ancestors[i]].Slug)
	}
	slugs = append(slugs, d.Slug)
	return strings.Join(slugs, "/")
}

// Hierarchy returns the nested tree used by selection UIs
func (t *Tree) Hierarchy() []models.DepartmentNode {
	out := make([]models.DepartmentNode, 0, len(t.roots))
	for _, id := range t.roots {
		out = append(out, t.node(id, map[int64]bool{}))
	}
	return out
}

func (t *Tree) node(id int64, visiting map[int64]bool) models.DepartmentNode {
	d := t.nodes[id]
	n := models.DepartmentNode{
		ID:   d.ID,
		Name: d.Name,
		Slug: d.Slug,
		Path: t.FullPath(id),
	}
	visiting[id] = true
	for _, child := range t.children[id] {
		if visiting[child] {
			continue
		}
		n.Children = append(n.Children, t.node(child, visiting))
	}
	delete(visiting, id)
	return n
}
