package spatial

import (
	"math"
	"sort"

	"github.com/aukilabs/go-tooling/pkg/logs"
)

// Insert adds a value to the index and returns the id that identifies it.
func (idx *Index[T]) Insert(value T, bounds BoundingBox) uint32 {
	e := &Entry[T]{
		ID:     idx.ids.New(),
		Value:  value,
		Bounds: bounds,
	}

	idx.insert(e, 0, make(map[int]bool))
	idx.size++

	instrumentInsert(idx.name)
	instrumentShape(idx.name, idx.size, idx.Height())
	return e.ID
}

// insert places it in a node at the given level. reinsertedLevels records the
// levels where forced reinsertion already happened during the current
// top-level insertion.
func (idx *Index[T]) insert(it item, level int, reinsertedLevels map[int]bool) {
	path := idx.chooseSubtree(it.box(), level)

	target := path[len(path)-1]
	target.children = append(target.children, it)
	for i := len(path) - 1; i >= 0; i-- {
		path[i].recalculate()
	}

	idx.overflowTreatment(path, reinsertedLevels)
}

// chooseSubtree returns the path from the root to the node at the given level
// that is the best fit to hold a child with the given bounds.
func (idx *Index[T]) chooseSubtree(bounds BoundingBox, level int) []*node[T] {
	n := idx.root
	path := make([]*node[T], 0, n.level+1)
	path = append(path, n)

	for n.level > level {
		if n.level == 1 {
			n = chooseLeastOverlap(n, bounds)
		} else {
			n = chooseLeastEnlargement(n, bounds)
		}
		path = append(path, n)
	}

	return path
}

// chooseLeastOverlap picks the child whose overlap with its siblings grows the
// least when enlarged by bounds. Ties are resolved by the smallest area
// enlargement.
func chooseLeastOverlap[T any](n *node[T], bounds BoundingBox) *node[T] {
	var best *node[T]
	bestOverlap := math.Inf(+1)
	bestEnlargement := math.Inf(+1)

	for _, c := range n.children {
		child := c.(*node[T])
		enlarged := child.bounds.Enlarge(bounds)

		var overlap float64
		for _, s := range n.children {
			if s == c {
				continue
			}
			overlap += enlarged.Overlap(s.box()) - child.bounds.Overlap(s.box())
		}
		enlargement := enlarged.Area() - child.bounds.Area()

		if overlap < bestOverlap ||
			(overlap == bestOverlap && enlargement < bestEnlargement) {
			best = child
			bestOverlap = overlap
			bestEnlargement = enlargement
		}
	}

	return best
}

// chooseLeastEnlargement picks the child whose area grows the least when
// enlarged by bounds. Ties are resolved by the smallest area.
func chooseLeastEnlargement[T any](n *node[T], bounds BoundingBox) *node[T] {
	var best *node[T]
	bestEnlargement := math.Inf(+1)
	bestArea := math.Inf(+1)

	for _, c := range n.children {
		child := c.(*node[T])
		area := child.bounds.Area()
		enlargement := child.bounds.Enlarge(bounds).Area() - area

		if enlargement < bestEnlargement ||
			(enlargement == bestEnlargement && area < bestArea) {
			best = child
			bestEnlargement = enlargement
			bestArea = area
		}
	}

	return best
}

// overflowTreatment walks the path from the bottom and resolves every node
// that holds more than maxNodes children.
func (idx *Index[T]) overflowTreatment(path []*node[T], reinsertedLevels map[int]bool) {
	for i := len(path) - 1; i >= 0; i-- {
		n := path[i]
		if len(n.children) <= idx.maxNodes {
			n.recalculate()
			continue
		}

		if i > 0 && idx.reinsertCount > 0 && !reinsertedLevels[n.level] {
			reinsertedLevels[n.level] = true
			idx.reinsert(n, path[:i], reinsertedLevels)

			// Nothing was added to the ancestors: the reinsertions took care
			// of their own overflows and bounds.
			return
		}

		sibling := idx.split(n)
		if i == 0 {
			idx.growRoot(n, sibling)
			return
		}

		parent := path[i-1]
		parent.children = append(parent.children, sibling)
		parent.recalculate()
	}
}

// growRoot replaces the root by a new node holding both halves of the former
// root.
func (idx *Index[T]) growRoot(n, sibling *node[T]) {
	root := &node[T]{
		level:    n.level + 1,
		children: []item{n, sibling},
	}
	root.recalculate()
	idx.root = root

	logs.WithTag("index", idx.name).
		WithTag("height", idx.Height()).
		Debug("spatial index root split")
}

// reinsert removes the children of n that are the farthest from its center
// and inserts them again at the level of n. ancestors is the path from the
// root to the parent of n.
func (idx *Index[T]) reinsert(n *node[T], ancestors []*node[T], reinsertedLevels map[int]bool) {
	center := n.bounds.Center()

	type candidate struct {
		item     item
		distance float64
	}

	candidates := make([]candidate, len(n.children))
	for i, c := range n.children {
		candidates[i] = candidate{
			item:     c,
			distance: c.box().Center().Distance(center),
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance > candidates[j].distance
	})

	removed := make([]item, idx.reinsertCount)
	isRemoved := make(map[item]bool, idx.reinsertCount)
	for i := range removed {
		removed[i] = candidates[i].item
		isRemoved[removed[i]] = true
	}

	kept := n.children[:0]
	for _, c := range n.children {
		if !isRemoved[c] {
			kept = append(kept, c)
		}
	}
	n.children = kept
	n.recalculate()
	for i := len(ancestors) - 1; i >= 0; i-- {
		ancestors[i].recalculate()
	}

	instrumentForcedReinsert(idx.name)

	for _, it := range removed {
		idx.insert(it, n.level, reinsertedLevels)
	}
}
