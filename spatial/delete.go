package spatial

import "github.com/aukilabs/go-tooling/pkg/logs"

// Remove deletes the entry with the given id. The bounds specify where to
// search for the entry: they must intersect the bounds the entry was inserted
// with for it to be found. The returned bool reports whether the entry was
// found and removed.
func (idx *Index[T]) Remove(id uint32, bounds BoundingBox) bool {
	path, e := idx.findEntry(id, bounds)
	if e == nil {
		return false
	}

	leaf := path[len(path)-1]
	leaf.removeChild(e)
	idx.ids.Reuse(id)
	idx.size--

	idx.condense(path)

	instrumentRemove(idx.name)
	instrumentShape(idx.name, idx.size, idx.Height())
	return true
}

// findEntry returns the entry with the given id and the path from the root to
// the leaf holding it. Only subtrees intersecting bounds are visited.
func (idx *Index[T]) findEntry(id uint32, bounds BoundingBox) ([]*node[T], *Entry[T]) {
	var path []*node[T]
	var found *Entry[T]

	var recurse func(*node[T]) bool
	recurse = func(n *node[T]) bool {
		path = append(path, n)

		if n.isLeaf() {
			for _, c := range n.children {
				if e := c.(*Entry[T]); e.ID == id {
					found = e
					return true
				}
			}
		} else {
			for _, c := range n.children {
				if !c.box().Intersects(bounds) {
					continue
				}
				if recurse(c.(*node[T])) {
					return true
				}
			}
		}

		path = path[:len(path)-1]
		return false
	}

	if !recurse(idx.root) {
		return nil, nil
	}
	return path, found
}

// orphan is a child detached from an underflowing node, waiting to be
// inserted back at level.
type orphan struct {
	item  item
	level int
}

// condense walks the path from the leaf that lost an entry up to the root,
// detaches the nodes left with less than minNodes children and inserts their
// children back. The root is replaced by its only child when it ends up with
// a single one.
func (idx *Index[T]) condense(path []*node[T]) {
	var orphans []orphan

	for i := len(path) - 1; i > 0; i-- {
		n := path[i]
		if len(n.children) >= idx.minNodes {
			n.recalculate()
			continue
		}

		path[i-1].removeChild(n)
		for _, c := range n.children {
			orphans = append(orphans, orphan{item: c, level: n.level})
		}
		n.children = nil

		instrumentUnderflow(idx.name)
	}
	idx.root.recalculate()

	for _, o := range orphans {
		idx.insert(o.item, o.level, make(map[int]bool))
	}

	for !idx.root.isLeaf() && len(idx.root.children) == 1 {
		idx.root = idx.root.children[0].(*node[T])

		logs.WithTag("index", idx.name).
			WithTag("height", idx.Height()).
			Debug("spatial index root collapsed")
	}
}
