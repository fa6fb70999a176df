package spatial

import "errors"

// Stop is a special sentinel error that can be returned by a Search callback
// to stop the search without any error.
var Stop = errors.New("stop")

// Get returns the value of the entry with the given id. As with Remove, bounds
// must intersect the bounds the entry was inserted with.
func (idx *Index[T]) Get(id uint32, bounds BoundingBox) (T, bool) {
	_, e := idx.findEntry(id, bounds)
	if e == nil {
		var zero T
		return zero, false
	}
	return e.Value, true
}

// Query returns the values of all the entries whose bounds intersect the given
// bounds, in no particular order.
func (idx *Index[T]) Query(bounds BoundingBox) []T {
	var values []T
	idx.Search(bounds, func(id uint32, v T) error {
		values = append(values, v)
		return nil
	})

	instrumentQuery(idx.name, len(values))
	return values
}

// Search calls fn for each entry whose bounds intersect the given bounds. If
// fn returns an error, the search is terminated and the error is returned,
// except for Stop which ends the search and makes Search return nil.
func (idx *Index[T]) Search(bounds BoundingBox, fn func(id uint32, v T) error) error {
	var recurse func(*node[T]) error
	recurse = func(n *node[T]) error {
		for _, c := range n.children {
			if !c.box().Intersects(bounds) {
				continue
			}

			switch c := c.(type) {
			case *Entry[T]:
				if err := fn(c.ID, c.Value); err != nil {
					return err
				}

			case *node[T]:
				if err := recurse(c); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := recurse(idx.root); err != nil && err != Stop {
		return err
	}
	return nil
}

// AllBounds returns the bounds of every node at level 1 and of every entry. It
// is meant to visualize the shape of the tree.
func (idx *Index[T]) AllBounds() []BoundingBox {
	var bounds []BoundingBox

	var recurse func(*node[T])
	recurse = func(n *node[T]) {
		if n.level == 1 {
			bounds = append(bounds, n.bounds)
		}

		for _, c := range n.children {
			switch c := c.(type) {
			case *Entry[T]:
				bounds = append(bounds, c.Bounds)

			case *node[T]:
				recurse(c)
			}
		}
	}
	recurse(idx.root)

	return bounds
}
