package spatial

import (
	"io"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/golang/geo/r3"
	"github.com/segmentio/encoding/json"
)

// DebugInfo describes the shape of an index.
type DebugInfo struct {
	Name       string    `json:"name"`
	MinNodes   int       `json:"min_nodes"`
	MaxNodes   int       `json:"max_nodes"`
	Height     int       `json:"height"`
	NodeCount  int       `json:"node_count"`
	EntryCount int       `json:"entry_count"`
	LevelNodes []int     `json:"level_nodes"`
	MinPoint   r3.Vector `json:"min_point"`
	MaxPoint   r3.Vector `json:"max_point"`
}

// DebugInfo returns the shape of the index.
func (idx *Index[T]) DebugInfo() DebugInfo {
	info := DebugInfo{
		Name:       idx.name,
		MinNodes:   idx.minNodes,
		MaxNodes:   idx.maxNodes,
		Height:     idx.Height(),
		LevelNodes: make([]int, idx.Height()),
		MinPoint:   idx.root.bounds.Min,
		MaxPoint:   idx.root.bounds.Max,
	}

	var recurse func(*node[T])
	recurse = func(n *node[T]) {
		info.NodeCount++
		info.LevelNodes[n.level]++

		for _, c := range n.children {
			switch c := c.(type) {
			case *Entry[T]:
				info.EntryCount++

			case *node[T]:
				recurse(c)
			}
		}
	}
	recurse(idx.root)

	return info
}

// NodeSnapshot is a copy of a tree node, without the stored values.
type NodeSnapshot struct {
	Level    int             `json:"level"`
	Min      r3.Vector       `json:"min"`
	Max      r3.Vector       `json:"max"`
	Children []NodeSnapshot  `json:"children,omitempty"`
	Entries  []EntrySnapshot `json:"entries,omitempty"`
}

// EntrySnapshot is a copy of an entry id and bounds.
type EntrySnapshot struct {
	ID  uint32    `json:"id"`
	Min r3.Vector `json:"min"`
	Max r3.Vector `json:"max"`
}

// Snapshot returns a copy of the tree structure.
func (idx *Index[T]) Snapshot() NodeSnapshot {
	return snapshot(idx.root)
}

func snapshot[T any](n *node[T]) NodeSnapshot {
	s := NodeSnapshot{
		Level: n.level,
		Min:   n.bounds.Min,
		Max:   n.bounds.Max,
	}

	for _, c := range n.children {
		switch c := c.(type) {
		case *Entry[T]:
			s.Entries = append(s.Entries, EntrySnapshot{
				ID:  c.ID,
				Min: c.Bounds.Min,
				Max: c.Bounds.Max,
			})

		case *node[T]:
			s.Children = append(s.Children, snapshot(c))
		}
	}

	return s
}

// Dump writes the tree structure to w as indented JSON.
func (idx *Index[T]) Dump(w io.Writer) error {
	b, err := json.MarshalIndent(idx.Snapshot(), "", "  ")
	if err != nil {
		return errors.New("marshaling index snapshot failed").
			WithTag("index", idx.name).
			Wrap(err)
	}

	if _, err = w.Write(b); err != nil {
		return errors.New("writing index snapshot failed").
			WithTag("index", idx.name).
			Wrap(err)
	}
	return nil
}

// Validate checks the structure of the tree and returns an error describing
// the first broken invariant.
func (idx *Index[T]) Validate() error {
	if err := idx.validate(); err != nil {
		return errors.New("spatial index is corrupted").
			WithType(ErrTypeInvariant).
			WithTag("index", idx.name).
			Wrap(err)
	}
	return nil
}

func (idx *Index[T]) validate() error {
	if !idx.root.isLeaf() && len(idx.root.children) < 2 {
		return invariantError("internal root has less than 2 children",
			"children", len(idx.root.children))
	}

	ids := make(map[uint32]struct{}, idx.size)

	var recurse func(n *node[T], isRoot bool) error
	recurse = func(n *node[T], isRoot bool) error {
		count := len(n.children)
		if count > idx.maxNodes {
			return invariantError("node has too many children",
				"level", n.level,
				"children", count)
		}
		if !isRoot && count < idx.minNodes {
			return invariantError("node has too few children",
				"level", n.level,
				"children", count)
		}
		if expected := boundsOf(n.children); count != 0 && !n.bounds.Equal(expected) {
			return invariantError("node bounds are not the bounds of its children",
				"level", n.level,
				"bounds", n.bounds.String(),
				"expected_bounds", expected.String())
		}

		for _, c := range n.children {
			switch c := c.(type) {
			case *Entry[T]:
				if !n.isLeaf() {
					return invariantError("entry found in an internal node",
						"level", n.level,
						"id", c.ID)
				}
				if _, ok := ids[c.ID]; ok {
					return invariantError("id is used by more than one entry",
						"id", c.ID)
				}
				ids[c.ID] = struct{}{}

			case *node[T]:
				if c.level != n.level-1 {
					return invariantError("child node is not one level below its parent",
						"level", n.level,
						"child_level", c.level)
				}
				if err := recurse(c, false); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := recurse(idx.root, true); err != nil {
		return err
	}

	if len(ids) != idx.size {
		return invariantError("entry count does not match the index size",
			"entries", len(ids),
			"size", idx.size)
	}
	return nil
}

// invariantError returns an error tagged with the given key/value pairs.
func invariantError(msg string, keyValues ...any) error {
	err := errors.New(msg).WithType(ErrTypeInvariant)
	for i := 0; i+1 < len(keyValues); i += 2 {
		err = err.WithTag(keyValues[i].(string), keyValues[i+1])
	}
	return err
}
