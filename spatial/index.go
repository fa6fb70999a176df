package spatial

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// DefaultMinNodes is the minimum number of children of a non-root node
	// used by NewDefault.
	DefaultMinNodes = 4

	// DefaultMaxNodes is the maximum number of children of a node used by
	// NewDefault.
	DefaultMaxNodes = 8

	// DefaultReinsertFactor is the share of an overflowing node children that
	// get reinserted instead of splitting the node.
	DefaultReinsertFactor = 0.3

	defaultName = "default"
)

const (
	ErrTypeInvalidConfig = "invalid_config"
	ErrTypeInvariant     = "invariant_violation"
)

// item is a child of a node: either another *node or an *Entry when the node
// is a leaf.
type item interface {
	box() BoundingBox
}

// Entry is a value stored in the index along with its identifier and its
// bounding box.
type Entry[T any] struct {
	ID     uint32
	Value  T
	Bounds BoundingBox
}

func (e *Entry[T]) box() BoundingBox {
	return e.Bounds
}

// node is a node of the tree. Leaves are at level 0 and hold entries, other
// nodes hold nodes from the level right below.
type node[T any] struct {
	level    int
	bounds   BoundingBox
	children []item
}

func (n *node[T]) box() BoundingBox {
	return n.bounds
}

func (n *node[T]) isLeaf() bool {
	return n.level == 0
}

// recalculate sets the node bounds to the tightest box around its children.
func (n *node[T]) recalculate() {
	n.bounds = boundsOf(n.children)
}

func (n *node[T]) removeChild(c item) {
	for i, child := range n.children {
		if child == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

func boundsOf(items []item) BoundingBox {
	if len(items) == 0 {
		return BoundingBox{}
	}

	bb := items[0].box()
	for _, it := range items[1:] {
		bb = bb.Enlarge(it.box())
	}
	return bb
}

// Option customizes an index.
type Option func(*options)

type options struct {
	name           string
	reinsertFactor float64
	forcedReinsert bool
}

// WithName sets the name that labels the index metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithReinsertFactor sets the share of children, relative to the maximum
// number of children, that are reinserted when a node overflows.
func WithReinsertFactor(f float64) Option {
	return func(o *options) {
		o.reinsertFactor = f
	}
}

// WithoutForcedReinsert makes overflowing nodes always split.
func WithoutForcedReinsert() Option {
	return func(o *options) {
		o.forcedReinsert = false
	}
}

// Index is an in-memory R*-tree that stores values of type T keyed by 3D
// bounding boxes.
//
// An Index is not safe for concurrent use.
type Index[T any] struct {
	name     string
	minNodes int
	maxNodes int

	// Number of children reinserted on overflow. 0 disables forced
	// reinsertion.
	reinsertCount int

	root *node[T]
	ids  idGenerator
	size int
}

// New creates an empty index where every non-root node holds between
// minNodes and maxNodes children.
func New[T any](minNodes, maxNodes int, opts ...Option) (*Index[T], error) {
	if minNodes < 2 {
		return nil, errors.New("min nodes must be at least 2").
			WithType(ErrTypeInvalidConfig).
			WithTag("min_nodes", minNodes).
			WithTag("max_nodes", maxNodes)
	}

	if minNodes > maxNodes/2 {
		return nil, errors.New("min nodes must be less than or equal to half of the max nodes").
			WithType(ErrTypeInvalidConfig).
			WithTag("min_nodes", minNodes).
			WithTag("max_nodes", maxNodes)
	}

	o := options{
		name:           defaultName,
		reinsertFactor: DefaultReinsertFactor,
		forcedReinsert: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.reinsertFactor < 0 || o.reinsertFactor >= 1 {
		return nil, errors.New("reinsert factor must be in [0, 1)").
			WithType(ErrTypeInvalidConfig).
			WithTag("reinsert_factor", o.reinsertFactor)
	}

	var reinsertCount int
	if o.forcedReinsert {
		reinsertCount = int(math.Floor(o.reinsertFactor * float64(maxNodes)))
		// The overflowing node must keep at least minNodes children.
		if limit := maxNodes + 1 - minNodes; reinsertCount > limit {
			reinsertCount = limit
		}
	}

	return &Index[T]{
		name:          o.name,
		minNodes:      minNodes,
		maxNodes:      maxNodes,
		reinsertCount: reinsertCount,
		root:          &node[T]{},
	}, nil
}

// NewDefault creates an empty index with DefaultMinNodes and DefaultMaxNodes.
func NewDefault[T any](opts ...Option) *Index[T] {
	idx, err := New[T](DefaultMinNodes, DefaultMaxNodes, opts...)
	if err != nil {
		panic(err)
	}
	return idx
}

// Len returns the number of entries in the index.
func (idx *Index[T]) Len() int {
	return idx.size
}

// Height returns the number of levels in the tree. An empty index has a
// height of 1.
func (idx *Index[T]) Height() int {
	return idx.root.level + 1
}

// DeleteMetrics removes the metrics labeled with the index name. It is called
// when the index is discarded.
func (idx *Index[T]) DeleteMetrics() {
	deleteMetrics(idx.name)
}

// Extent returns the box bounding every entry. It returns false when the index
// is empty.
func (idx *Index[T]) Extent() (BoundingBox, bool) {
	if len(idx.root.children) == 0 {
		return BoundingBox{}, false
	}
	return idx.root.bounds, true
}
