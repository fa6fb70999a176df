package spatial

import (
	"math"
	"sort"
)

// split moves part of the children of the overflowing node n to a new sibling
// node and returns that sibling.
//
// Children are sorted along each axis, once by their lower and once by their
// upper coordinate. The axis with the smallest sum of margins over all the
// possible distributions is chosen, then the distribution of that axis with
// the least overlap between both groups (and the least area on ties) is
// applied.
func (idx *Index[T]) split(n *node[T]) *node[T] {
	bestMargin := math.Inf(+1)
	var bestDistribution distribution

	for axis := 0; axis < 3; axis++ {
		var margin float64
		axisBest := distribution{overlap: math.Inf(+1), area: math.Inf(+1)}

		for _, upper := range [2]bool{false, true} {
			sortChildren(n.children, axis, upper)

			for k := 1; k <= idx.maxNodes-2*idx.minNodes+2; k++ {
				firstSize := idx.minNodes - 1 + k
				first := boundsOf(n.children[:firstSize])
				second := boundsOf(n.children[firstSize:])

				margin += first.Perimeter() + second.Perimeter()

				d := distribution{
					firstSize: firstSize,
					overlap:   first.Overlap(second),
					area:      first.Area() + second.Area(),
				}
				if d.betterThan(axisBest) {
					d.order = append(axisBest.order[:0], n.children...)
					axisBest = d
				}
			}
		}

		if margin < bestMargin {
			bestMargin = margin
			bestDistribution = axisBest
		}
	}

	order := bestDistribution.order
	second := make([]item, len(order)-bestDistribution.firstSize)
	copy(second, order[bestDistribution.firstSize:])
	n.children = append(n.children[:0], order[:bestDistribution.firstSize]...)
	clear(n.children[len(n.children):cap(n.children)])
	n.recalculate()

	sibling := &node[T]{
		level:    n.level,
		children: second,
	}
	sibling.recalculate()

	instrumentSplit(idx.name)
	return sibling
}

// distribution is a candidate split of children sorted in order where the
// first firstSize children go to the first group.
type distribution struct {
	order     []item
	firstSize int
	overlap   float64
	area      float64
}

func (d distribution) betterThan(o distribution) bool {
	if d.overlap != o.overlap {
		return d.overlap < o.overlap
	}
	return d.area < o.area
}

// sortChildren sorts items along an axis by their lower coordinate, or by their
// upper coordinate when upper is set. The other coordinate breaks ties.
func sortChildren(items []item, axis int, upper bool) {
	sort.SliceStable(items, func(i, j int) bool {
		bi, bj := items[i].box(), items[j].box()
		loI, loJ := coord(bi.Min, axis), coord(bj.Min, axis)
		hiI, hiJ := coord(bi.Max, axis), coord(bj.Max, axis)

		if upper {
			if hiI != hiJ {
				return hiI < hiJ
			}
			return loI < loJ
		}

		if loI != loJ {
			return loI < loJ
		}
		return hiI < hiJ
	})
}
