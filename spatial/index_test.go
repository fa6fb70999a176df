package spatial

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/golang/geo/r3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func unitBoxAt(x, y, z float64) BoundingBox {
	return BoundingBoxFromCenter(r3.Vector{X: x, Y: y, Z: z}, r3.Vector{X: 0.5, Y: 0.5, Z: 0.5})
}

func randomBox(rnd *rand.Rand, maxStart, maxWidth float64) BoundingBox {
	lo := r3.Vector{
		X: rnd.Float64() * maxStart,
		Y: rnd.Float64() * maxStart,
		Z: rnd.Float64() * maxStart,
	}
	size := r3.Vector{
		X: 0.01 + rnd.Float64()*maxWidth,
		Y: 0.01 + rnd.Float64()*maxWidth,
		Z: 0.01 + rnd.Float64()*maxWidth,
	}
	return NewBoundingBox(lo, lo.Add(size))
}

func TestNew(t *testing.T) {
	t.Run("valid configurations", func(t *testing.T) {
		for _, c := range [][2]int{{2, 4}, {2, 5}, {3, 6}, {4, 8}, {2, 16}} {
			idx, err := New[int](c[0], c[1])
			require.NoError(t, err)
			require.Zero(t, idx.Len())
			require.Equal(t, 1, idx.Height())
			require.NoError(t, idx.Validate())
		}
	})

	t.Run("min nodes lower than 2", func(t *testing.T) {
		_, err := New[int](1, 8)
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))
	})

	t.Run("min nodes greater than half of max nodes", func(t *testing.T) {
		_, err := New[int](4, 7)
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))
	})

	t.Run("invalid reinsert factor", func(t *testing.T) {
		_, err := New[int](2, 4, WithReinsertFactor(1.5))
		require.Error(t, err)
	})

	t.Run("default configuration", func(t *testing.T) {
		idx := NewDefault[string]()
		require.Equal(t, DefaultMinNodes, idx.minNodes)
		require.Equal(t, DefaultMaxNodes, idx.maxNodes)
		require.Equal(t, 2, idx.reinsertCount)
	})

	t.Run("forced reinsertion disabled", func(t *testing.T) {
		idx := NewDefault[string](WithoutForcedReinsert())
		require.Zero(t, idx.reinsertCount)
	})
}

func TestIndexEmpty(t *testing.T) {
	idx := NewDefault[string]()

	require.Empty(t, idx.Query(box(-10, -10, -10, 10, 10, 10)))
	require.Empty(t, idx.AllBounds())
	require.False(t, idx.Remove(1, box(-10, -10, -10, 10, 10, 10)))

	_, ok := idx.Get(1, box(-10, -10, -10, 10, 10, 10))
	require.False(t, ok)

	_, ok = idx.Extent()
	require.False(t, ok)
}

func TestIndexQueryScenario(t *testing.T) {
	idx, err := New[string](2, 4)
	require.NoError(t, err)

	idx.Insert("a", unitBoxAt(0, 0, 0))
	idx.Insert("b", unitBoxAt(10, 0, 0))
	idx.Insert("c", unitBoxAt(20, 0, 0))

	res := idx.Query(box(-1, -1, -1, 1, 1, 1))
	require.Equal(t, []string{"a"}, res)

	res = idx.Query(box(-1, -1, -1, 25, 1, 1))
	sort.Strings(res)
	require.Equal(t, []string{"a", "b", "c"}, res)

	require.Empty(t, idx.Query(box(3, -1, -1, 7, 1, 1)))
}

func TestIndexRoundTrip(t *testing.T) {
	idx := NewDefault[string]()
	bounds := unitBoxAt(1, 2, 3)

	id := idx.Insert("value", bounds)
	v, ok := idx.Get(id, bounds)
	require.True(t, ok)
	require.Equal(t, "value", v)

	require.True(t, idx.Remove(id, bounds))
	_, ok = idx.Get(id, bounds)
	require.False(t, ok)
	require.False(t, idx.Remove(id, bounds))
	require.Zero(t, idx.Len())
	require.NoError(t, idx.Validate())
}

func TestIndexPrunedLookup(t *testing.T) {
	idx, err := New[int](2, 4)
	require.NoError(t, err)

	var ids []uint32
	for i := 0; i < 20; i++ {
		ids = append(ids, idx.Insert(i, unitBoxAt(float64(i)*10, 0, 0)))
	}

	elsewhere := unitBoxAt(1000, 1000, 1000)
	_, ok := idx.Get(ids[5], elsewhere)
	require.False(t, ok)
	require.False(t, idx.Remove(ids[5], elsewhere))
	require.Equal(t, 20, idx.Len())

	v, ok := idx.Get(ids[5], box(49.9, -0.1, -0.1, 50.1, 0.1, 0.1))
	require.True(t, ok)
	require.Equal(t, 5, v)
}

func TestIndexIDReuse(t *testing.T) {
	idx := NewDefault[string]()

	a := idx.Insert("a", unitBoxAt(0, 0, 0))
	b := idx.Insert("b", unitBoxAt(1, 0, 0))
	c := idx.Insert("c", unitBoxAt(2, 0, 0))
	require.Equal(t, []uint32{1, 2, 3}, []uint32{a, b, c})

	require.True(t, idx.Remove(b, unitBoxAt(1, 0, 0)))
	d := idx.Insert("d", unitBoxAt(3, 0, 0))
	require.Equal(t, b, d)

	e := idx.Insert("e", unitBoxAt(4, 0, 0))
	require.Equal(t, uint32(4), e)
	require.NoError(t, idx.Validate())

	v, ok := idx.Get(d, unitBoxAt(3, 0, 0))
	require.True(t, ok)
	require.Equal(t, "d", v)
}

func TestIndexSplitScenario(t *testing.T) {
	for _, c := range [][2]int{{2, 4}, {4, 8}} {
		minNodes, maxNodes := c[0], c[1]

		t.Run(fmt.Sprintf("min_%d_max_%d", minNodes, maxNodes), func(t *testing.T) {
			idx, err := New[int](minNodes, maxNodes)
			require.NoError(t, err)

			for i := 0; i < maxNodes+2; i++ {
				idx.Insert(i, unitBoxAt(5, 5, 5))
				require.NoError(t, idx.Validate())
			}

			require.Equal(t, 2, idx.Height())
			require.Len(t, idx.root.children, 2)
			for _, c := range idx.root.children {
				child := c.(*node[int])
				require.True(t, child.isLeaf())
				require.GreaterOrEqual(t, len(child.children), minNodes)
				require.LessOrEqual(t, len(child.children), maxNodes)
			}

			require.Len(t, idx.Query(unitBoxAt(5, 5, 5)), maxNodes+2)
		})
	}
}

func TestIndexRemoveAllButOne(t *testing.T) {
	rnd := rand.New(rand.NewSource(0))

	idx, err := New[int](2, 4)
	require.NoError(t, err)

	type inserted struct {
		id     uint32
		bounds BoundingBox
	}

	var entries []inserted
	for i := 0; i < 100; i++ {
		b := randomBox(rnd, 10, 1)
		entries = append(entries, inserted{id: idx.Insert(i, b), bounds: b})
	}
	require.Greater(t, idx.Height(), 2)

	rnd.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})

	for _, e := range entries[1:] {
		require.True(t, idx.Remove(e.id, e.bounds))
		require.NoError(t, idx.Validate())
	}

	require.Equal(t, 1, idx.Len())
	require.Equal(t, 1, idx.Height())
	require.True(t, idx.root.isLeaf())
	require.Len(t, idx.root.children, 1)
	require.Equal(t, entries[0].id, idx.root.children[0].(*Entry[int]).ID)

	extent, ok := idx.Extent()
	require.True(t, ok)
	require.True(t, extent.Equal(entries[0].bounds))
}

func counterValue(c *prometheus.CounterVec, name string) float64 {
	return testutil.ToFloat64(c.WithLabelValues(name))
}

func TestIndexForcedReinsertion(t *testing.T) {
	t.Run("reinsertion happens at most once per level and insertion", func(t *testing.T) {
		withReinsert, err := New[int](2, 6, WithName("reinsert_enabled_test"))
		require.NoError(t, err)

		withoutReinsert, err := New[int](2, 6,
			WithName("reinsert_disabled_test"),
			WithoutForcedReinsert(),
		)
		require.NoError(t, err)

		rnd := rand.New(rand.NewSource(42))
		for i := 0; i < 300; i++ {
			b := randomBox(rnd, 100, 2)

			before := counterValue(spatialIndexForcedReinserts, "reinsert_enabled_test")
			withReinsert.Insert(i, b)
			reinserts := counterValue(spatialIndexForcedReinserts, "reinsert_enabled_test") - before
			require.LessOrEqual(t, reinserts, float64(withReinsert.Height()-1))

			withoutReinsert.Insert(i, b)
		}

		require.Greater(t, counterValue(spatialIndexForcedReinserts, "reinsert_enabled_test"), 0.0)
		require.Zero(t, counterValue(spatialIndexForcedReinserts, "reinsert_disabled_test"))
		require.Greater(t, counterValue(spatialIndexSplits, "reinsert_disabled_test"), 0.0)

		require.NoError(t, withReinsert.Validate())
		require.NoError(t, withoutReinsert.Validate())

		q := box(0, 0, 0, 100, 100, 100)
		require.ElementsMatch(t, withReinsert.Query(q), withoutReinsert.Query(q))
	})

	newTwoLevelIndex := func(t *testing.T, name string) *Index[int] {
		idx, err := New[int](2, 4, WithName(name))
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			idx.Insert(i, unitBoxAt(float64(i*2), 0, 0))
		}
		require.Equal(t, 2, idx.Height())
		return idx
	}

	t.Run("overflowing leaf reinserts before splitting", func(t *testing.T) {
		idx := newTwoLevelIndex(t, "reinsert_leaf_test")
		reinserts := counterValue(spatialIndexForcedReinserts, "reinsert_leaf_test")

		for i := 5; i < 9; i++ {
			idx.Insert(i, unitBoxAt(float64(i*2), 0, 0))
		}

		require.Greater(t, counterValue(spatialIndexForcedReinserts, "reinsert_leaf_test"), reinserts)
		require.Equal(t, 9, idx.Len())
		require.NoError(t, idx.Validate())
	})

	t.Run("second overflow at a reinserted level splits", func(t *testing.T) {
		idx := newTwoLevelIndex(t, "reinsert_once_test")
		reinserts := counterValue(spatialIndexForcedReinserts, "reinsert_once_test")
		splits := counterValue(spatialIndexSplits, "reinsert_once_test")

		for i := 5; i < 9; i++ {
			e := &Entry[int]{
				ID:     idx.ids.New(),
				Value:  i,
				Bounds: unitBoxAt(float64(i*2), 0, 0),
			}
			idx.insert(e, 0, map[int]bool{0: true})
			idx.size++
		}

		require.Equal(t, reinserts, counterValue(spatialIndexForcedReinserts, "reinsert_once_test"))
		require.Greater(t, counterValue(spatialIndexSplits, "reinsert_once_test"), splits)
		require.Equal(t, 9, idx.Len())
		require.Len(t, idx.Query(box(-1, -1, -1, 20, 1, 1)), 9)
		require.NoError(t, idx.Validate())
	})
}

func TestIndexDeleteMetrics(t *testing.T) {
	idx := NewDefault[int](WithName("delete_metrics_test"))
	idx.Insert(1, unitBoxAt(0, 0, 0))
	require.Equal(t, 1.0, counterValue(spatialIndexInserts, "delete_metrics_test"))

	idx.DeleteMetrics()
	require.False(t, spatialIndexInserts.DeleteLabelValues("delete_metrics_test"))
	require.False(t, spatialIndexEntries.DeleteLabelValues("delete_metrics_test"))
}

func TestIndexSearch(t *testing.T) {
	idx, err := New[int](2, 4)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		idx.Insert(i, unitBoxAt(float64(i), 0, 0))
	}

	t.Run("visits all intersecting entries", func(t *testing.T) {
		var got []int
		err := idx.Search(box(-1, -1, -1, 20, 1, 1), func(id uint32, v int) error {
			got = append(got, v)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, got, 10)
	})

	t.Run("stops without error", func(t *testing.T) {
		var count int
		err := idx.Search(box(-1, -1, -1, 20, 1, 1), func(id uint32, v int) error {
			count++
			return Stop
		})
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("returns callback error", func(t *testing.T) {
		cbErr := fmt.Errorf("callback failed")
		err := idx.Search(box(-1, -1, -1, 20, 1, 1), func(id uint32, v int) error {
			return cbErr
		})
		require.Equal(t, cbErr, err)
	})
}

func TestIndexAllBounds(t *testing.T) {
	idx, err := New[int](2, 4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		idx.Insert(i, unitBoxAt(float64(i)*10, 0, 0))
	}
	require.Len(t, idx.AllBounds(), 3)

	for i := 3; i < 5; i++ {
		idx.Insert(i, unitBoxAt(float64(i)*10, 0, 0))
	}
	require.Equal(t, 2, idx.Height())
	require.Len(t, idx.AllBounds(), 5+len(idx.root.children))
}

func TestIndexDebugInfo(t *testing.T) {
	idx, err := New[int](2, 4, WithName("debug_info_test"))
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		idx.Insert(i, unitBoxAt(float64(i), float64(i%7), 0))
	}

	info := idx.DebugInfo()
	require.Equal(t, "debug_info_test", info.Name)
	require.Equal(t, 50, info.EntryCount)
	require.Equal(t, idx.Height(), info.Height)
	require.Len(t, info.LevelNodes, idx.Height())
	require.Equal(t, 1, info.LevelNodes[idx.Height()-1])

	var nodes int
	for _, n := range info.LevelNodes {
		nodes += n
	}
	require.Equal(t, info.NodeCount, nodes)
}

func TestIndexDump(t *testing.T) {
	idx, err := New[int](2, 4)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		idx.Insert(i, unitBoxAt(float64(i), 0, 0))
	}

	var buf bytes.Buffer
	require.NoError(t, idx.Dump(&buf))

	var snapshot NodeSnapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &snapshot))
	require.Equal(t, idx.Height()-1, snapshot.Level)
	require.Equal(t, 12, countSnapshotEntries(snapshot))
}

func countSnapshotEntries(s NodeSnapshot) int {
	count := len(s.Entries)
	for _, c := range s.Children {
		count += countSnapshotEntries(c)
	}
	return count
}

func TestIndexValidateDetectsCorruption(t *testing.T) {
	idx, err := New[int](2, 4)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		idx.Insert(i, unitBoxAt(float64(i), 0, 0))
	}
	require.NoError(t, idx.Validate())

	idx.root.bounds = box(0, 0, 0, 1, 1, 1)
	err = idx.Validate()
	require.Error(t, err)
	require.Equal(t, ErrTypeInvariant, errors.Type(err))
}

func TestRandom(t *testing.T) {
	configs := [][2]int{{2, 4}, {2, 5}, {3, 6}, {3, 7}, {4, 8}, {2, 10}, {5, 10}}

	for _, c := range configs {
		minNodes, maxNodes := c[0], c[1]

		for _, population := range []int{0, 1, 5, 20, 75, 250} {
			name := fmt.Sprintf("min_%d_max_%d_pop_%d", minNodes, maxNodes, population)

			t.Run(name, func(t *testing.T) {
				rnd := rand.New(rand.NewSource(int64(population)))
				idx, err := New[int](minNodes, maxNodes)
				require.NoError(t, err)

				boxes := make(map[uint32]BoundingBox, population)
				values := make(map[uint32]int, population)
				for i := 0; i < population; i++ {
					b := randomBox(rnd, 0.9, 0.1)
					id := idx.Insert(i, b)
					require.NotContains(t, boxes, id)

					boxes[id] = b
					values[id] = i
					require.NoError(t, idx.Validate())
				}
				checkQueries(t, rnd, idx, boxes, values)

				for id, b := range boxes {
					v, ok := idx.Get(id, b)
					require.True(t, ok)
					require.Equal(t, values[id], v)
				}

				var removed int
				for id, b := range boxes {
					if removed >= population/2 {
						break
					}
					require.True(t, idx.Remove(id, b))
					require.NoError(t, idx.Validate())

					delete(boxes, id)
					delete(values, id)
					removed++
				}
				require.Equal(t, len(boxes), idx.Len())
				checkQueries(t, rnd, idx, boxes, values)

				for i := 0; i < population/4; i++ {
					b := randomBox(rnd, 0.9, 0.1)
					id := idx.Insert(population+i, b)
					require.NotContains(t, boxes, id)

					boxes[id] = b
					values[id] = population + i
					require.NoError(t, idx.Validate())
				}
				checkQueries(t, rnd, idx, boxes, values)
			})
		}
	}
}

// checkQueries compares index queries with a brute force scan.
func checkQueries(t *testing.T, rnd *rand.Rand, idx *Index[int], boxes map[uint32]BoundingBox, values map[uint32]int) {
	for i := 0; i < 10; i++ {
		q := randomBox(rnd, 0.5, 0.5)

		var want []int
		for id, b := range boxes {
			if b.Intersects(q) {
				want = append(want, values[id])
			}
		}

		got := idx.Query(q)
		sort.Ints(want)
		sort.Ints(got)
		require.Equal(t, want, got, "query: %v", q)
	}
}
