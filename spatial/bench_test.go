package spatial

import (
	"math/rand"
	"testing"

	"github.com/dhconnelly/rtreego"
)

type rtreegoItem struct {
	rect rtreego.Rect
}

func (i *rtreegoItem) Bounds() rtreego.Rect {
	return i.rect
}

func toRtreegoRect(b BoundingBox) rtreego.Rect {
	s := b.Size()
	rect, err := rtreego.NewRect(rtreego.Point{b.Min.X, b.Min.Y, b.Min.Z}, []float64{s.X, s.Y, s.Z})
	if err != nil {
		panic(err)
	}
	return rect
}

func benchmarkBoxes(n int) []BoundingBox {
	rnd := rand.New(rand.NewSource(0))
	boxes := make([]BoundingBox, n)
	for i := range boxes {
		boxes[i] = randomBox(rnd, 100, 1)
	}
	return boxes
}

func BenchmarkInsert(b *testing.B) {
	boxes := benchmarkBoxes(10000)

	b.Run("rstar", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			idx := NewDefault[int](WithName("benchmark"))
			for j, bb := range boxes {
				idx.Insert(j, bb)
			}
		}
	})

	b.Run("rtreego", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			tree := rtreego.NewTree(3, DefaultMinNodes, DefaultMaxNodes)
			for _, bb := range boxes {
				tree.Insert(&rtreegoItem{rect: toRtreegoRect(bb)})
			}
		}
	})
}

func BenchmarkQuery(b *testing.B) {
	boxes := benchmarkBoxes(10000)
	queries := benchmarkBoxes(1000)

	idx := NewDefault[int](WithName("benchmark"))
	tree := rtreego.NewTree(3, DefaultMinNodes, DefaultMaxNodes)
	for i, bb := range boxes {
		idx.Insert(i, bb)
		tree.Insert(&rtreegoItem{rect: toRtreegoRect(bb)})
	}

	b.Run("rstar", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			idx.Query(queries[i%len(queries)])
		}
	})

	b.Run("rtreego", func(b *testing.B) {
		rects := make([]rtreego.Rect, len(queries))
		for i, q := range queries {
			rects[i] = toRtreegoRect(q)
		}
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			tree.SearchIntersect(rects[i%len(rects)])
		}
	})
}

func BenchmarkRemove(b *testing.B) {
	boxes := benchmarkBoxes(2000)

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		idx := NewDefault[int](WithName("benchmark"))
		ids := make([]uint32, len(boxes))
		for j, bb := range boxes {
			ids[j] = idx.Insert(j, bb)
		}
		b.StartTimer()

		for j, id := range ids {
			idx.Remove(id, boxes[j])
		}
	}
}
