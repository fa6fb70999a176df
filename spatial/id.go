package spatial

// A sequential id generator.
type idGenerator struct {
	currentID   uint32
	reusableIDs []uint32
}

// New returns a sequential id. Ids given back with Reuse are returned first,
// most recent first.
func (g *idGenerator) New() uint32 {
	if n := len(g.reusableIDs); n != 0 {
		id := g.reusableIDs[n-1]
		g.reusableIDs = g.reusableIDs[:n-1]
		return id
	}

	g.currentID++
	return g.currentID
}

// Reuse marks the given id as reusable.
func (g *idGenerator) Reuse(id uint32) {
	g.reusableIDs = append(g.reusableIDs, id)
}
