package sim

// Pair is an unordered pair of entity ids in declaration order.
type Pair [2]string

// matches reports whether p joins a and b in either orientation.
func (p Pair) matches(a, b string) bool {
	return (p[0] == a && p[1] == b) || (p[0] == b && p[1] == a)
}

// EntanglementGraph is the set of declared entity pairings. Pairs whose
// referents no longer exist stay in place and are skipped on resolution.
type EntanglementGraph struct {
	pairs []Pair
}

// NewEntanglementGraph creates an empty graph.
func NewEntanglementGraph() *EntanglementGraph {
	return &EntanglementGraph{}
}

// add records a pair unless it is a self-pair or already present.
// Ids are not checked against any store.
func (g *EntanglementGraph) add(a, b string) bool {
	if a == b {
		return false
	}
	for _, p := range g.pairs {
		if p.matches(a, b) {
			return false
		}
	}
	g.pairs = append(g.pairs, Pair{a, b})
	return true
}

// Len returns the number of declared pairs, stale ones included.
func (g *EntanglementGraph) Len() int {
	return len(g.pairs)
}

// IDs returns a copy of the declared pairs.
func (g *EntanglementGraph) IDs() []Pair {
	out := make([]Pair, len(g.pairs))
	copy(out, g.pairs)
	return out
}

// resolve returns the live entity pairs in declaration order.
func (g *EntanglementGraph) resolve(lookup func(string) *Entity) [][2]*Entity {
	out := make([][2]*Entity, 0, len(g.pairs))
	for _, p := range g.pairs {
		a, b := lookup(p[0]), lookup(p[1])
		if a == nil || b == nil {
			continue
		}
		out = append(out, [2]*Entity{a, b})
	}
	return out
}

func (g *EntanglementGraph) clear() {
	g.pairs = nil
}
