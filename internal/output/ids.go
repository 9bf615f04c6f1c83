package output

// IDGenerator hands out 0, 1, 2, ... for image file names.
type IDGenerator struct {
	next int
}

func (g *IDGenerator) Next() int {
	id := g.next
	g.next++
	return id
}

func (g *IDGenerator) Reset() {
	g.next = 0
}
