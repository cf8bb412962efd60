package intersection

// cycle walks a fixed list of phases forever.
type cycle struct {
	phases   []Phase
	position int
}

func newCycle(phases []Phase) *cycle {
	return &cycle{phases: phases}
}

func (c *cycle) Position() int {
	return c.position
}

func (c *cycle) Current() Phase {
	return c.phases[c.position]
}

func (c *cycle) Advance() {
	c.position = Advance(c.position)
}
