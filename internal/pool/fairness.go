package pool

// MinCounter returns the lowest counter in the pool; ok is false when empty.
func (p *Pool) MinCounter() (lowest int, ok bool) {
	if p.Empty() {
		return 0, false
	}
	lowest = p.entries[0].Counter
	for _, e := range p.entries[1:] {
		if e.Counter < lowest {
			lowest = e.Counter
		}
	}
	return lowest, true
}

// EligibleIndices returns every index whose counter equals the pool-wide
// minimum, in pool order. An empty pool yields nil.
//
// There is no tie-break among the result: callers choose uniformly at
// random, so every least-drawn entry has the same chance.
func (p *Pool) EligibleIndices() []int {
	lowest, ok := p.MinCounter()
	if !ok {
		return nil
	}
	var out []int
	for i, e := range p.entries {
		if e.Counter == lowest {
			out = append(out, i)
		}
	}
	return out
}

// Normalize subtracts the minimum counter from every entry so the lowest
// counter is 0. Relative order is preserved and a second call is a no-op.
func (p *Pool) Normalize() {
	lowest, ok := p.MinCounter()
	if !ok || lowest == 0 {
		return
	}
	for i := range p.entries {
		p.entries[i].Counter -= lowest
	}
}
