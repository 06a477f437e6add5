package wheel

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/xtding233/fairwheel/internal/pool"
)

// Batch is one user-requested run of consecutive draws.
type Batch struct {
	ID       string
	Total    int   // draws requested, clamped to the pool size
	Drawn    int   // committed draws
	Selected []int // committed winners in draw order

	excluded map[int]bool
}

func newBatch(total int) *Batch {
	return &Batch{
		ID:       uuid.NewString(),
		Total:    total,
		excluded: make(map[int]bool),
	}
}

// IsComplete reports whether every requested draw was committed.
func (b *Batch) IsComplete() bool {
	return b.Drawn >= b.Total
}

// IsExcluded reports whether i was already drawn in this batch.
func (b *Batch) IsExcluded(i int) bool {
	return b.excluded[i]
}

func (b *Batch) exclude(i int) {
	b.excluded[i] = true
}

// record marks i as a committed winner.
func (b *Batch) record(i int) {
	if b.Drawn >= b.Total {
		panic(fmt.Sprintf("wheel: commit beyond batch size %d", b.Total))
	}
	b.Selected = append(b.Selected, i)
	b.exclude(i)
	b.Drawn++
}

// clone returns a copy safe to hand to readers.
func (b *Batch) clone() *Batch {
	c := *b
	c.Selected = append([]int(nil), b.Selected...)
	c.excluded = make(map[int]bool, len(b.excluded))
	for i := range b.excluded {
		c.excluded[i] = true
	}
	return &c
}

// commitTo applies a winner to the pool and the batch: one more draw for
// the winner, counters rebased to a zero minimum.
func commitTo(p *pool.Pool, b *Batch, i int) {
	p.Increment(i)
	p.Normalize()
	b.record(i)
}

// pick runs the fairness selection for the next draw of b.
func pick(p *pool.Pool, b *Batch) ([]int, error) {
	if p.Empty() {
		return nil, ErrEmptyPool
	}
	eligible := p.EligibleIndices()
	if len(eligible) == 0 {
		p.Normalize()
		eligible = p.EligibleIndices()
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligible
	}
	return Candidates(eligible, b.IsExcluded), nil
}
