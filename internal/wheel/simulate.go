package wheel

import (
	"math"
	"sort"

	"github.com/xtding233/fairwheel/internal/pool"
)

// Stats summarizes integer samples.
type Stats struct {
	Mean   float64
	Var    float64
	StdDev float64
	Min    int
	Max    int
	P50    float64
	P90    float64
	P99    float64
	// Optional: raw samples if caller needs histograms/exports
	Samples []int `json:"-"`
}

// SimResult is the outcome of a fairness simulation.
type SimResult struct {
	Batches int
	Draws   int
	Wins    []int // per entry, pool order
	// Repeats counts within-batch repeats drawn while an entry that had
	// not yet won in that batch was still eligible. Always 0 unless the
	// selection is broken.
	Repeats int
	WinStats Stats
	Final    []pool.Entry // counters after the last batch
}

// calcStats computes mean/variance/percentiles for integer samples.
func calcStats(xs []int) Stats {
	n := len(xs)
	if n == 0 {
		return Stats{}
	}
	// mean
	var sum float64
	for _, v := range xs {
		sum += float64(v)
	}
	mean := sum / float64(n)

	// variance (population)
	var acc float64
	for _, v := range xs {
		d := float64(v) - mean
		acc += d * d
	}
	variance := acc / float64(n)

	// percentiles
	cp := append([]int(nil), xs...)
	sort.Ints(cp)
	percentile := func(p float64) float64 {
		if n == 1 || p <= 0 {
			return float64(cp[0])
		}
		if p >= 1 {
			return float64(cp[n-1])
		}
		pos := p * float64(n-1)
		i := int(math.Floor(pos))
		f := pos - float64(i)
		if i+1 >= n {
			return float64(cp[i])
		}
		return float64(cp[i])*(1-f) + float64(cp[i+1])*f
	}

	return Stats{
		Mean:    mean,
		Var:     variance,
		StdDev:  math.Sqrt(variance),
		Min:     cp[0],
		Max:     cp[n-1],
		P50:     percentile(0.50),
		P90:     percentile(0.90),
		P99:     percentile(0.99),
		Samples: xs,
	}
}

// Simulate runs batches of batchSize draws on a copy of p without any
// animation, using the same selection and commit rules as the Engine.
// It is meant to check fairness over long histories.
func Simulate(p *pool.Pool, batchSize, batches int, rng RandomSource) (SimResult, error) {
	if batchSize < 1 || batches < 0 {
		return SimResult{}, ErrInvalidInput
	}
	if p.Empty() {
		return SimResult{}, ErrEmptyPool
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	work := p.Clone()
	size := min(batchSize, work.Len())
	res := SimResult{Batches: batches, Wins: make([]int, work.Len())}

	for n := 0; n < batches; n++ {
		b := newBatch(size)
		for !b.IsComplete() {
			filtered, err := pick(work, b)
			if err != nil {
				return SimResult{}, err
			}
			winner, err := ChooseWinner(filtered, rng)
			if err != nil {
				return SimResult{}, err
			}
			if b.IsExcluded(winner) {
				for _, i := range work.EligibleIndices() {
					if !b.IsExcluded(i) {
						res.Repeats++
						break
					}
				}
			}
			commitTo(work, b, winner)
			res.Wins[winner]++
			res.Draws++
		}
	}
	res.WinStats = calcStats(res.Wins)
	res.Final = work.Entries()
	return res, nil
}
