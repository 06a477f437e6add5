package wheel

import "math"

// SpinPath is the precomputed sequence of scan stops for one draw. The last
// stop is always Winner.
type SpinPath struct {
	Stops  []int
	Winner int
}

// Candidates removes excluded indices from eligible. If nothing would be
// left, every eligible entry already won in this batch and repeats are
// allowed, so eligible is returned unchanged.
func Candidates(eligible []int, excluded func(int) bool) []int {
	var out []int
	for _, i := range eligible {
		if excluded == nil || !excluded(i) {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		return append([]int(nil), eligible...)
	}
	return out
}

// ChooseWinner picks uniformly from filtered.
func ChooseWinner(filtered []int, rng RandomSource) (int, error) {
	if len(filtered) == 0 {
		return 0, ErrNoEligible
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	return filtered[intn(rng, len(filtered))], nil
}

// RolloutLength is the minimum number of rollout steps for n candidates.
func RolloutLength(n int, factor float64) int {
	return max(1, int(math.Round(float64(n)*factor)))
}

// GenerateSpinPath chooses a winner among filtered and builds the path the
// animation walks before settling on it:
//   - rounds full passes over filtered, in order
//   - a rollout from a random start, stepping circularly until at least
//     RolloutLength steps were taken and the current stop is the winner
//
// The rollout gives up after rollout+2*len(filtered) steps and appends the
// winner, so the path is bounded by
// rounds*n + rollout + 2*n + 1.
func GenerateSpinPath(filtered []int, rounds int, rolloutFactor float64, rng RandomSource) (SpinPath, error) {
	if rng == nil {
		rng = DefaultRNG()
	}
	winner, err := ChooseWinner(filtered, rng)
	if err != nil {
		return SpinPath{}, err
	}
	n := len(filtered)
	rounds = max(rounds, 0)
	rollout := RolloutLength(n, rolloutFactor)
	maxSteps := rollout + 2*n

	stops := make([]int, 0, rounds*n+rollout+n)
	for r := 0; r < rounds; r++ {
		stops = append(stops, filtered...)
	}

	cur := intn(rng, n)
	for steps := 1; ; steps++ {
		idx := filtered[cur]
		stops = append(stops, idx)
		if steps >= rollout && idx == winner {
			break
		}
		if steps >= maxSteps {
			stops = append(stops, winner)
			break
		}
		cur = (cur + 1) % n
	}
	return SpinPath{Stops: stops, Winner: winner}, nil
}
