package stats

import (
	"errors"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrDegenerateWeights reports a categorical or Dirichlet draw whose
	// weights carry no probability mass.
	ErrDegenerateWeights = errors.New("stats: weights carry no probability mass")
	// ErrBadParameter reports a non-positive distribution parameter.
	ErrBadParameter = errors.New("stats: non-positive distribution parameter")
)

// RNG is one exclusively owned pseudo-random stream. Every draw advances
// the stream; a stream shared across chains must be externally
// synchronized.
type RNG struct {
	src  rand.Source
	rand *rand.Rand
}

// NewRNG returns a stream seeded deterministically.
func NewRNG(seed uint64) *RNG {
	src := rand.NewSource(seed)
	return &RNG{src: src, rand: rand.New(src)}
}

// Uniform01 draws from the open interval (0, 1).
func (r *RNG) Uniform01() float64 {
	for {
		v := r.rand.Float64()
		if v > 0 {
			return v
		}
	}
}

// Beta draws from Beta(a, b).
func (r *RNG) Beta(a, b float64) (float64, error) {
	if a <= 0 || b <= 0 {
		return 0, ErrBadParameter
	}
	return distuv.Beta{Alpha: a, Beta: b, Src: r.src}.Rand(), nil
}

// Dirichlet draws a probability vector with the given concentrations,
// via normalized Gamma draws. Components with zero concentration get
// zero weight instead of rejecting the whole draw.
func (r *RNG) Dirichlet(alpha []float64) ([]float64, error) {
	x := make([]float64, len(alpha))
	for i, a := range alpha {
		if a <= 0 {
			continue
		}
		x[i] = distuv.Gamma{Alpha: a, Beta: 1, Src: r.src}.Rand()
	}
	total := floats.Sum(x)
	if total <= 0 || math.IsNaN(total) {
		return nil, ErrDegenerateWeights
	}
	floats.Scale(1/total, x)
	return x, nil
}

// Likelihoods draws an index proportionally to unnormalized non-negative
// weights.
func (r *RNG) Likelihoods(weights []float64) (int, error) {
	total := floats.Sum(weights)
	if total <= 0 || math.IsNaN(total) {
		return 0, ErrDegenerateWeights
	}
	u := r.rand.Float64() * total
	sumScore := 0.0
	for i, w := range weights {
		sumScore += w
		if sumScore > u {
			return i, nil
		}
	}
	return len(weights) - 1, nil
}

// LogScores draws an index proportionally to exponentiated log-scores.
func (r *RNG) LogScores(scores []float64) (int, error) {
	norm := LogSumExp(scores)
	if math.IsInf(norm, -1) || math.IsNaN(norm) {
		return 0, ErrDegenerateWeights
	}
	u := r.rand.Float64()
	sumScore := 0.0
	for i, score := range scores {
		sumScore += math.Exp(score - norm)
		if sumScore > u {
			return i, nil
		}
	}
	return len(scores) - 1, nil
}

// LogSumExp returns log of the sum of the exponentiated scores.
func LogSumExp(scores []float64) float64 {
	maxScore := math.Inf(-1)
	for _, score := range scores {
		maxScore = math.Max(score, maxScore)
	}
	if math.IsInf(maxScore, -1) {
		return maxScore
	}
	sumScore := 0.0
	for _, score := range scores {
		sumScore += math.Exp(score - maxScore)
	}
	return math.Log(sumScore) + maxScore
}
