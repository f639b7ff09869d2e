// Package hdphmm implements the beam sampler for the hierarchical
// Dirichlet process hidden Markov model (van Gael et al., 2008).
package hdphmm

import (
	"errors"
	"fmt"
	"math"

	log "github.com/golang/glog"
	"gonum.org/v1/gonum/floats"

	"github.com/mrG7/hmm/ragged"
	"github.com/mrG7/hmm/stats"
)

// maxBeamExpansions bounds state instantiation within one sweep, so a
// malformed slice variable cannot spin the stick-breaking loop forever.
const maxBeamExpansions = 1 << 16

// Sampler holds one posterior sample of the HDP-HMM and advances it in
// place, one Gibbs sweep at a time. It owns its random stream; two
// chains must not share one Sampler or one RNG without external
// synchronization.
type Sampler struct {
	data   *ragged.IntMatrix   // observation symbols, immutable
	states *ragged.IntMatrix   // hidden state at every time step
	slice  *ragged.FloatMatrix // slice variables truncating the transition matrix

	counts *ragged.IntMatrix   // K x K transition counts
	aux    *ragged.IntMatrix   // K x K auxiliary counts for the stick weights
	pi     *ragged.FloatMatrix // K x K+1 transition probabilities; last column is reserved mass

	beta     []float64 // K+1 top-level stick weights; last entry is residual mass
	emission EmissionModel

	gamma  float64 // top-level DP concentration
	alpha0 float64 // per-state DP concentration

	maxPi float64 // largest reserved transition mass across rows
	k     int     // number of instantiated states; never shrinks

	logStirling map[int][]float64 // transition count -> log-Stirling row
	rng         *stats.RNG
}

// NewSampler builds a sampler with the default categorical emission
// model over len(prior) symbols, validating the corpus against that
// alphabet.
func NewSampler(gamma, alpha0 float64, prior []float64, data *ragged.IntMatrix, rng *stats.RNG) (*Sampler, error) {
	if rng == nil {
		return nil, fmt.Errorf("hdphmm: nil random stream")
	}
	emission, err := NewCategorical(prior, rng)
	if err != nil {
		return nil, err
	}
	if err := ValidateSeries(data, emission.Symbols()); err != nil {
		return nil, err
	}
	return NewSamplerWithEmission(gamma, alpha0, emission, data, rng)
}

// NewSamplerWithEmission builds a sampler around a caller-supplied
// emission model, which must already hold parameters for exactly one
// state. The caller is responsible for checking the corpus against the
// model's observation alphabet.
func NewSamplerWithEmission(gamma, alpha0 float64, emission EmissionModel, data *ragged.IntMatrix, rng *stats.RNG) (*Sampler, error) {
	if gamma <= 0 {
		return nil, fmt.Errorf("hdphmm: gamma = %v, want > 0", gamma)
	}
	if alpha0 <= 0 {
		return nil, fmt.Errorf("hdphmm: alpha0 = %v, want > 0", alpha0)
	}
	if rng == nil {
		return nil, fmt.Errorf("hdphmm: nil random stream")
	}
	if data == nil {
		return nil, fmt.Errorf("hdphmm: nil observation data")
	}
	if emission == nil || emission.States() != 1 {
		return nil, fmt.Errorf("hdphmm: emission model must hold exactly one state at construction")
	}

	s := &Sampler{
		data:        data,
		states:      ragged.NewIntMatrixSizes(data.Sizes()),
		slice:       ragged.NewFloatMatrixSizes(data.Sizes()),
		counts:      ragged.NewIntMatrixShape(1, 1),
		aux:         ragged.NewIntMatrixShape(1, 1),
		pi:          ragged.NewFloatMatrix(),
		emission:    emission,
		gamma:       gamma,
		alpha0:      alpha0,
		k:           1,
		logStirling: make(map[int][]float64),
		rng:         rng,
	}

	// one stick break seeds the top-level weights; the single
	// transition row comes from its prior
	b, err := rng.Beta(1, gamma)
	if err != nil {
		return nil, err
	}
	s.beta = []float64{b, 1 - b}
	row, err := rng.Dirichlet([]float64{alpha0 * s.beta[0], alpha0 * s.beta[1]})
	if err != nil {
		return nil, fmt.Errorf("hdphmm: initial transition row: %w", err)
	}
	s.pi.Append(row)
	s.maxPi = row[1]
	return s, nil
}

// Sweep performs one full Gibbs sweep: slice variables (growing the
// beam as needed), hidden states, transition rows, emission parameters
// and stick weights, strictly in that order. The sample is mutated in
// place and the state count can only grow. An error is fatal to the
// chain step; recovery is the driver's concern.
func (s *Sampler) Sweep() error {
	if err := s.sampleSlices(); err != nil {
		return err
	}
	if err := s.sampleStates(); err != nil {
		return err
	}
	if err := s.sampleTransitions(); err != nil {
		return err
	}
	if err := s.emission.Resample(s.data, s.states, s.k, s.rng); err != nil {
		return err
	}
	if err := s.sampleSticks(); err != nil {
		return err
	}
	log.V(1).Infof("sweep done, %d states", s.k)
	return nil
}

// sampleSlices redraws every slice variable and instantiates states
// until the largest reserved transition mass is below the smallest
// slice variable in use, so every state the beam can reach exists.
func (s *Sampler) sampleSlices() error {
	minU := 1.0
	for i := 0; i < s.data.Rows(); i++ {
		st := s.states.Row(i)
		u := s.slice.Row(i)
		prev := 0
		for t := range u {
			if t > 0 {
				prev = st[t-1]
			}
			u[t] = s.rng.Uniform01() / s.pi.Row(prev)[st[t]]
			if u[t] < minU {
				minU = u[t]
			}
		}
	}

	for expanded := 0; s.maxPi > minU; expanded++ {
		if expanded >= maxBeamExpansions {
			return fmt.Errorf("hdphmm: beam expansion instantiated %d states in one sweep (min slice %v)", maxBeamExpansions, minU)
		}
		if err := s.addState(); err != nil {
			return err
		}
	}
	return nil
}

// addState instantiates state K: a fresh transition row from its prior,
// one more stick break for the top-level weights, and a split of every
// row's reserved mass between the new state and the remaining unseen
// ones.
func (s *Sampler) addState() error {
	k := s.k
	alphas := make([]float64, k+1)
	for j := 0; j <= k; j++ {
		alphas[j] = s.alpha0 * s.beta[j]
	}
	row, err := s.rng.Dirichlet(alphas)
	if err != nil {
		return fmt.Errorf("hdphmm: transition row for state %d: %w", k, err)
	}
	s.pi.Append(row)

	bu := s.beta[k]
	bk, err := s.rng.Beta(1, s.gamma)
	if err != nil {
		return err
	}
	s.beta[k] = bu * bk
	s.beta = append(s.beta, bu*(1-bk))

	s.maxPi = 0
	for i := 0; i <= k; i++ {
		pu := s.pi.Row(i)[k]
		pk, err := s.rng.Beta(s.alpha0*s.beta[k], s.alpha0*s.beta[k+1])
		if err != nil {
			return fmt.Errorf("hdphmm: reserved mass split at state %d: %w", k, err)
		}
		s.pi.Row(i)[k] = pu * pk
		s.pi.Push(i, pu*(1-pk))
		s.maxPi = math.Max(s.maxPi, s.pi.Row(i)[k])
		s.maxPi = math.Max(s.maxPi, s.pi.Row(i)[k+1])
	}

	if err := s.emission.AddState(s.rng); err != nil {
		return err
	}
	s.k++
	log.V(2).Infof("instantiated state %d, max reserved mass %f", k, s.maxPi)
	return nil
}

// sampleStates redraws every hidden state sequence by
// forward-filter/backward-sample over the beam-truncated transition
// matrix, then rebuilds the transition counts from scratch.
func (s *Sampler) sampleStates() error {
	for i := 0; i < s.data.Rows(); i++ {
		if err := s.sampleSeries(i); err != nil {
			return err
		}
	}
	s.rebuildCounts()
	return nil
}

func (s *Sampler) sampleSeries(i int) error {
	obs := s.data.Row(i)
	u := s.slice.Row(i)
	n := len(obs)
	if n == 0 {
		return nil
	}

	// forward filter; the implicit start state is state 0
	probs := ragged.NewFloatMatrixShape(n, s.k)
	for t := 0; t < n; t++ {
		row := probs.Row(t)
		for k := 0; k < s.k; k++ {
			if t == 0 {
				if u[t] < s.pi.Row(0)[k] {
					row[k] = s.emission.Prob(k, obs[t])
				}
				continue
			}
			acc := 0.0
			prev := probs.Row(t - 1)
			for l := 0; l < s.k; l++ {
				if u[t] < s.pi.Row(l)[k] {
					acc += prev[l]
				}
			}
			row[k] = acc * s.emission.Prob(k, obs[t])
		}
		total := floats.Sum(row)
		if math.IsNaN(total) {
			return fmt.Errorf("hdphmm: forward probability is NaN at series %d step %d", i, t)
		}
		if total <= 0 {
			// the beam excluded every candidate; continue from a
			// uniform step instead of propagating 0/0
			log.Warningf("forward pass degenerate at series %d step %d, falling back to uniform", i, t)
			for k := range row {
				row[k] = 1 / float64(s.k)
			}
			continue
		}
		// normalize each step to control underflow over long series
		floats.Scale(1/total, row)
	}

	// backward sample
	st := s.states.Row(i)
	last, err := s.rng.Likelihoods(probs.Row(n - 1))
	if err != nil {
		return fmt.Errorf("hdphmm: backward sample at series %d step %d: %w", i, n-1, err)
	}
	st[n-1] = last
	restore := make([]float64, s.k)
	for t := n - 1; t > 0; t-- {
		row := probs.Row(t - 1)
		copy(restore, row)
		for k := 0; k < s.k; k++ {
			if u[t] >= s.pi.Row(k)[st[t]] {
				row[k] = 0
			}
		}
		idx, err := s.rng.Likelihoods(row)
		if errors.Is(err, stats.ErrDegenerateWeights) {
			// every predecessor of the sampled successor is
			// beam-excluded; fall back to the unrestricted filter
			log.Warningf("backward pass degenerate at series %d step %d, ignoring beam restriction", i, t-1)
			idx, err = s.rng.Likelihoods(restore)
		}
		if err != nil {
			return fmt.Errorf("hdphmm: backward sample at series %d step %d: %w", i, t-1, err)
		}
		st[t-1] = idx
	}
	return nil
}

// rebuildCounts recomputes the transition count table from the freshly
// sampled state sequences.
func (s *Sampler) rebuildCounts() {
	s.counts = ragged.NewIntMatrixShape(s.k, s.k)
	for i := 0; i < s.states.Rows(); i++ {
		st := s.states.Row(i)
		for t := 1; t < len(st); t++ {
			s.counts.Row(st[t-1])[st[t]]++
		}
	}
}

// sampleTransitions redraws every transition row from its Dirichlet
// posterior and refreshes the reserved-mass maximum that the next
// sweep's truncation check reads.
func (s *Sampler) sampleTransitions() error {
	s.maxPi = 0
	for i := 0; i < s.k; i++ {
		if err := s.sampleTransitionRow(i); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sampler) sampleTransitionRow(i int) error {
	alphas := make([]float64, s.k+1)
	counts := s.counts.Row(i)
	for j := 0; j < s.k; j++ {
		alphas[j] = float64(counts[j]) + s.alpha0*s.beta[j]
	}
	alphas[s.k] = s.alpha0 * s.beta[s.k]
	row, err := s.rng.Dirichlet(alphas)
	if err != nil {
		return fmt.Errorf("hdphmm: transition row %d: %w", i, err)
	}
	copy(s.pi.Row(i), row)
	if row[s.k] > s.maxPi {
		s.maxPi = row[s.k]
	}
	return nil
}

// sampleAuxCounts redraws the auxiliary counts the HDP needs before the
// stick weights can be resampled from transition counts. Rows of
// log-Stirling numbers are memoized per observed count.
func (s *Sampler) sampleAuxCounts() error {
	s.aux = ragged.NewIntMatrixShape(s.k, s.k)
	for i := 0; i < s.k; i++ {
		for j := 0; j < s.k; j++ {
			n := s.counts.Row(i)[j]
			if n == 0 {
				continue
			}
			stRow, ok := s.logStirling[n]
			if !ok {
				stRow = stats.LogStirlingRow(n)
				s.logStirling[n] = stRow
			}
			logW := math.Log(s.alpha0) + math.Log(s.beta[j])
			scores := make([]float64, n)
			for m := 1; m <= n; m++ {
				scores[m-1] = stRow[m] + float64(m)*logW
			}
			idx, err := s.rng.LogScores(scores)
			if err != nil {
				return fmt.Errorf("hdphmm: auxiliary count (%d,%d): %w", i, j, err)
			}
			s.aux.Row(i)[j] = idx + 1
		}
	}
	return nil
}

// sampleSticks redraws the top-level stick weights from the column sums
// of the auxiliary counts, plus gamma for the unseen-state residual.
func (s *Sampler) sampleSticks() error {
	if err := s.sampleAuxCounts(); err != nil {
		return err
	}
	alphas := make([]float64, s.k+1)
	for i := 0; i < s.k; i++ {
		row := s.aux.Row(i)
		for j := 0; j < s.k; j++ {
			alphas[j] += float64(row[j])
		}
	}
	alphas[s.k] = s.gamma
	beta, err := s.rng.Dirichlet(alphas)
	if err != nil {
		return fmt.Errorf("hdphmm: stick weights: %w", err)
	}
	s.beta = beta
	return nil
}

// LogLikelihood returns the joint log-likelihood of the corpus under
// the current sample (transition and emission terms; the implicit
// start state is state 0).
func (s *Sampler) LogLikelihood() float64 {
	ll := 0.0
	for i := 0; i < s.data.Rows(); i++ {
		obs := s.data.Row(i)
		st := s.states.Row(i)
		prev := 0
		for t := range obs {
			if t > 0 {
				prev = st[t-1]
			}
			ll += math.Log(s.pi.Row(prev)[st[t]])
			ll += math.Log(s.emission.Prob(st[t], obs[t]))
		}
	}
	return ll
}

// K returns the number of instantiated states.
func (s *Sampler) K() int {
	return s.k
}

// StickWeights returns the K+1 top-level stick weights; the last entry
// is the residual mass for unseen states.
func (s *Sampler) StickWeights() []float64 {
	return s.beta
}

// TransitionProbs returns the K x K+1 transition probability table.
func (s *Sampler) TransitionProbs() *ragged.FloatMatrix {
	return s.pi
}

// TransitionCounts returns the K x K transition count table.
func (s *Sampler) TransitionCounts() *ragged.IntMatrix {
	return s.counts
}

// AuxCounts returns the K x K auxiliary count table.
func (s *Sampler) AuxCounts() *ragged.IntMatrix {
	return s.aux
}

// HiddenStates returns the sampled state sequences, shaped like the
// observation data.
func (s *Sampler) HiddenStates() *ragged.IntMatrix {
	return s.states
}

// SliceVars returns the slice variables, shaped like the observation
// data.
func (s *Sampler) SliceVars() *ragged.FloatMatrix {
	return s.slice
}

// Emission returns the sampler's emission model.
func (s *Sampler) Emission() EmissionModel {
	return s.emission
}
