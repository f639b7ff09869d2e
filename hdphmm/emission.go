package hdphmm

import (
	"fmt"

	"github.com/mrG7/hmm/ragged"
	"github.com/mrG7/hmm/stats"
)

// EmissionModel is the per-state observation model plugged into the
// beam sampler. Implementations own one parameter row per instantiated
// state and resample those rows from their posterior during a sweep.
type EmissionModel interface {
	// Prob returns the likelihood of symbol under state k.
	Prob(k, symbol int) float64
	// Resample redraws every state's parameters from the posterior
	// given the current state assignment.
	Resample(data, states *ragged.IntMatrix, k int, rng *stats.RNG) error
	// AddState appends parameters for a newly instantiated state, drawn
	// from the prior.
	AddState(rng *stats.RNG) error
	// States returns the number of states with instantiated parameters.
	States() int
}

// Categorical is the default emission model: each state emits one of N
// discrete symbols from its own categorical distribution under a shared
// Dirichlet prior.
type Categorical struct {
	prior []float64           // Dirichlet prior over the N symbols
	phi   *ragged.FloatMatrix // K x N emission probabilities
}

// NewCategorical returns a categorical emission model over
// len(prior) symbols with parameters for one state drawn from the
// prior.
func NewCategorical(prior []float64, rng *stats.RNG) (*Categorical, error) {
	if len(prior) == 0 {
		return nil, fmt.Errorf("hdphmm: empty emission prior")
	}
	for i, h := range prior {
		if h <= 0 {
			return nil, fmt.Errorf("hdphmm: emission prior[%d] = %v, want > 0", i, h)
		}
	}
	c := &Categorical{
		prior: append([]float64(nil), prior...),
		phi:   ragged.NewFloatMatrix(),
	}
	if err := c.AddState(rng); err != nil {
		return nil, err
	}
	return c, nil
}

// Symbols returns the size of the observation alphabet.
func (c *Categorical) Symbols() int {
	return len(c.prior)
}

// States returns the number of states with instantiated parameters.
func (c *Categorical) States() int {
	return c.phi.Rows()
}

// Prob returns the probability of symbol under state k.
func (c *Categorical) Prob(k, symbol int) float64 {
	return c.phi.Row(k)[symbol]
}

// AddState draws a fresh emission row from the prior.
func (c *Categorical) AddState(rng *stats.RNG) error {
	row, err := rng.Dirichlet(c.prior)
	if err != nil {
		return fmt.Errorf("hdphmm: emission prior draw: %w", err)
	}
	c.phi.Append(row)
	return nil
}

// Resample redraws every state's emission row from the Dirichlet
// posterior combining the prior with the symbol counts assigned to that
// state.
func (c *Categorical) Resample(data, states *ragged.IntMatrix, k int, rng *stats.RNG) error {
	counts := ragged.NewIntMatrixShape(k, len(c.prior))
	for i := 0; i < data.Rows(); i++ {
		obs := data.Row(i)
		st := states.Row(i)
		for t := range obs {
			counts.Row(st[t])[obs[t]]++
		}
	}
	for s := 0; s < k; s++ {
		alphas := make([]float64, len(c.prior))
		for v := range alphas {
			alphas[v] = c.prior[v] + float64(counts.Row(s)[v])
		}
		row, err := rng.Dirichlet(alphas)
		if err != nil {
			return fmt.Errorf("hdphmm: emission row %d: %w", s, err)
		}
		copy(c.phi.Row(s), row)
	}
	return nil
}

// Probs returns the K x N emission probability table.
func (c *Categorical) Probs() *ragged.FloatMatrix {
	return c.phi
}
