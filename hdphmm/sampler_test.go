package hdphmm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrG7/hmm/ragged"
	"github.com/mrG7/hmm/stats"
)

func newTestCorpus() *ragged.IntMatrix {
	data := ragged.NewIntMatrix()
	data.Append([]int{0, 1, 0})
	data.Append([]int{1, 0, 1})
	return data
}

func uniformPrior(n int) []float64 {
	prior := make([]float64, n)
	for i := range prior {
		prior[i] = 1.0
	}
	return prior
}

func assertSimplex(t *testing.T, v []float64, size int) {
	t.Helper()
	assert.Len(t, v, size)
	sum := 0.0
	for _, p := range v {
		assert.False(t, math.IsNaN(p))
		assert.GreaterOrEqual(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestNewSamplerValidation(t *testing.T) {
	data := newTestCorpus()
	rng := stats.NewRNG(1)

	_, err := NewSampler(0.0, 1.0, uniformPrior(2), data, rng)
	assert.Error(t, err)
	_, err = NewSampler(1.0, -1.0, uniformPrior(2), data, rng)
	assert.Error(t, err)
	_, err = NewSampler(1.0, 1.0, nil, data, rng)
	assert.Error(t, err)
	_, err = NewSampler(1.0, 1.0, []float64{1.0, 0.0}, data, rng)
	assert.Error(t, err)
	_, err = NewSampler(1.0, 1.0, uniformPrior(2), data, nil)
	assert.Error(t, err)
	_, err = NewSampler(1.0, 1.0, uniformPrior(2), nil, rng)
	assert.Error(t, err)

	// symbol 2 is outside the 2-symbol alphabet
	bad := ragged.NewIntMatrix()
	bad.Append([]int{0, 2})
	_, err = NewSampler(1.0, 1.0, uniformPrior(2), bad, rng)
	assert.Error(t, err)

	s, err := NewSampler(1.0, 1.0, uniformPrior(2), data, rng)
	assert.NoError(t, err)
	assert.Equal(t, 1, s.K())
	assertSimplex(t, s.StickWeights(), 2)
	assertSimplex(t, s.TransitionProbs().Row(0), 2)
}

func TestSweepKeepsSampleValid(t *testing.T) {
	data := newTestCorpus()
	s, err := NewSampler(1.0, 1.0, uniformPrior(2), data, stats.NewRNG(42))
	if err != nil {
		t.Fatal(err)
	}

	prevK := s.K()
	for sweep := 0; sweep < 1000; sweep++ {
		if err := s.Sweep(); err != nil {
			t.Fatalf("sweep %d: %v", sweep, err)
		}
		k := s.K()
		assert.GreaterOrEqual(t, k, prevK, "sweep %d", sweep)
		prevK = k

		assertSimplex(t, s.StickWeights(), k+1)
		pi := s.TransitionProbs()
		assert.Equal(t, k, pi.Rows())
		for i := 0; i < k; i++ {
			assertSimplex(t, pi.Row(i), k+1)
		}

		states := s.HiddenStates()
		for i := 0; i < states.Rows(); i++ {
			for _, st := range states.Row(i) {
				assert.GreaterOrEqual(t, st, 0)
				assert.Less(t, st, k)
			}
		}

		counts := s.TransitionCounts()
		aux := s.AuxCounts()
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				n := counts.Row(i)[j]
				m := aux.Row(i)[j]
				if n == 0 {
					assert.Equal(t, 0, m, "sweep %d cell (%d,%d)", sweep, i, j)
				} else {
					assert.GreaterOrEqual(t, m, 1, "sweep %d cell (%d,%d)", sweep, i, j)
					assert.LessOrEqual(t, m, n, "sweep %d cell (%d,%d)", sweep, i, j)
				}
			}
		}
	}
}

func TestCountsMatchSampledSequences(t *testing.T) {
	data := newTestCorpus()
	s, err := NewSampler(1.0, 1.0, uniformPrior(2), data, stats.NewRNG(7))
	if err != nil {
		t.Fatal(err)
	}

	for sweep := 0; sweep < 20; sweep++ {
		if err := s.Sweep(); err != nil {
			t.Fatal(err)
		}
		want := ragged.NewIntMatrixShape(s.K(), s.K())
		states := s.HiddenStates()
		for i := 0; i < states.Rows(); i++ {
			st := states.Row(i)
			for j := 1; j < len(st); j++ {
				want.Row(st[j-1])[st[j]]++
			}
		}
		counts := s.TransitionCounts()
		for i := 0; i < s.K(); i++ {
			assert.Equal(t, want.Row(i), counts.Row(i), "row %d", i)
		}
	}
}

func TestBeamExpansionTerminates(t *testing.T) {
	data := newTestCorpus()
	s, err := NewSampler(1.0, 1.0, uniformPrior(2), data, stats.NewRNG(3))
	if err != nil {
		t.Fatal(err)
	}

	prevK := s.K()
	for i := 0; i < 100; i++ {
		if err := s.sampleSlices(); err != nil {
			t.Fatalf("slice resampling %d: %v", i, err)
		}

		minU := math.Inf(1)
		for r := 0; r < s.slice.Rows(); r++ {
			for _, u := range s.slice.Row(r) {
				minU = math.Min(minU, u)
			}
		}
		assert.Greater(t, minU, 0.0)
		assert.LessOrEqual(t, s.maxPi, minU, "iteration %d", i)
		assert.GreaterOrEqual(t, s.K(), prevK)
		prevK = s.K()
	}
}

func TestSingleSymbolSingleStepSeries(t *testing.T) {
	data := ragged.NewIntMatrix()
	data.Append([]int{0})
	s, err := NewSampler(1.0, 1.0, uniformPrior(1), data, stats.NewRNG(13))
	if err != nil {
		t.Fatal(err)
	}

	for sweep := 0; sweep < 50; sweep++ {
		if err := s.Sweep(); err != nil {
			t.Fatalf("sweep %d: %v", sweep, err)
		}
		assert.GreaterOrEqual(t, s.K(), 1)
		st := s.HiddenStates().Row(0)[0]
		assert.GreaterOrEqual(t, st, 0)
		assert.Less(t, st, s.K())
		if s.K() == 1 {
			assert.Equal(t, 0, st)
		}
		// a length-1 series has no transitions
		for i := 0; i < s.K(); i++ {
			assert.Equal(t, 0, s.TransitionCounts().RowSum(i))
		}
	}
}

func TestEmptySeriesAreSkipped(t *testing.T) {
	data := ragged.NewIntMatrix()
	data.Append([]int{})
	data.Append([]int{0, 0, 1})
	s, err := NewSampler(1.0, 1.0, uniformPrior(2), data, stats.NewRNG(21))
	if err != nil {
		t.Fatal(err)
	}

	for sweep := 0; sweep < 10; sweep++ {
		assert.NoError(t, s.Sweep())
	}
	assert.Empty(t, s.HiddenStates().Row(0))
}

func TestSeededSweepsReproduce(t *testing.T) {
	a, err := NewSampler(1.0, 1.0, uniformPrior(2), newTestCorpus(), stats.NewRNG(99))
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSampler(1.0, 1.0, uniformPrior(2), newTestCorpus(), stats.NewRNG(99))
	if err != nil {
		t.Fatal(err)
	}

	for sweep := 0; sweep < 25; sweep++ {
		assert.NoError(t, a.Sweep())
		assert.NoError(t, b.Sweep())
		assert.Equal(t, a.K(), b.K())
		assert.Equal(t, a.StickWeights(), b.StickWeights())
		for i := 0; i < a.HiddenStates().Rows(); i++ {
			assert.Equal(t, a.HiddenStates().Row(i), b.HiddenStates().Row(i))
		}
	}
}

func TestLogLikelihood(t *testing.T) {
	s, err := NewSampler(1.0, 1.0, uniformPrior(2), newTestCorpus(), stats.NewRNG(5))
	if err != nil {
		t.Fatal(err)
	}
	for sweep := 0; sweep < 10; sweep++ {
		if err := s.Sweep(); err != nil {
			t.Fatal(err)
		}
		ll := s.LogLikelihood()
		assert.False(t, math.IsNaN(ll))
		assert.Less(t, ll, 0.0)
	}
}
