package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSampler(s *Sampler, frames int) []int {
	var kept []int
	for i := 0; i < frames; i++ {
		if s.Keep() {
			kept = append(kept, i)
		}
	}
	return kept
}

func TestSamplerDecimates(t *testing.T) {
	s := NewSampler(30, 10)
	kept := runSampler(s, 31)
	assert.Equal(t, 10.0, s.Effective())

	// the first frame is always kept, then one frame per tenth of a second
	require.NotEmpty(t, kept)
	assert.Equal(t, 0, kept[0])
	assert.Len(t, kept, 11)

	// steady state: consecutive kept frames are three apart
	for i := 2; i < len(kept); i++ {
		assert.Equal(t, 3, kept[i]-kept[i-1])
	}
}

func TestSamplerNativeRateKeepsAll(t *testing.T) {
	s := NewSampler(25, 25)
	kept := runSampler(s, 50)
	assert.Len(t, kept, 50)
}

func TestSamplerClampsTarget(t *testing.T) {
	over := NewSampler(24, 60)
	assert.Equal(t, 24.0, over.Effective())
	assert.Len(t, runSampler(over, 24), 24)

	zero := NewSampler(24, 0)
	assert.Equal(t, 24.0, zero.Effective())
}

func TestSamplerFractionalRate(t *testing.T) {
	s := NewSampler(29.97, 10)
	kept := runSampler(s, 300)
	// ten seconds of 29.97fps video at 10fps yields one frame per tenth
	// of a second, within one frame of rounding
	assert.InDelta(t, 100, len(kept), 1)
}
