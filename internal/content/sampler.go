package content

// Sampler decimates a native-fps frame stream down to a target rate while
// keeping frames evenly spaced.  A frame is kept when the accumulated
// target-rate credit has caught up with the count already kept, so the
// first frame is always kept and a 30fps stream sampled at 10fps keeps
// every third frame starting from frame 0.
type Sampler struct {
	native   float64
	target   float64
	consumed float64
	kept     int
}

// NewSampler builds a sampler for a stream at native fps and a requested
// target fps.  A non-positive or over-native target clamps to native.
func NewSampler(native, target float64) *Sampler {
	if native <= 0 {
		native = 1
	}
	if target <= 0 || target > native {
		target = native
	}
	return &Sampler{native: native, target: target}
}

// Keep advances the sampler by one frame and reports whether that frame
// belongs to the decimated stream.
func (s *Sampler) Keep() bool {
	s.consumed += s.target
	if s.target == s.native || s.consumed/s.native >= float64(s.kept) {
		s.kept++
		return true
	}
	return false
}

// Effective returns the rate of the decimated stream.
func (s *Sampler) Effective() float64 {
	return s.target
}

// Kept returns how many frames have been kept so far.
func (s *Sampler) Kept() int {
	return s.kept
}
