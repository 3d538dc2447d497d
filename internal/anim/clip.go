// Package anim provides keyframe clips and the skeletal animation
// player that turns them into joint world and bone matrices.
package anim

// Interpolation selects how a sampler blends between keyframes.
type Interpolation int

const (
	// InterpolationLinear blends between the bracketing keyframes;
	// rotations use slerp, vectors use lerp.
	InterpolationLinear Interpolation = iota
	// InterpolationStep holds the earlier keyframe's value unchanged.
	InterpolationStep
)

// Property identifies which joint transform a channel drives.
type Property int

const (
	PropertyTranslation Property = iota
	PropertyRotation
	PropertyScale
)

// Sampler is one keyframe track: times plus flattened values.
type Sampler struct {
	// Times holds keyframe times in seconds, ascending.
	Times []float32
	// Values holds Stride components per keyframe.
	Values []float32
	// Stride is components per keyframe: 3 for vectors, 4 for
	// rotations.
	Stride        int
	Interpolation Interpolation
}

// KeyCount returns the number of keyframes.
func (s *Sampler) KeyCount() int {
	return len(s.Times)
}

// wellFormed reports whether the track can be sampled at all. Samplers
// missing input or output, or with mismatched lengths, are excluded
// from evaluation rather than crashing it.
func (s *Sampler) wellFormed() bool {
	if len(s.Times) == 0 || s.Stride <= 0 {
		return false
	}
	return len(s.Values) == len(s.Times)*s.Stride
}

// bracket samples the track at the given time. The bracketing keyframe
// values are copied into the two scratch buffers s0 and s1 (separate
// buffers, so one sample cannot overwrite the other mid-interpolation)
// and the interpolation factor is returned. When blend is false only
// s0 is filled and should be used as-is.
func (s *Sampler) bracket(time float32, s0, s1 []float32) (factor float32, blend bool) {
	last := len(s.Times) - 1

	if time <= s.Times[0] {
		copy(s0, s.Values[:s.Stride])
		return 0, false
	}
	if time >= s.Times[last] {
		copy(s0, s.Values[last*s.Stride:(last+1)*s.Stride])
		return 0, false
	}

	// Linear scan to the bracketing pair; tracks are short enough
	// that a binary search does not pay for itself.
	i := 0
	for i < last && s.Times[i+1] < time {
		i++
	}

	copy(s0, s.Values[i*s.Stride:(i+1)*s.Stride])
	if s.Interpolation == InterpolationStep {
		return 0, false
	}

	copy(s1, s.Values[(i+1)*s.Stride:(i+2)*s.Stride])
	span := s.Times[i+1] - s.Times[i]
	if span <= 0 {
		return 0, false
	}
	return (time - s.Times[i]) / span, true
}

// Channel binds a sampler to a joint property.
type Channel struct {
	Joint    int // target joint index in the skeleton
	Property Property
	Sampler  int // index into the clip's sampler list
}

// Clip is an immutable, shareable animation: samplers plus the
// channels binding them to joints.
type Clip struct {
	Name     string
	Duration float32
	Samplers []Sampler
	Channels []Channel
}

// NewClip builds a clip and derives its duration from the largest
// keyframe time across all samplers.
func NewClip(name string, samplers []Sampler, channels []Channel) *Clip {
	c := &Clip{
		Name:     name,
		Samplers: samplers,
		Channels: channels,
	}
	for i := range samplers {
		times := samplers[i].Times
		if n := len(times); n > 0 && times[n-1] > c.Duration {
			c.Duration = times[n-1]
		}
	}
	return c
}
