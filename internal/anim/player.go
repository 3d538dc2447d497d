package anim

import (
	"go.uber.org/zap"

	"github.com/Faultbox/skinforge/internal/logger"
	"github.com/Faultbox/skinforge/pkg/math"
)

// activeChannel is a channel that survived validation at Play time:
// its joint index is in range and its sampler has at least one
// keyframe. Caching these avoids per-frame lookups and re-checks.
type activeChannel struct {
	joint    int
	property Property
	sampler  *Sampler
}

// Player advances one animated instance through its clips and keeps
// the instance's Pose up to date.
type Player struct {
	pose  *Pose
	clips map[string]*Clip

	active         *Clip
	activeChannels []activeChannel

	time    float32
	playing bool
	paused  bool

	// Rate is the playback rate multiplier. Negative rates play in
	// reverse.
	Rate float32
	// Loop wraps time at the clip boundaries instead of stopping.
	Loop bool
	// OnFinish is invoked once when a non-looping clip reaches its
	// end.
	OnFinish func()

	// Two scratch buffers for the bracketing keyframe samples.
	scratch0 [4]float32
	scratch1 [4]float32

	log *zap.Logger
}

// NewPlayer creates a player over a pose and a clip list.
func NewPlayer(pose *Pose, clips []*Clip) *Player {
	byName := make(map[string]*Clip, len(clips))
	for _, c := range clips {
		byName[c.Name] = c
	}
	return &Player{
		pose:  pose,
		clips: byName,
		Rate:  1,
		log:   logger.Named("anim"),
	}
}

// Pose returns the per-instance joint state the player drives.
func (p *Player) Pose() *Pose {
	return p.pose
}

// ClipNames returns the names of all known clips.
func (p *Player) ClipNames() []string {
	names := make([]string, 0, len(p.clips))
	for name := range p.clips {
		names = append(names, name)
	}
	return names
}

// Playing reports whether a clip is active and not stopped.
func (p *Player) Playing() bool {
	return p.playing
}

// Paused reports whether playback is suspended.
func (p *Player) Paused() bool {
	return p.paused
}

// Time returns the current playback time in seconds.
func (p *Player) Time() float32 {
	return p.time
}

// CurrentClip returns the active clip, or nil.
func (p *Player) CurrentClip() *Clip {
	return p.active
}

// Play starts the named clip at startTime (clamped to the clip's
// duration). An unknown name logs a warning and leaves the player
// untouched. Switching clips resets all joints to the bind pose first.
func (p *Player) Play(name string, startTime float32) {
	clip, ok := p.clips[name]
	if !ok {
		p.log.Warn("unknown clip", zap.String("clip", name))
		return
	}

	if clip != p.active {
		p.pose.ResetToBind()
	}

	p.active = clip
	p.cacheActiveChannels()
	p.playing = true
	p.paused = false
	p.time = clampTime(startTime, clip.Duration)
	p.evaluate(p.time)
}

// Pause suspends playback without losing the playhead.
func (p *Player) Pause() {
	p.paused = true
}

// Resume continues playback after a pause.
func (p *Player) Resume() {
	p.paused = false
}

// Stop halts playback. The pose keeps its last evaluated state.
func (p *Player) Stop() {
	p.playing = false
	p.paused = false
}

// cacheActiveChannels filters the active clip's channels down to the
// ones that can actually be evaluated.
func (p *Player) cacheActiveChannels() {
	p.activeChannels = p.activeChannels[:0]
	jointCount := p.pose.Skeleton().JointCount()

	for _, ch := range p.active.Channels {
		if ch.Joint < 0 || ch.Joint >= jointCount {
			p.log.Debug("channel targets missing joint",
				zap.String("clip", p.active.Name), zap.Int("joint", ch.Joint))
			continue
		}
		if ch.Sampler < 0 || ch.Sampler >= len(p.active.Samplers) {
			p.log.Debug("channel targets missing sampler",
				zap.String("clip", p.active.Name), zap.Int("sampler", ch.Sampler))
			continue
		}
		s := &p.active.Samplers[ch.Sampler]
		if !s.wellFormed() {
			p.log.Debug("malformed sampler excluded",
				zap.String("clip", p.active.Name), zap.Int("sampler", ch.Sampler))
			continue
		}
		p.activeChannels = append(p.activeChannels, activeChannel{
			joint:    ch.Joint,
			property: ch.Property,
			sampler:  s,
		})
	}
}

// Update advances playback by dt seconds (scaled by Rate) and
// re-evaluates the pose. It is a no-op while stopped or paused, or
// when the clip has no duration.
func (p *Player) Update(dt float32) {
	if !p.playing || p.paused || p.active == nil {
		return
	}
	d := p.active.Duration
	if d <= 0 {
		return
	}

	p.time += dt * p.Rate

	if p.Loop {
		// Wrap by repeated subtraction rather than modulo so large
		// steps and negative rates both land in range.
		for p.time >= d {
			p.time -= d
		}
		for p.time < 0 {
			p.time += d
		}
	} else if p.time >= d {
		p.time = d
		p.playing = false
		if p.OnFinish != nil {
			p.OnFinish()
		}
	} else if p.time < 0 {
		p.time = 0
		p.playing = false
		if p.OnFinish != nil {
			p.OnFinish()
		}
	}

	p.evaluate(p.time)
}

// SetTime evaluates the pose at an explicit time without changing the
// playing or paused state.
func (p *Player) SetTime(t float32) {
	if p.active == nil {
		return
	}
	p.time = clampTime(t, p.active.Duration)
	p.evaluate(p.time)
}

// evaluate resets the pose to bind, overlays the active channels at
// the given time, and recomputes world and bone matrices.
func (p *Player) evaluate(t float32) {
	p.pose.ResetToBind()

	for i := range p.activeChannels {
		ac := &p.activeChannels[i]
		s0 := p.scratch0[:ac.sampler.Stride]
		s1 := p.scratch1[:ac.sampler.Stride]
		factor, blend := ac.sampler.bracket(t, s0, s1)

		switch ac.property {
		case PropertyRotation:
			q := math.Quat{X: s0[0], Y: s0[1], Z: s0[2], W: s0[3]}
			if blend {
				q2 := math.Quat{X: s1[0], Y: s1[1], Z: s1[2], W: s1[3]}
				q = q.Slerp(q2, factor)
			}
			p.pose.Rotation[ac.joint] = q
		case PropertyTranslation:
			p.pose.Translation[ac.joint] = lerpOrHold(s0, s1, factor, blend)
		case PropertyScale:
			p.pose.Scale[ac.joint] = lerpOrHold(s0, s1, factor, blend)
		}
	}

	p.pose.ComputeMatrices()
}

func lerpOrHold(s0, s1 []float32, factor float32, blend bool) math.Vec3 {
	v := math.Vec3{X: s0[0], Y: s0[1], Z: s0[2]}
	if !blend {
		return v
	}
	return math.Vec3{
		X: v.X + factor*(s1[0]-v.X),
		Y: v.Y + factor*(s1[1]-v.Y),
		Z: v.Z + factor*(s1[2]-v.Z),
	}
}

func clampTime(t, duration float32) float32 {
	if t < 0 {
		return 0
	}
	if t > duration {
		return duration
	}
	return t
}
