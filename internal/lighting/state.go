// Package lighting holds the light registry and the per-vertex
// lighting evaluator shared by the fallback path and the compute pool
// workers.
package lighting

import (
	"fmt"
	"strings"

	"github.com/Faultbox/skinforge/pkg/math"
)

// DirectionalLight is an infinitely distant light.
type DirectionalLight struct {
	ID        int
	Enabled   bool
	Color     [3]float32
	Intensity float32
	// Direction points toward the light, normalized on write.
	Direction    math.Vec3
	CastSpecular bool
}

// SpotLight is a positioned cone light.
type SpotLight struct {
	ID        int
	Enabled   bool
	Color     [3]float32
	Intensity float32
	Position  math.Vec3
	// Direction is the cone axis pointing away from the light,
	// normalized on write.
	Direction math.Vec3
	// InnerAngle and OuterAngle are cone half-angles in radians.
	// Outer is clamped to at least Inner on write.
	InnerAngle float32
	OuterAngle float32
	// Falloff shapes the penumbra between the cones.
	Falloff float32
	// Range is the cutoff distance; 0 means infinite with
	// inverse-square falloff.
	Range        float32
	CastSpecular bool
}

// HemisphereLight blends two colors by surface-normal orientation.
// There is a single instance per registry, not a collection.
type HemisphereLight struct {
	Enabled     bool
	SkyColor    [3]float32
	GroundColor [3]float32
	Intensity   float32
}

// SpecularSettings are the global Blinn-Phong knobs.
type SpecularSettings struct {
	Shininess float32 // exponent, clamped to >= 1 on write
	Intensity float32 // global multiplier, clamped to >= 0 on write
	Debug     bool    // replace specular terms with a marker color
}

// State is the mutable light registry. It is expected to be mutated
// from the orchestrating goroutine only; workers receive immutable
// Snapshot copies, never the live registry.
type State struct {
	nextID       int
	directionals []DirectionalLight
	spots        []SpotLight
	hemisphere   HemisphereLight
	ambient      [3]float32
	specular     SpecularSettings

	camera    math.Vec3
	hasCamera bool

	version uint64
}

// NewState returns an empty registry with default specular settings.
func NewState() *State {
	return &State{
		nextID: 1,
		specular: SpecularSettings{
			Shininess: 32,
			Intensity: 1,
		},
	}
}

// Version returns the dirty counter, incremented on every mutation.
// Consumers compare it to skip redundant recomputation.
func (s *State) Version() uint64 {
	return s.version
}

func (s *State) dirty() {
	s.version++
}

// AddDirectional registers a directional light and returns its id.
// The direction is normalized and the light starts enabled.
func (s *State) AddDirectional(l DirectionalLight) int {
	l.ID = s.nextID
	s.nextID++
	l.Enabled = true
	l.Direction = normalizeOrDefault(l.Direction)
	s.directionals = append(s.directionals, l)
	s.dirty()
	return l.ID
}

// SetDirectional overwrites the light with the given id. Returns false
// when the id is unknown.
func (s *State) SetDirectional(id int, l DirectionalLight) bool {
	for i := range s.directionals {
		if s.directionals[i].ID == id {
			l.ID = id
			l.Direction = normalizeOrDefault(l.Direction)
			s.directionals[i] = l
			s.dirty()
			return true
		}
	}
	return false
}

// RemoveDirectional deletes a directional light by id.
func (s *State) RemoveDirectional(id int) bool {
	for i := range s.directionals {
		if s.directionals[i].ID == id {
			s.directionals = append(s.directionals[:i], s.directionals[i+1:]...)
			s.dirty()
			return true
		}
	}
	return false
}

// AddSpot registers a spot light and returns its id. The cone axis is
// normalized and the outer angle clamped to at least the inner angle.
func (s *State) AddSpot(l SpotLight) int {
	l.ID = s.nextID
	s.nextID++
	l.Enabled = true
	sanitizeSpot(&l)
	s.spots = append(s.spots, l)
	s.dirty()
	return l.ID
}

// SetSpot overwrites the spot light with the given id.
func (s *State) SetSpot(id int, l SpotLight) bool {
	for i := range s.spots {
		if s.spots[i].ID == id {
			l.ID = id
			sanitizeSpot(&l)
			s.spots[i] = l
			s.dirty()
			return true
		}
	}
	return false
}

// RemoveSpot deletes a spot light by id.
func (s *State) RemoveSpot(id int) bool {
	for i := range s.spots {
		if s.spots[i].ID == id {
			s.spots = append(s.spots[:i], s.spots[i+1:]...)
			s.dirty()
			return true
		}
	}
	return false
}

func sanitizeSpot(l *SpotLight) {
	l.Direction = normalizeOrDefault(l.Direction)
	if l.InnerAngle < 0 {
		l.InnerAngle = 0
	}
	if l.OuterAngle < l.InnerAngle {
		l.OuterAngle = l.InnerAngle
	}
	if l.Falloff < 0 {
		l.Falloff = 0
	}
	if l.Range < 0 {
		l.Range = 0
	}
}

func normalizeOrDefault(v math.Vec3) math.Vec3 {
	n := v.Normalize()
	if n.Length() == 0 {
		return math.Vec3{Z: 1}
	}
	return n
}

// SetHemisphere replaces the single hemisphere light.
func (s *State) SetHemisphere(h HemisphereLight) {
	s.hemisphere = h
	s.dirty()
}

// SetAmbient sets the ambient color. Intensity is pre-multiplied into
// the stored color; the registry keeps no separate ambient intensity.
func (s *State) SetAmbient(r, g, b, intensity float32) {
	s.ambient = [3]float32{r * intensity, g * intensity, b * intensity}
	s.dirty()
}

// SetSpecular replaces the global specular settings, clamping
// shininess to >= 1 and intensity to >= 0.
func (s *State) SetSpecular(cfg SpecularSettings) {
	if cfg.Shininess < 1 {
		cfg.Shininess = 1
	}
	if cfg.Intensity < 0 {
		cfg.Intensity = 0
	}
	s.specular = cfg
	s.dirty()
}

// SetCameraPosition records the camera position used for specular
// highlights and the debug dump.
func (s *State) SetCameraPosition(pos math.Vec3) {
	s.camera = pos
	s.hasCamera = true
	s.dirty()
}

// Directionals returns a copy of the directional light list.
func (s *State) Directionals() []DirectionalLight {
	out := make([]DirectionalLight, len(s.directionals))
	copy(out, s.directionals)
	return out
}

// Spots returns a copy of the spot light list.
func (s *State) Spots() []SpotLight {
	out := make([]SpotLight, len(s.spots))
	copy(out, s.spots)
	return out
}

// Hemisphere returns the hemisphere light.
func (s *State) Hemisphere() HemisphereLight {
	return s.hemisphere
}

// Ambient returns the ambient color (intensity pre-multiplied).
func (s *State) Ambient() [3]float32 {
	return s.ambient
}

// Specular returns the global specular settings.
func (s *State) Specular() SpecularSettings {
	return s.specular
}

// Snapshot is an immutable copy of the registry, safe to hand to
// worker goroutines.
type Snapshot struct {
	Ambient      [3]float32
	Hemisphere   HemisphereLight
	Directionals []DirectionalLight
	Spots        []SpotLight
	Specular     SpecularSettings
	Camera       *math.Vec3 // nil when no camera has been reported
	Version      uint64
}

// Snapshot copies the current registry state.
func (s *State) Snapshot() *Snapshot {
	snap := &Snapshot{
		Ambient:      s.ambient,
		Hemisphere:   s.hemisphere,
		Directionals: s.Directionals(),
		Spots:        s.Spots(),
		Specular:     s.specular,
		Version:      s.version,
	}
	if s.hasCamera {
		cam := s.camera
		snap.Camera = &cam
	}
	return snap
}

// DebugDump renders the full registry plus the last-known camera
// state, for inspection from scripting or logs.
func (s *State) DebugDump() string {
	var b strings.Builder

	fmt.Fprintf(&b, "lighting state v%d\n", s.version)
	fmt.Fprintf(&b, "  ambient: (%.3f, %.3f, %.3f)\n", s.ambient[0], s.ambient[1], s.ambient[2])
	fmt.Fprintf(&b, "  hemisphere: enabled=%v sky=(%.3f, %.3f, %.3f) ground=(%.3f, %.3f, %.3f) intensity=%.3f\n",
		s.hemisphere.Enabled,
		s.hemisphere.SkyColor[0], s.hemisphere.SkyColor[1], s.hemisphere.SkyColor[2],
		s.hemisphere.GroundColor[0], s.hemisphere.GroundColor[1], s.hemisphere.GroundColor[2],
		s.hemisphere.Intensity)
	fmt.Fprintf(&b, "  specular: shininess=%.1f intensity=%.3f debug=%v\n",
		s.specular.Shininess, s.specular.Intensity, s.specular.Debug)

	fmt.Fprintf(&b, "  directional lights: %d\n", len(s.directionals))
	for _, l := range s.directionals {
		fmt.Fprintf(&b, "    [%d] enabled=%v color=(%.3f, %.3f, %.3f) intensity=%.3f dir=(%.3f, %.3f, %.3f) specular=%v\n",
			l.ID, l.Enabled, l.Color[0], l.Color[1], l.Color[2], l.Intensity,
			l.Direction.X, l.Direction.Y, l.Direction.Z, l.CastSpecular)
	}

	fmt.Fprintf(&b, "  spot lights: %d\n", len(s.spots))
	for _, l := range s.spots {
		fmt.Fprintf(&b, "    [%d] enabled=%v color=(%.3f, %.3f, %.3f) intensity=%.3f pos=(%.2f, %.2f, %.2f) dir=(%.3f, %.3f, %.3f) cone=(%.3f, %.3f) falloff=%.2f range=%.1f specular=%v\n",
			l.ID, l.Enabled, l.Color[0], l.Color[1], l.Color[2], l.Intensity,
			l.Position.X, l.Position.Y, l.Position.Z,
			l.Direction.X, l.Direction.Y, l.Direction.Z,
			l.InnerAngle, l.OuterAngle, l.Falloff, l.Range, l.CastSpecular)
	}

	if s.hasCamera {
		fmt.Fprintf(&b, "  camera: (%.2f, %.2f, %.2f)\n", s.camera.X, s.camera.Y, s.camera.Z)
	} else {
		b.WriteString("  camera: unknown\n")
	}

	return b.String()
}
