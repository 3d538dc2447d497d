package lighting

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/skinforge/pkg/math"
)

func lightOne(snap *Snapshot, position, normal math.Vec3, model *math.Mat4, camera *math.Vec3) [4]float32 {
	dst := make([]float32, 4)
	positions := []float32{position.X, position.Y, position.Z}
	normals := []float32{normal.X, normal.Y, normal.Z}
	LightVertices(dst, positions, normals, snap, model, camera)
	return [4]float32{dst[0], dst[1], dst[2], dst[3]}
}

func TestAmbientPlusDirectional(t *testing.T) {
	// Ambient 0.1 plus a unit white directional light hitting the
	// normal head-on yields 1.1 per channel, alpha 1.
	s := NewState()
	s.SetAmbient(0.1, 0.1, 0.1, 1)
	s.AddDirectional(DirectionalLight{Color: [3]float32{1, 1, 1}, Intensity: 1, Direction: math.Vec3{Z: 1}})

	got := lightOne(s.Snapshot(), math.Vec3{}, math.Vec3{Z: 1}, nil, nil)
	for c := 0; c < 3; c++ {
		if gomath.Abs(float64(got[c]-1.1)) > 1e-5 {
			t.Errorf("channel %d: expected 1.1, got %v", c, got[c])
		}
	}
	if got[3] != 1 {
		t.Errorf("expected alpha 1, got %v", got[3])
	}
}

func TestDirectionalBackfaceContributesNothing(t *testing.T) {
	s := NewState()
	s.AddDirectional(DirectionalLight{Color: [3]float32{1, 1, 1}, Intensity: 1, Direction: math.Vec3{Z: 1}})

	got := lightOne(s.Snapshot(), math.Vec3{}, math.Vec3{Z: -1}, nil, nil)
	if got[0] != 0 || got[1] != 0 || got[2] != 0 {
		t.Errorf("expected black for a facing-away normal, got %v", got)
	}
}

func TestHemisphereBlend(t *testing.T) {
	s := NewState()
	s.SetHemisphere(HemisphereLight{
		Enabled:     true,
		SkyColor:    [3]float32{1, 1, 1},
		GroundColor: [3]float32{0, 0, 0},
		Intensity:   1,
	})
	snap := s.Snapshot()

	up := lightOne(snap, math.Vec3{}, math.Vec3{Z: 1}, nil, nil)
	if gomath.Abs(float64(up[0]-1)) > 1e-5 {
		t.Errorf("up-facing normal: expected sky color 1, got %v", up[0])
	}

	down := lightOne(snap, math.Vec3{}, math.Vec3{Z: -1}, nil, nil)
	if down[0] != 0 {
		t.Errorf("down-facing normal: expected ground color 0, got %v", down[0])
	}

	side := lightOne(snap, math.Vec3{}, math.Vec3{X: 1}, nil, nil)
	if gomath.Abs(float64(side[0]-0.5)) > 1e-5 {
		t.Errorf("side-facing normal: expected half blend 0.5, got %v", side[0])
	}
}

func TestConeAttenuationMonotonic(t *testing.T) {
	inner := float32(0.2)
	outer := float32(0.6)

	innerCos := float32(gomath.Cos(float64(inner)))
	outerCos := float32(gomath.Cos(float64(outer)))

	if got := coneAttenuation(innerCos, inner, outer, 1); got != 1 {
		t.Errorf("inner boundary: expected 1, got %v", got)
	}
	if got := coneAttenuation(outerCos, inner, outer, 1); got != 0 {
		t.Errorf("outer boundary: expected 0, got %v", got)
	}
	if got := coneAttenuation(outerCos-0.01, inner, outer, 1); got != 0 {
		t.Errorf("beyond outer: expected exactly 0, got %v", got)
	}

	prev := float32(1)
	for step := 1; step <= 10; step++ {
		cos := innerCos + (outerCos-innerCos)*float32(step)/10
		got := coneAttenuation(cos, inner, outer, 2)
		if got > prev {
			t.Fatalf("attenuation must decrease through the penumbra: %v -> %v", prev, got)
		}
		prev = got
	}
}

func TestConeAttenuationZeroFalloff(t *testing.T) {
	inner := float32(0.2)
	outer := float32(0.6)

	innerCos := float32(gomath.Cos(float64(inner)))
	outerCos := float32(gomath.Cos(float64(outer)))

	// An exponent of zero flattens the ramp: every point strictly
	// inside the outer cone gets full intensity, points outside none.
	mid := (innerCos + outerCos) / 2
	if got := coneAttenuation(mid, inner, outer, 0); got != 1 {
		t.Errorf("penumbra with zero falloff: expected 1, got %v", got)
	}
	if got := coneAttenuation(outerCos-0.01, inner, outer, 0); got != 0 {
		t.Errorf("beyond outer with zero falloff: expected 0, got %v", got)
	}
}

func TestSpotBeyondRangeIsZero(t *testing.T) {
	// Vertex on the cone axis but past the range: zero contribution
	// even though the angular term would be 1.
	s := NewState()
	s.AddSpot(SpotLight{
		Color:      [3]float32{1, 1, 1},
		Intensity:  1,
		Position:   math.Vec3{},
		Direction:  math.Vec3{Z: 1},
		InnerAngle: 0.5,
		OuterAngle: 0.8,
		Falloff:    1,
		Range:      100,
	})

	got := lightOne(s.Snapshot(), math.Vec3{Z: 150}, math.Vec3{Z: -1}, nil, nil)
	if got[0] != 0 || got[1] != 0 || got[2] != 0 {
		t.Errorf("expected zero beyond range, got %v", got)
	}
}

func TestSpotInsideRangeContributes(t *testing.T) {
	s := NewState()
	s.AddSpot(SpotLight{
		Color:      [3]float32{1, 1, 1},
		Intensity:  1,
		Position:   math.Vec3{},
		Direction:  math.Vec3{Z: 1},
		InnerAngle: 0.5,
		OuterAngle: 0.8,
		Falloff:    1,
		Range:      100,
	})

	// On-axis at half range, facing the light.
	got := lightOne(s.Snapshot(), math.Vec3{Z: 50}, math.Vec3{Z: -1}, nil, nil)
	want := float32(0.25) // (1 - 50/100)^2, full angular and diffuse
	if gomath.Abs(float64(got[0]-want)) > 1e-5 {
		t.Errorf("expected %v, got %v", want, got[0])
	}
}

func TestSpotInfiniteRangeInverseSquare(t *testing.T) {
	s := NewState()
	s.AddSpot(SpotLight{
		Color:      [3]float32{1, 1, 1},
		Intensity:  1,
		Position:   math.Vec3{},
		Direction:  math.Vec3{Z: 1},
		InnerAngle: 0.5,
		OuterAngle: 0.8,
		Falloff:    1,
		Range:      0,
	})

	got := lightOne(s.Snapshot(), math.Vec3{Z: 3}, math.Vec3{Z: -1}, nil, nil)
	want := float32(1.0 / (1 + 9.0))
	if gomath.Abs(float64(got[0]-want)) > 1e-5 {
		t.Errorf("expected %v, got %v", want, got[0])
	}
}

func TestOverbrightCeiling(t *testing.T) {
	s := NewState()
	s.SetAmbient(5, 5, 5, 1)

	got := lightOne(s.Snapshot(), math.Vec3{}, math.Vec3{Z: 1}, nil, nil)
	for c := 0; c < 3; c++ {
		if got[c] != MaxLitChannel {
			t.Errorf("channel %d: expected ceiling %v, got %v", c, float32(MaxLitChannel), got[c])
		}
	}
}

func TestSpecularHighlight(t *testing.T) {
	s := NewState()
	s.AddDirectional(DirectionalLight{
		Color:        [3]float32{1, 1, 1},
		Intensity:    1,
		Direction:    math.Vec3{Z: 1},
		CastSpecular: true,
	})
	s.SetSpecular(SpecularSettings{Shininess: 8, Intensity: 1})
	camera := math.Vec3{Z: 10}

	lit := lightOne(s.Snapshot(), math.Vec3{}, math.Vec3{Z: 1}, nil, &camera)
	// Head-on view and light: diffuse 1 plus a full specular term.
	if lit[0] <= 1.5 {
		t.Errorf("expected strong specular on top of diffuse, got %v", lit[0])
	}

	// Without a camera, specular is off and only diffuse remains.
	noCam := lightOne(s.Snapshot(), math.Vec3{}, math.Vec3{Z: 1}, nil, nil)
	if gomath.Abs(float64(noCam[0]-1)) > 1e-5 {
		t.Errorf("expected pure diffuse 1 without camera, got %v", noCam[0])
	}
}

func TestSpecularDebugKeepsDiffuse(t *testing.T) {
	s := NewState()
	s.AddDirectional(DirectionalLight{
		Color:        [3]float32{0, 1, 0},
		Intensity:    1,
		Direction:    math.Vec3{Z: 1},
		CastSpecular: true,
	})
	s.SetSpecular(SpecularSettings{Shininess: 8, Intensity: 1, Debug: true})
	camera := math.Vec3{Z: 10}

	got := lightOne(s.Snapshot(), math.Vec3{}, math.Vec3{Z: 1}, nil, &camera)

	// The green diffuse channel keeps its value; the marker (magenta)
	// shows up in red/blue, which the green light alone never touches.
	if got[0] <= 0 || got[2] <= 0 {
		t.Errorf("expected marker color in red/blue channels, got %v", got)
	}
	// Diffuse green is 1; the magenta marker adds no green, so the
	// channel must stay exactly at the diffuse value.
	if gomath.Abs(float64(got[1]-1)) > 1e-5 {
		t.Errorf("debug mode altered the diffuse channel: %v", got[1])
	}
}

func TestModelMatrixTransformsNormal(t *testing.T) {
	s := NewState()
	s.AddDirectional(DirectionalLight{Color: [3]float32{1, 1, 1}, Intensity: 1, Direction: math.Vec3{Z: 1}})
	snap := s.Snapshot()

	// Rotate an +X normal into +Z via the model matrix.
	rot := math.QuatFromAxisAngle(math.Vec3{Y: 1}, float32(-gomath.Pi/2)).ToMat4()
	got := lightOne(snap, math.Vec3{}, math.Vec3{X: 1}, &rot, nil)
	if gomath.Abs(float64(got[0]-1)) > 1e-4 {
		t.Errorf("expected rotated normal to face the light, got %v", got[0])
	}
}

func TestDegenerateNormalFallsBack(t *testing.T) {
	s := NewState()
	s.AddDirectional(DirectionalLight{Color: [3]float32{1, 1, 1}, Intensity: 1, Direction: math.Vec3{Z: 1}})

	// A zero-length normal substitutes the canonical up vector, which
	// faces this light exactly.
	got := lightOne(s.Snapshot(), math.Vec3{}, math.Vec3{}, nil, nil)
	if gomath.Abs(float64(got[0]-1)) > 1e-5 {
		t.Errorf("expected fallback normal to face the light, got %v", got[0])
	}
}

func TestDisabledLightsIgnored(t *testing.T) {
	s := NewState()
	id := s.AddDirectional(DirectionalLight{Color: [3]float32{1, 1, 1}, Intensity: 1, Direction: math.Vec3{Z: 1}})
	l := s.Directionals()[0]
	l.Enabled = false
	s.SetDirectional(id, l)

	got := lightOne(s.Snapshot(), math.Vec3{}, math.Vec3{Z: 1}, nil, nil)
	if got[0] != 0 {
		t.Errorf("disabled light contributed %v", got[0])
	}
}
