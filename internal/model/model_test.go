package model

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/skinforge/internal/anim"
	"github.com/Faultbox/skinforge/internal/compute"
	"github.com/Faultbox/skinforge/internal/lighting"
	"github.com/Faultbox/skinforge/internal/skeleton"
	"github.com/Faultbox/skinforge/pkg/math"
)

const tolerance = 1e-5

func closeEnough(a, b float32) bool {
	return gomath.Abs(float64(a-b)) <= tolerance
}

// oneJointSkeleton is a single root joint at the origin with identity
// inverse bind.
func oneJointSkeleton() *skeleton.Skeleton {
	joints := []skeleton.Joint{{
		Index:        0,
		Name:         "root",
		Parent:       -1,
		BindRotation: math.QuatIdentity(),
		BindScale:    math.Vec3{X: 1, Y: 1, Z: 1},
	}}
	return skeleton.New("test", joints, []math.Mat4{math.Identity()})
}

// slideClip moves the root joint from the origin to (2, 0, 0) over one
// second.
func slideClip() *anim.Clip {
	samplers := []anim.Sampler{{
		Times:  []float32{0, 1},
		Values: []float32{0, 0, 0, 2, 0, 0},
		Stride: 3,
	}}
	channels := []anim.Channel{{Joint: 0, Property: anim.PropertyTranslation, Sampler: 0}}
	return anim.NewClip("slide", samplers, channels)
}

func fullWeights() *skeleton.SkinData {
	joints := make([]uint16, skeleton.MaxInfluences)
	weights := make([]float32, skeleton.MaxInfluences)
	weights[0] = 1
	return &skeleton.SkinData{SkeletonName: "test", Joints: joints, Weights: weights}
}

func litState() *lighting.State {
	s := lighting.NewState()
	s.SetAmbient(0.3, 0.3, 0.3, 1)
	s.AddDirectional(lighting.DirectionalLight{
		Enabled:   true,
		Color:     [3]float32{1, 1, 1},
		Intensity: 0.5,
		Direction: math.Vec3{X: 0, Y: 0, Z: 1},
	})
	return s
}

func singleVertex() ([]float32, []float32) {
	return []float32{1, 0, 0}, []float32{0, 0, 1}
}

func TestSkinnedMeshFollowsAnimation(t *testing.T) {
	lights := litState()
	m := New("hero", oneJointSkeleton(), []*anim.Clip{slideClip()}, lights)
	pos, nrm := singleVertex()
	mesh := m.AddMesh("body", pos, nrm, fullWeights())

	m.Player().Play("slide", 0)
	m.Update(0.5)

	if !closeEnough(mesh.Positions[0], 2) { // bind x=1 plus translation 1
		t.Errorf("x at t=0.5: got %v, want 2", mesh.Positions[0])
	}
	if !closeEnough(mesh.Normals[2], 1) {
		t.Errorf("normal z: got %v, want 1", mesh.Normals[2])
	}
	// Ambient 0.3 plus full diffuse 0.5.
	if !closeEnough(mesh.Colors[0], 0.8) {
		t.Errorf("red channel: got %v, want 0.8", mesh.Colors[0])
	}
	if !closeEnough(mesh.Colors[3], 1) {
		t.Errorf("alpha: got %v, want 1", mesh.Colors[3])
	}
}

func TestPoolAndFallbackProduceIdenticalOutput(t *testing.T) {
	pool := compute.NewPool(2)
	defer pool.Close()

	pos, nrm := singleVertex()

	run := func(p *compute.Pool) *Mesh {
		lights := litState()
		m := New("hero", oneJointSkeleton(), []*anim.Clip{slideClip()}, lights)
		mesh := m.AddMesh("body", pos, nrm, fullWeights())
		m.AttachPool(p)
		defer m.Close()
		m.Player().Play("slide", 0)
		m.Update(0.25)
		return mesh
	}

	pooled := run(pool)
	direct := run(nil)

	for i := range direct.Positions {
		if !closeEnough(pooled.Positions[i], direct.Positions[i]) {
			t.Errorf("position %d: pool %v, fallback %v", i, pooled.Positions[i], direct.Positions[i])
		}
		if !closeEnough(pooled.Normals[i], direct.Normals[i]) {
			t.Errorf("normal %d: pool %v, fallback %v", i, pooled.Normals[i], direct.Normals[i])
		}
	}
	for i := range direct.Colors {
		if !closeEnough(pooled.Colors[i], direct.Colors[i]) {
			t.Errorf("color %d: pool %v, fallback %v", i, pooled.Colors[i], direct.Colors[i])
		}
	}
}

func TestStaticMeshRelitOnlyWhenLightsChange(t *testing.T) {
	lights := litState()
	m := New("prop", nil, nil, lights)
	pos, nrm := singleVertex()
	mesh := m.AddMesh("crate", pos, nrm, nil)

	m.Update(0.016)
	first := mesh.Colors[0]
	if !closeEnough(first, 0.8) {
		t.Fatalf("initial lighting: got %v, want 0.8", first)
	}

	// No change: colors must stay untouched.
	mesh.Colors[0] = -1
	m.Update(0.016)
	if mesh.Colors[0] != -1 {
		t.Error("static mesh was relit without a lighting change")
	}

	lights.SetAmbient(0.5, 0.5, 0.5, 1)
	m.Update(0.016)
	if !closeEnough(mesh.Colors[0], 1.0) {
		t.Errorf("after ambient change: got %v, want 1.0", mesh.Colors[0])
	}
}

func TestSetTransformMovesStaticMesh(t *testing.T) {
	lights := litState()
	m := New("prop", nil, nil, lights)
	pos, nrm := singleVertex()
	mesh := m.AddMesh("crate", pos, nrm, nil)

	m.Update(0.016)
	m.SetTransform(math.Translate(0, 5, 0))
	m.Update(0.016)

	if !closeEnough(mesh.Positions[1], 5) {
		t.Errorf("y after translate: got %v, want 5", mesh.Positions[1])
	}
	// Rotating the model must rotate the baked normals too. A quarter
	// turn about X carries +Z onto -Y.
	m.SetTransform(math.RotateX(gomath.Pi / 2))
	m.Update(0.016)
	if !closeEnough(mesh.Normals[1], -1) || !closeEnough(mesh.Normals[2], 0) {
		t.Errorf("normal after rotation: got (%v, %v, %v)",
			mesh.Normals[0], mesh.Normals[1], mesh.Normals[2])
	}
}

func TestSetTransformThroughPool(t *testing.T) {
	pool := compute.NewPool(1)
	defer pool.Close()

	lights := litState()
	m := New("prop", nil, nil, lights)
	pos, nrm := singleVertex()
	mesh := m.AddMesh("crate", pos, nrm, nil)
	m.AttachPool(pool)
	defer m.Close()

	m.Update(0.016)
	m.SetTransform(math.Translate(3, 0, 0))
	m.Update(0.016)

	if !closeEnough(mesh.Positions[0], 4) {
		t.Errorf("x after pooled transform: got %v, want 4", mesh.Positions[0])
	}
	// Lighting must have been recomputed from the moved geometry.
	if !closeEnough(mesh.Colors[0], 0.8) {
		t.Errorf("red after pooled transform: got %v, want 0.8", mesh.Colors[0])
	}
}

func TestMalformedSkinFallsBackToStatic(t *testing.T) {
	lights := litState()
	m := New("hero", oneJointSkeleton(), []*anim.Clip{slideClip()}, lights)
	pos, nrm := singleVertex()

	bad := &skeleton.SkinData{SkeletonName: "test", Joints: []uint16{0}, Weights: []float32{1, 0}}
	mesh := m.AddMesh("body", pos, nrm, bad)
	if mesh.Skinned() {
		t.Fatal("malformed skin data must not produce a skinned mesh")
	}

	m.Player().Play("slide", 0)
	m.Update(0.5)
	if !closeEnough(mesh.Positions[0], 1) {
		t.Errorf("static mesh moved with the animation: x=%v", mesh.Positions[0])
	}
}

func TestSkinOnSkeletonlessModelRejected(t *testing.T) {
	lights := litState()
	m := New("prop", nil, nil, lights)
	pos, nrm := singleVertex()
	mesh := m.AddMesh("crate", pos, nrm, fullWeights())
	if mesh.Skinned() {
		t.Error("mesh on a skeletonless model must render static")
	}
}

func TestBoundsFollowTransform(t *testing.T) {
	lights := litState()
	m := New("prop", nil, nil, lights)
	m.AddMesh("crate", []float32{
		-1, -1, -1,
		1, 1, 1,
	}, []float32{
		0, 0, 1,
		0, 0, 1,
	}, nil)

	b, ok := m.Bounds()
	if !ok {
		t.Fatal("expected bounds from a non-empty model")
	}
	if b.Center() != (math.Vec3{}) {
		t.Errorf("center: got %+v, want origin", b.Center())
	}

	m.SetTransform(math.Translate(10, 0, 0))
	m.Update(0.016)
	b, _ = m.Bounds()
	if !closeEnough(b.Center().X, 10) {
		t.Errorf("center x after move: got %v, want 10", b.Center().X)
	}
	if !closeEnough(b.Radius(), float32(gomath.Sqrt(3))) {
		t.Errorf("radius: got %v", b.Radius())
	}
}

func TestDetachPoolKeepsWorking(t *testing.T) {
	pool := compute.NewPool(1)
	defer pool.Close()

	lights := litState()
	m := New("hero", oneJointSkeleton(), []*anim.Clip{slideClip()}, lights)
	pos, nrm := singleVertex()
	mesh := m.AddMesh("body", pos, nrm, fullWeights())
	m.AttachPool(pool)

	m.Player().Play("slide", 0)
	m.Update(0.25)
	m.DetachPool()
	m.Update(0.25)

	if !closeEnough(mesh.Positions[0], 2) { // bind x=1 plus translation at t=0.5
		t.Errorf("x after detach: got %v, want 2", mesh.Positions[0])
	}
}
