package gltfload

import (
	gomath "math"
	"testing"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/skinforge/pkg/math"
)

const tolerance = 1e-5

func closeEnough(a, b float32) bool {
	return gomath.Abs(float64(a-b)) <= tolerance
}

func TestNodeTRSDefaults(t *testing.T) {
	t0, r, s := nodeTRS(&gltf.Node{})
	if t0 != (math.Vec3{}) {
		t.Errorf("default translation: got %+v", t0)
	}
	if r != math.QuatIdentity() {
		t.Errorf("default rotation: got %+v", r)
	}
	if s != (math.Vec3{X: 1, Y: 1, Z: 1}) {
		t.Errorf("default scale: got %+v", s)
	}
}

func TestLocalMatrixPrefersExplicitMatrix(t *testing.T) {
	node := &gltf.Node{
		Matrix: [16]float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			7, 8, 9, 1,
		},
		// Conflicting TRS must be ignored when a matrix is present.
		Translation: [3]float64{1, 1, 1},
	}
	m := localMatrix(node)
	if !closeEnough(m[12], 7) || !closeEnough(m[13], 8) || !closeEnough(m[14], 9) {
		t.Errorf("translation column: got (%v, %v, %v)", m[12], m[13], m[14])
	}
}

func TestLocalMatrixFromTRS(t *testing.T) {
	node := &gltf.Node{Translation: [3]float64{2, 0, 0}}
	m := localMatrix(node)
	want := math.Translate(2, 0, 0)
	for i := range want {
		if !closeEnough(m[i], want[i]) {
			t.Fatalf("element %d: got %v, want %v", i, m[i], want[i])
		}
	}
}

func TestWorldMatrixWalksParentChain(t *testing.T) {
	doc := &gltf.Document{
		Nodes: []*gltf.Node{
			{Name: "root", Translation: [3]float64{0, 10, 0}, Children: []int{1}},
			{Name: "child", Translation: [3]float64{5, 0, 0}},
		},
	}
	parents := nodeParents(doc)
	if parents[1] != 0 {
		t.Fatalf("expected node 1 parented to node 0, got %d", parents[1])
	}

	w := worldMatrix(doc, parents, 1)
	if !closeEnough(w[12], 5) || !closeEnough(w[13], 10) {
		t.Errorf("world translation: got (%v, %v, %v)", w[12], w[13], w[14])
	}
}

func TestBuildClipsSkipsOutOfRangeSampler(t *testing.T) {
	doc := &gltf.Document{
		Nodes: []*gltf.Node{{Name: "root"}},
		Animations: []*gltf.Animation{{
			Name: "walk",
			Channels: []*gltf.AnimationChannel{
				{
					Sampler: 3,
					Target: gltf.AnimationChannelTarget{
						Node: gltf.Index(0),
						Path: gltf.TRSTranslation,
					},
				},
				{
					Sampler: -1,
					Target: gltf.AnimationChannelTarget{
						Node: gltf.Index(0),
						Path: gltf.TRSTranslation,
					},
				},
			},
		}},
	}

	clips, err := buildClips(doc, map[int]int{0: 0}, zap.NewNop())
	if err != nil {
		t.Fatalf("buildClips: %v", err)
	}
	// Both channels point outside the sampler list, so the clip has
	// nothing usable and must be dropped rather than panic.
	if len(clips) != 0 {
		t.Errorf("expected no clips, got %d", len(clips))
	}
}

func TestBakeTransform(t *testing.T) {
	mesh := &Mesh{
		Positions: []float32{1, 0, 0},
		Normals:   []float32{0, 0, 1},
	}
	world := math.RotateX(gomath.Pi / 2).Mul(math.Translate(0, 0, 3))
	bakeTransform(mesh, &world)

	// Translate then rotate: (1, 0, 3) rotated 90 degrees about X is
	// (1, -3, 0).
	if !closeEnough(mesh.Positions[0], 1) || !closeEnough(mesh.Positions[1], -3) || !closeEnough(mesh.Positions[2], 0) {
		t.Errorf("position: got (%v, %v, %v)", mesh.Positions[0], mesh.Positions[1], mesh.Positions[2])
	}
	// The normal only rotates.
	if !closeEnough(mesh.Normals[1], -1) || !closeEnough(mesh.Normals[2], 0) {
		t.Errorf("normal: got (%v, %v, %v)", mesh.Normals[0], mesh.Normals[1], mesh.Normals[2])
	}
}
