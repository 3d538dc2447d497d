// Package skeleton provides the joint hierarchy, inverse-bind store,
// and CPU skinning shared by the animation evaluator and the compute
// pool workers.
package skeleton

import (
	gomath "math"

	"github.com/Faultbox/skinforge/pkg/math"
)

// MaxInfluences is the number of joint influences carried per vertex.
const MaxInfluences = 4

// Joint is a node in the skeleton hierarchy.
type Joint struct {
	Index  int
	Name   string
	Parent int // -1 = root

	// Bind-pose local transform, decomposed so animation channels can
	// overwrite individual properties.
	BindTranslation math.Vec3
	BindRotation    math.Quat
	BindScale       math.Vec3
}

// Skeleton holds an ordered joint list and the parallel inverse-bind
// matrices. Shared by reference across instances; never mutated after
// construction.
type Skeleton struct {
	Name   string
	Joints []Joint

	// InverseBind maps bind-space vertices into joint-local space,
	// parallel-indexed with Joints.
	InverseBind []math.Mat4

	scaleCorrection      float32
	needsScaleCorrection bool
}

// scaleDetectEpsilon is how far from unit length the first
// inverse-bind basis vector may drift before the skeleton is treated
// as carrying un-applied scale.
const scaleDetectEpsilon = 1e-3

// New builds a skeleton from joints and their inverse-bind matrices.
// Some authoring pipelines export object scale baked into the
// inverse-bind matrices; that is detected here, once, from the first
// matrix's basis-vector length so bone matrices can compensate.
func New(name string, joints []Joint, inverseBind []math.Mat4) *Skeleton {
	s := &Skeleton{
		Name:            name,
		Joints:          joints,
		InverseBind:     inverseBind,
		scaleCorrection: 1,
	}

	if len(inverseBind) > 0 {
		basis := inverseBind[0].BasisXLength()
		if basis > 0 && gomath.Abs(float64(basis-1)) > scaleDetectEpsilon {
			s.scaleCorrection = 1 / basis
			s.needsScaleCorrection = true
		}
	}

	return s
}

// JointCount returns the number of joints.
func (s *Skeleton) JointCount() int {
	return len(s.Joints)
}

// JointByName returns the joint index for a name, or -1.
func (s *Skeleton) JointByName(name string) int {
	for i := range s.Joints {
		if s.Joints[i].Name == name {
			return i
		}
	}
	return -1
}

// ScaleCorrection reports the uniform correction factor and whether it
// applies.
func (s *Skeleton) ScaleCorrection() (float32, bool) {
	return s.scaleCorrection, s.needsScaleCorrection
}

// BoneMatrix combines a joint world matrix with its inverse-bind
// matrix. When the skeleton carries un-applied scale, the inverse-bind
// basis is pre-scaled and the product's translation corrected, which
// keeps animated translation magnitudes intact.
func (s *Skeleton) BoneMatrix(world math.Mat4, joint int) math.Mat4 {
	if joint < 0 || joint >= len(s.InverseBind) {
		return math.Identity()
	}

	inv := s.InverseBind[joint]
	if !s.needsScaleCorrection {
		return world.Mul(inv)
	}

	m := world.Mul(inv.ScaleBasis(s.scaleCorrection))
	return m.WithTranslation(m.Translation().Scale(s.scaleCorrection))
}

// SkinData holds per-vertex joint influences for one mesh. Immutable
// and shared; the flattened layout is four influences per vertex.
type SkinData struct {
	// SkeletonName identifies the skeleton these indices refer to.
	SkeletonName string

	// Joints holds MaxInfluences joint indices per vertex.
	Joints []uint16
	// Weights holds MaxInfluences normalized weights per vertex,
	// parallel to Joints. Zero-weight influences are ignored.
	Weights []float32
}

// VertexCount returns the number of vertices the skin data covers.
func (d *SkinData) VertexCount() int {
	return len(d.Joints) / MaxInfluences
}

// Valid reports whether the influence buffers are parallel and whole.
func (d *SkinData) Valid() bool {
	return len(d.Joints) == len(d.Weights) && len(d.Joints)%MaxInfluences == 0
}
