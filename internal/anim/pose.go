package anim

import (
	"github.com/Faultbox/skinforge/internal/skeleton"
	"github.com/Faultbox/skinforge/pkg/math"
)

// Pose is the mutable per-instance joint state: the current local
// transforms plus the world and bone matrices derived from them each
// evaluation.
type Pose struct {
	skel *skeleton.Skeleton

	// Current local transform per joint, reset to the bind pose and
	// then overwritten by channel sampling each update.
	Translation []math.Vec3
	Rotation    []math.Quat
	Scale       []math.Vec3

	world    []math.Mat4
	bones    []math.Mat4
	computed []bool
}

// NewPose allocates joint state for a skeleton, starting at the bind
// pose.
func NewPose(skel *skeleton.Skeleton) *Pose {
	n := skel.JointCount()
	p := &Pose{
		skel:        skel,
		Translation: make([]math.Vec3, n),
		Rotation:    make([]math.Quat, n),
		Scale:       make([]math.Vec3, n),
		world:       make([]math.Mat4, n),
		bones:       make([]math.Mat4, n),
		computed:    make([]bool, n),
	}
	p.ResetToBind()
	p.ComputeMatrices()
	return p
}

// Skeleton returns the skeleton this pose animates.
func (p *Pose) Skeleton() *skeleton.Skeleton {
	return p.skel
}

// ResetToBind restores every joint's local transform to its bind pose.
func (p *Pose) ResetToBind() {
	for i := range p.skel.Joints {
		j := &p.skel.Joints[i]
		p.Translation[i] = j.BindTranslation
		p.Rotation[i] = j.BindRotation
		p.Scale[i] = j.BindScale
	}
}

// ComputeMatrices recomputes world matrices for every joint (parents
// before children, via memoized recursion so joint storage order need
// not match hierarchy order), then the bone matrices.
func (p *Pose) ComputeMatrices() {
	for i := range p.computed {
		p.computed[i] = false
	}
	for i := range p.world {
		p.worldMatrix(i)
	}
	for i := range p.bones {
		p.bones[i] = p.skel.BoneMatrix(p.world[i], i)
	}
}

// worldMatrix computes (and memoizes) one joint's world matrix,
// recursing to the parent first. Parent links are indices, so there
// are no reference cycles to worry about.
func (p *Pose) worldMatrix(i int) math.Mat4 {
	if p.computed[i] {
		return p.world[i]
	}

	local := math.ComposeTRS(p.Translation[i], p.Rotation[i], p.Scale[i])

	parent := p.skel.Joints[i].Parent
	if parent >= 0 && parent < len(p.world) && parent != i {
		p.world[i] = p.worldMatrix(parent).Mul(local)
	} else {
		p.world[i] = local
	}

	p.computed[i] = true
	return p.world[i]
}

// WorldMatrix returns the world matrix for a joint index, or identity
// and false when the index is out of range.
func (p *Pose) WorldMatrix(i int) (math.Mat4, bool) {
	if i < 0 || i >= len(p.world) {
		return math.Identity(), false
	}
	return p.world[i], true
}

// BoneMatrices returns the final skinning matrices, one per joint.
// The slice is reused across evaluations; callers shipping it to
// another goroutine must copy it.
func (p *Pose) BoneMatrices() []math.Mat4 {
	return p.bones
}

// CopyBoneMatrices returns a freshly allocated copy of the bone
// matrices, safe to hand to the compute pool.
func (p *Pose) CopyBoneMatrices() []math.Mat4 {
	out := make([]math.Mat4, len(p.bones))
	copy(out, p.bones)
	return out
}
