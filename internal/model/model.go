// Package model glues a skeleton, its animation player, and a set of
// meshes to the compute pool. It decides per frame which meshes need
// re-skinning, re-transforming or re-lighting, and routes that work
// either through the pool or through the single-threaded fallback
// path. Both paths run the same skinning and lighting code, so the
// output is identical either way.
package model

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/skinforge/internal/anim"
	"github.com/Faultbox/skinforge/internal/compute"
	"github.com/Faultbox/skinforge/internal/lighting"
	"github.com/Faultbox/skinforge/internal/logger"
	"github.com/Faultbox/skinforge/internal/skeleton"
	"github.com/Faultbox/skinforge/pkg/math"
)

// litVersionNone marks a mesh whose colors have never been computed.
const litVersionNone = ^uint64(0)

// meshIDCounter hands out pool mesh ids. Models sharing one pool must
// never collide, so the counter is process wide.
var meshIDCounter int64

func nextMeshID() compute.MeshID {
	return compute.MeshID(atomic.AddInt64(&meshIDCounter, 1))
}

// Mesh is one drawable vertex buffer set. Positions, Normals and
// Colors hold the current frame's output in world space; they are
// rewritten by Update and are safe to read between Update calls.
type Mesh struct {
	Name string

	// Object-space source geometry, never mutated after AddMesh.
	srcPositions []float32
	srcNormals   []float32
	skin         *skeleton.SkinData

	Positions []float32
	Normals   []float32
	Colors    []float32

	id         compute.MeshID
	litVersion uint64
	badLogged  bool
}

// Skinned reports whether the mesh deforms with the skeleton.
func (m *Mesh) Skinned() bool {
	return m.skin != nil
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.srcPositions) / 3
}

// Bounds is an axis-aligned box.
type Bounds struct {
	Min, Max math.Vec3
}

// Center returns the box midpoint.
func (b Bounds) Center() math.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Radius returns half the box diagonal.
func (b Bounds) Radius() float32 {
	return b.Max.Sub(b.Min).Length() / 2
}

// Bounds computes the box around the mesh's current world-space
// positions. ok is false for an empty mesh.
func (m *Mesh) Bounds() (Bounds, bool) {
	if len(m.Positions) < 3 {
		return Bounds{}, false
	}
	b := Bounds{
		Min: math.Vec3{X: m.Positions[0], Y: m.Positions[1], Z: m.Positions[2]},
		Max: math.Vec3{X: m.Positions[0], Y: m.Positions[1], Z: m.Positions[2]},
	}
	for v := 1; v < len(m.Positions)/3; v++ {
		x, y, z := m.Positions[v*3], m.Positions[v*3+1], m.Positions[v*3+2]
		if x < b.Min.X {
			b.Min.X = x
		}
		if y < b.Min.Y {
			b.Min.Y = y
		}
		if z < b.Min.Z {
			b.Min.Z = z
		}
		if x > b.Max.X {
			b.Max.X = x
		}
		if y > b.Max.Y {
			b.Max.Y = y
		}
		if z > b.Max.Z {
			b.Max.Z = z
		}
	}
	return b, true
}

// Model owns a posed skeleton, an animation player and its meshes.
// All methods must be called from the same goroutine.
type Model struct {
	Name string

	skel   *skeleton.Skeleton
	pose   *anim.Pose
	player *anim.Player
	lights *lighting.State

	meshes []*Mesh
	byID   map[compute.MeshID]*Mesh

	pool *compute.Pool

	transform      math.Mat4
	transformDirty bool
	poseDirty      bool

	log *zap.Logger
}

// New builds a model around a skeleton and its clips. A nil skeleton
// is allowed for purely static models; Play becomes a no-op then.
// lights must not be nil.
func New(name string, skel *skeleton.Skeleton, clips []*anim.Clip, lights *lighting.State) *Model {
	m := &Model{
		Name:      name,
		skel:      skel,
		lights:    lights,
		byID:      make(map[compute.MeshID]*Mesh),
		transform: math.Identity(),
		log:       logger.Named("model").With(zap.String("model", name)),
	}
	if skel != nil {
		m.pose = anim.NewPose(skel)
		m.player = anim.NewPlayer(m.pose, clips)
		m.poseDirty = true
	}
	return m
}

// Player returns the animation player, or nil for static models.
func (m *Model) Player() *anim.Player {
	return m.player
}

// Meshes returns the live mesh list. Callers read the output buffers
// from it; they must not mutate the slice.
func (m *Model) Meshes() []*Mesh {
	return m.meshes
}

// Bounds returns the union of all mesh bounds. ok is false when the
// model has no geometry.
func (m *Model) Bounds() (Bounds, bool) {
	var out Bounds
	found := false
	for _, mesh := range m.meshes {
		b, ok := mesh.Bounds()
		if !ok {
			continue
		}
		if !found {
			out = b
			found = true
			continue
		}
		if b.Min.X < out.Min.X {
			out.Min.X = b.Min.X
		}
		if b.Min.Y < out.Min.Y {
			out.Min.Y = b.Min.Y
		}
		if b.Min.Z < out.Min.Z {
			out.Min.Z = b.Min.Z
		}
		if b.Max.X > out.Max.X {
			out.Max.X = b.Max.X
		}
		if b.Max.Y > out.Max.Y {
			out.Max.Y = b.Max.Y
		}
		if b.Max.Z > out.Max.Z {
			out.Max.Z = b.Max.Z
		}
	}
	return out, found
}

// AddMesh adds a mesh with its own copy of the source geometry. skin
// may be nil for static geometry; an invalid skin is rejected with a
// warning and the mesh falls back to static.
func (m *Model) AddMesh(name string, positions, normals []float32, skin *skeleton.SkinData) *Mesh {
	mesh := &Mesh{
		Name:         name,
		srcPositions: append([]float32(nil), positions...),
		srcNormals:   append([]float32(nil), normals...),
		id:           nextMeshID(),
		litVersion:   litVersionNone,
	}
	if skin != nil {
		if m.skel == nil {
			m.log.Warn("skinned mesh on a model without a skeleton, rendering static",
				zap.String("mesh", name))
			skin = nil
		} else if !skin.Valid() || skin.VertexCount() != mesh.VertexCount() {
			m.log.Warn("rejecting malformed skin data, mesh will render static",
				zap.String("mesh", name))
		} else {
			mesh.skin = skin
		}
	}

	n := mesh.VertexCount()
	mesh.Positions = make([]float32, n*3)
	mesh.Normals = make([]float32, n*3)
	mesh.Colors = make([]float32, n*4)
	for i := range mesh.Colors {
		mesh.Colors[i] = 1
	}
	m.bakeStatic(mesh)

	m.meshes = append(m.meshes, mesh)
	m.byID[mesh.id] = mesh
	if m.pool != nil {
		m.registerMesh(mesh)
	}
	return mesh
}

// SetTransform replaces the model matrix. Static geometry is
// re-transformed and re-lit on the next Update.
func (m *Model) SetTransform(t math.Mat4) {
	m.transform = t
	m.transformDirty = true
}

// Transform returns the current model matrix.
func (m *Model) Transform() math.Mat4 {
	return m.transform
}

// AttachPool routes per-frame work through p. Each mesh's source
// geometry is copied into the pool caches; the model keeps its own
// copies, so ownership transfer is safe.
func (m *Model) AttachPool(p *compute.Pool) {
	if m.pool == p {
		return
	}
	if m.pool != nil {
		m.DetachPool()
	}
	m.pool = p
	if p == nil {
		return
	}
	for _, mesh := range m.meshes {
		m.registerMesh(mesh)
	}
}

// DetachPool unregisters every mesh and returns to the fallback path.
func (m *Model) DetachPool() {
	if m.pool == nil {
		return
	}
	for _, mesh := range m.meshes {
		m.pool.Unregister(mesh.id)
	}
	m.pool = nil
}

func (m *Model) registerMesh(mesh *Mesh) {
	if mesh.Skinned() {
		m.pool.RegisterSkin(mesh.id,
			append([]float32(nil), mesh.srcPositions...),
			append([]float32(nil), mesh.srcNormals...),
			append([]uint16(nil), mesh.skin.Joints...),
			append([]float32(nil), mesh.skin.Weights...))
		return
	}
	m.pool.RegisterTransform(mesh.id, append([]float32(nil), mesh.srcPositions...))
	// The static-light cache holds world-space geometry: it must be
	// refreshed whenever the transform changes.
	m.pool.RegisterStaticLight(mesh.id,
		append([]float32(nil), mesh.Positions...),
		append([]float32(nil), mesh.Normals...))
}

// bakeStatic writes the world-space transform of the source geometry
// into the mesh output buffers.
func (m *Model) bakeStatic(mesh *Mesh) {
	t := &m.transform
	for v := 0; v < mesh.VertexCount(); v++ {
		px, py, pz := mesh.srcPositions[v*3], mesh.srcPositions[v*3+1], mesh.srcPositions[v*3+2]
		mesh.Positions[v*3] = t[0]*px + t[4]*py + t[8]*pz + t[12]
		mesh.Positions[v*3+1] = t[1]*px + t[5]*py + t[9]*pz + t[13]
		mesh.Positions[v*3+2] = t[2]*px + t[6]*py + t[10]*pz + t[14]

		n := t.TransformNormalVec3(math.Vec3{
			X: mesh.srcNormals[v*3],
			Y: mesh.srcNormals[v*3+1],
			Z: mesh.srcNormals[v*3+2],
		})
		mesh.Normals[v*3] = n.X
		mesh.Normals[v*3+1] = n.Y
		mesh.Normals[v*3+2] = n.Z
	}
}

// Update advances the animation by dt seconds and refreshes every
// mesh that needs it, flushing the pool once at the end so all
// results land atomically.
func (m *Model) Update(dt float32) {
	if m.player != nil {
		wasPosed := m.player.Playing()
		m.player.Update(dt)
		if wasPosed || m.player.Playing() {
			m.poseDirty = true
		}
	}

	lightVersion := m.lights.Version()
	var snap *lighting.Snapshot

	if m.transformDirty {
		m.retransformStatics()
		m.transformDirty = false
	}

	var skinIDs []compute.MeshID
	var staticIDs []compute.MeshID

	for _, mesh := range m.meshes {
		if mesh.Skinned() {
			if !m.poseDirty && mesh.litVersion == lightVersion {
				continue
			}
			if snap == nil {
				snap = m.lights.Snapshot()
			}
			if m.pool != nil {
				skinIDs = append(skinIDs, mesh.id)
			} else {
				m.skinFallback(mesh, snap)
			}
			mesh.litVersion = lightVersion
			continue
		}

		if mesh.litVersion == lightVersion {
			continue
		}
		if snap == nil {
			snap = m.lights.Snapshot()
		}
		if m.pool != nil {
			staticIDs = append(staticIDs, mesh.id)
		} else {
			lighting.LightVertices(mesh.Colors, mesh.Positions, mesh.Normals, snap, nil, nil)
		}
		mesh.litVersion = lightVersion
	}
	m.poseDirty = false

	if m.pool == nil {
		return
	}
	if len(skinIDs) > 0 {
		m.pool.QueueSkin(skinIDs, m.pose.BoneMatrices(), snap)
	}
	if len(staticIDs) > 0 {
		m.pool.QueueStaticLight(staticIDs, snap)
	}
	if len(skinIDs) > 0 || len(staticIDs) > 0 {
		m.applyResults(m.pool.Flush())
	}
}

// retransformStatics recomputes world-space geometry for every static
// mesh after a transform change. The pool's transform batch handles
// positions; normals are rotated locally since they do not travel
// through that cache. The static-light caches are re-registered with
// the fresh world geometry.
func (m *Model) retransformStatics() {
	var pending []compute.MeshID
	for _, mesh := range m.meshes {
		if mesh.Skinned() {
			continue
		}
		if m.pool != nil {
			m.pool.QueueTransform(mesh.id, m.transform)
			pending = append(pending, mesh.id)
		} else {
			m.bakeStatic(mesh)
		}
		// Force a relight from the moved geometry.
		mesh.litVersion = litVersionNone
	}
	if m.pool == nil || len(pending) == 0 {
		return
	}

	m.applyResults(m.pool.Flush())
	t := &m.transform
	for _, id := range pending {
		mesh := m.byID[id]
		for v := 0; v < mesh.VertexCount(); v++ {
			n := t.TransformNormalVec3(math.Vec3{
				X: mesh.srcNormals[v*3],
				Y: mesh.srcNormals[v*3+1],
				Z: mesh.srcNormals[v*3+2],
			})
			mesh.Normals[v*3] = n.X
			mesh.Normals[v*3+1] = n.Y
			mesh.Normals[v*3+2] = n.Z
		}
		m.pool.RegisterStaticLight(mesh.id,
			append([]float32(nil), mesh.Positions...),
			append([]float32(nil), mesh.Normals...))
	}
}

// skinFallback runs the worker computation on the calling goroutine.
func (m *Model) skinFallback(mesh *Mesh, snap *lighting.Snapshot) {
	bones := m.pose.BoneMatrices()
	bad := skeleton.SkinPositions(mesh.Positions, mesh.srcPositions, bones, mesh.skin.Joints, mesh.skin.Weights)
	bad += skeleton.SkinNormals(mesh.Normals, mesh.srcNormals, bones, mesh.skin.Joints, mesh.skin.Weights)
	if bad > 0 && !mesh.badLogged {
		m.log.Warn("skipped out-of-range joint influences",
			zap.String("mesh", mesh.Name), zap.Int("influences", bad))
		mesh.badLogged = true
	}
	lighting.LightVertices(mesh.Colors, mesh.Positions, mesh.Normals, snap, nil, nil)
}

// applyResults copies packed batch output into the destination
// buffers. Meshes belonging to other models sharing the pool are
// skipped.
func (m *Model) applyResults(results []*compute.BatchResult) {
	for _, r := range results {
		for i, id := range r.Meshes {
			mesh, ok := m.byID[id]
			if !ok {
				continue
			}
			start, end := r.Offsets[i], r.Offsets[i+1]
			if len(r.Positions) > 0 {
				copy(mesh.Positions, r.Positions[start*3:end*3])
			}
			if len(r.Normals) > 0 {
				copy(mesh.Normals, r.Normals[start*3:end*3])
			}
			if len(r.Colors) > 0 {
				copy(mesh.Colors, r.Colors[start*4:end*4])
			}
		}
	}
}

// Close detaches the pool. The meshes stay readable.
func (m *Model) Close() {
	m.DetachPool()
}
