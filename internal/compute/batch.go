// Package compute spreads per-frame vertex work (transforms, skinning,
// lighting) across a fixed pool of worker goroutines. Geometry is
// registered once per mesh with buffer ownership handed to a worker;
// per-frame requests then carry only small parameters and results come
// back as packed per-worker buffers.
package compute

import (
	"github.com/Faultbox/skinforge/internal/lighting"
	"github.com/Faultbox/skinforge/pkg/math"
)

// MeshID addresses registered geometry. Stable for the lifetime of the
// registration.
type MeshID int

// BatchKind discriminates the three request kinds.
type BatchKind int

const (
	// BatchTransform applies a matrix to registered positions.
	BatchTransform BatchKind = iota
	// BatchSkin skins registered geometry with shared bone matrices,
	// optionally lighting the result inline.
	BatchSkin
	// BatchStaticLight recomputes vertex colors for registered static
	// geometry.
	BatchStaticLight
)

func (k BatchKind) String() string {
	switch k {
	case BatchTransform:
		return "transform"
	case BatchSkin:
		return "skin"
	case BatchStaticLight:
		return "static-light"
	default:
		return "unknown"
	}
}

// TransformItem is one mesh plus the matrix to apply to it.
type TransformItem struct {
	Mesh   MeshID
	Matrix math.Mat4
}

// skinJob is one queued skin sub-batch: meshes sharing a skeleton are
// skinned together against one bone-matrix array. A non-nil lighting
// snapshot makes the worker light the freshly skinned geometry inline,
// avoiding a second round trip.
type skinJob struct {
	meshes   []MeshID
	bones    []math.Mat4
	lighting *lighting.Snapshot
}

// staticLightJob is one queued static-lighting sub-batch.
type staticLightJob struct {
	meshes   []MeshID
	lighting *lighting.Snapshot
}

// BatchResult is one worker's packed reply for one batch kind. Per-
// mesh ranges are addressed through Offsets: mesh i covers vertices
// [Offsets[i], Offsets[i+1]) of each populated buffer (3 floats per
// vertex for positions/normals, 4 for colors). Meshes missing from the
// worker's cache are simply absent.
type BatchResult struct {
	Worker  int
	Kind    BatchKind
	Meshes  []MeshID
	Offsets []int

	Positions []float32
	Normals   []float32
	Colors    []float32
}

// MeshRange returns the vertex range for a mesh in the packed buffers,
// or ok=false when the mesh is not part of this result.
func (r *BatchResult) MeshRange(id MeshID) (start, end int, ok bool) {
	for i, m := range r.Meshes {
		if m == id {
			return r.Offsets[i], r.Offsets[i+1], true
		}
	}
	return 0, 0, false
}

// Worker-bound messages. The worker loop pattern-matches on the
// concrete type.

type registerTransformMsg struct {
	id        MeshID
	positions []float32
}

type registerSkinMsg struct {
	id        MeshID
	positions []float32
	normals   []float32
	joints    []uint16
	weights   []float32
}

type registerStaticMsg struct {
	id        MeshID
	positions []float32
	normals   []float32
}

type unregisterMsg struct {
	id MeshID
}

type batchMsg struct {
	kind       BatchKind
	transforms []TransformItem
	skins      []skinJob
	statics    []staticLightJob
	reply      chan<- *BatchResult
}
