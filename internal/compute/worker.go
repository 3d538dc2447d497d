package compute

import (
	"context"

	"go.uber.org/zap"

	"github.com/Faultbox/skinforge/internal/lighting"
	"github.com/Faultbox/skinforge/internal/skeleton"
)

// skinEntry is the cached geometry for the skinning path.
type skinEntry struct {
	positions []float32
	normals   []float32
	joints    []uint16
	weights   []float32
}

// staticEntry is the cached geometry for the static-lighting path.
type staticEntry struct {
	positions []float32
	normals   []float32
}

// worker owns its three caches exclusively; the only writers are the
// register/unregister messages from the orchestrating goroutine, so no
// locking is needed.
type worker struct {
	index    int
	requests chan any

	transformCache map[MeshID][]float32
	skinCache      map[MeshID]skinEntry
	staticCache    map[MeshID]staticEntry

	log *zap.Logger
}

func newWorker(index int, log *zap.Logger) *worker {
	return &worker{
		index:          index,
		requests:       make(chan any, 64),
		transformCache: make(map[MeshID][]float32),
		skinCache:      make(map[MeshID]skinEntry),
		staticCache:    make(map[MeshID]staticEntry),
		log:            log.With(zap.Int("worker", index)),
	}
}

// run is the worker loop. Registration messages for a mesh are
// processed before any batch referencing it because both travel the
// same channel in submission order.
func (w *worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.requests:
			switch m := msg.(type) {
			case registerTransformMsg:
				w.transformCache[m.id] = m.positions
			case registerSkinMsg:
				w.skinCache[m.id] = skinEntry{
					positions: m.positions,
					normals:   m.normals,
					joints:    m.joints,
					weights:   m.weights,
				}
			case registerStaticMsg:
				w.staticCache[m.id] = staticEntry{positions: m.positions, normals: m.normals}
			case unregisterMsg:
				delete(w.transformCache, m.id)
				delete(w.skinCache, m.id)
				delete(w.staticCache, m.id)
			case batchMsg:
				result := w.runBatch(m)
				select {
				case m.reply <- result:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (w *worker) runBatch(m batchMsg) *BatchResult {
	switch m.kind {
	case BatchTransform:
		return w.runTransform(m.transforms)
	case BatchSkin:
		return w.runSkin(m.skins)
	case BatchStaticLight:
		return w.runStaticLight(m.statics)
	default:
		return &BatchResult{Worker: w.index, Kind: m.kind, Offsets: []int{0}}
	}
}

// runTransform applies each item's matrix to its cached positions and
// packs the results into one buffer with an offset table. Items whose
// mesh is not cached here are skipped without failing the batch.
func (w *worker) runTransform(items []TransformItem) *BatchResult {
	result := &BatchResult{Worker: w.index, Kind: BatchTransform, Offsets: []int{0}}

	for i := range items {
		src, ok := w.transformCache[items[i].Mesh]
		if !ok {
			continue
		}
		vertexCount := len(src) / 3
		m := &items[i].Matrix

		base := len(result.Positions)
		result.Positions = append(result.Positions, make([]float32, vertexCount*3)...)
		dst := result.Positions[base:]
		for v := 0; v < vertexCount; v++ {
			px, py, pz := src[v*3], src[v*3+1], src[v*3+2]
			dst[v*3] = m[0]*px + m[4]*py + m[8]*pz + m[12]
			dst[v*3+1] = m[1]*px + m[5]*py + m[9]*pz + m[13]
			dst[v*3+2] = m[2]*px + m[6]*py + m[10]*pz + m[14]
		}

		result.Meshes = append(result.Meshes, items[i].Mesh)
		result.Offsets = append(result.Offsets, result.Offsets[len(result.Offsets)-1]+vertexCount)
	}

	return result
}

// runSkin skins every cached mesh in the jobs and packs positions and
// normals (and colors, when a job ships a lighting snapshot) into
// single concatenated buffers.
func (w *worker) runSkin(jobs []skinJob) *BatchResult {
	result := &BatchResult{Worker: w.index, Kind: BatchSkin, Offsets: []int{0}}

	for j := range jobs {
		job := &jobs[j]
		for _, id := range job.meshes {
			entry, ok := w.skinCache[id]
			if !ok {
				continue
			}
			vertexCount := len(entry.positions) / 3

			posBase := len(result.Positions)
			result.Positions = append(result.Positions, make([]float32, vertexCount*3)...)
			nrmBase := len(result.Normals)
			result.Normals = append(result.Normals, make([]float32, vertexCount*3)...)

			posOut := result.Positions[posBase:]
			nrmOut := result.Normals[nrmBase:]

			bad := skeleton.SkinPositions(posOut, entry.positions, job.bones, entry.joints, entry.weights)
			bad += skeleton.SkinNormals(nrmOut, entry.normals, job.bones, entry.joints, entry.weights)
			if bad > 0 {
				w.log.Warn("skipped out-of-range joint influences",
					zap.Int("mesh", int(id)), zap.Int("influences", bad))
			}

			if job.lighting != nil {
				// Light the freshly skinned geometry in place, saving
				// a second round trip.
				colBase := len(result.Colors)
				result.Colors = append(result.Colors, make([]float32, vertexCount*4)...)
				lighting.LightVertices(result.Colors[colBase:], posOut, nrmOut, job.lighting, nil, nil)
			}

			result.Meshes = append(result.Meshes, id)
			result.Offsets = append(result.Offsets, result.Offsets[len(result.Offsets)-1]+vertexCount)
		}
	}

	return result
}

// runStaticLight recomputes vertex colors from cached positions and
// normals.
func (w *worker) runStaticLight(jobs []staticLightJob) *BatchResult {
	result := &BatchResult{Worker: w.index, Kind: BatchStaticLight, Offsets: []int{0}}

	for j := range jobs {
		job := &jobs[j]
		if job.lighting == nil {
			continue
		}
		for _, id := range job.meshes {
			entry, ok := w.staticCache[id]
			if !ok {
				continue
			}
			vertexCount := len(entry.normals) / 3

			base := len(result.Colors)
			result.Colors = append(result.Colors, make([]float32, vertexCount*4)...)
			lighting.LightVertices(result.Colors[base:], entry.positions, entry.normals, job.lighting, nil, nil)

			result.Meshes = append(result.Meshes, id)
			result.Offsets = append(result.Offsets, result.Offsets[len(result.Offsets)-1]+vertexCount)
		}
	}

	return result
}
