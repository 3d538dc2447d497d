package compute

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
	goutils "go.viam.com/utils"

	"github.com/Faultbox/skinforge/internal/lighting"
	"github.com/Faultbox/skinforge/internal/logger"
	"github.com/Faultbox/skinforge/internal/skeleton"
	"github.com/Faultbox/skinforge/pkg/math"
)

// MaxWorkers caps the worker count regardless of hardware concurrency.
const MaxWorkers = 8

// DefaultWorkerCount returns hardware concurrency minus one, clamped
// to [1, MaxWorkers].
func DefaultWorkerCount() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	if n > MaxWorkers {
		n = MaxWorkers
	}
	return n
}

// Pool owns the worker goroutines and the per-frame request queues.
// All methods must be called from a single orchestrating goroutine;
// the workers never touch the Pool itself.
type Pool struct {
	workers []*worker

	// Round-robin cursor for assigning registrations to workers.
	next int

	// Mesh-to-worker assignment per cache kind.
	transformAssign map[MeshID]int
	skinAssign      map[MeshID]int
	staticAssign    map[MeshID]int

	// Per-worker queues drained by Flush.
	queuedTransforms map[int][]TransformItem
	queuedSkins      map[int][]skinJob
	queuedStatics    map[int][]staticLightJob

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup

	log *zap.Logger
}

// NewPool starts workerCount workers (0 selects DefaultWorkerCount).
func NewPool(workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount()
	}
	if workerCount > MaxWorkers {
		workerCount = MaxWorkers
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	p := &Pool{
		cancelCtx:        cancelCtx,
		cancelFunc:       cancelFunc,
		transformAssign:  make(map[MeshID]int),
		skinAssign:       make(map[MeshID]int),
		staticAssign:     make(map[MeshID]int),
		queuedTransforms: make(map[int][]TransformItem),
		queuedSkins:      make(map[int][]skinJob),
		queuedStatics:    make(map[int][]staticLightJob),
		log:              logger.Named("compute"),
	}

	for i := 0; i < workerCount; i++ {
		w := newWorker(i, p.log)
		p.workers = append(p.workers, w)
		p.activeBackgroundWorkers.Add(1)
		goutils.ManagedGo(func() {
			w.run(cancelCtx)
		}, p.activeBackgroundWorkers.Done)
	}

	p.log.Info("compute pool started", zap.Int("workers", workerCount))
	return p
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return len(p.workers)
}

// Close terminates all workers. Registered geometry is discarded.
func (p *Pool) Close() {
	p.cancelFunc()
	p.activeBackgroundWorkers.Wait()
	p.log.Info("compute pool stopped")
}

func (p *Pool) nextWorker() int {
	i := p.next
	p.next = (p.next + 1) % len(p.workers)
	return i
}

func (p *Pool) send(workerIndex int, msg any) {
	select {
	case p.workers[workerIndex].requests <- msg:
	case <-p.cancelCtx.Done():
	}
}

// RegisterTransform caches positions for the transform path on one
// worker, chosen round-robin. The pool takes ownership of the slice:
// the caller must hand over a copy it will not touch again.
func (p *Pool) RegisterTransform(id MeshID, positions []float32) {
	wi, ok := p.transformAssign[id]
	if !ok {
		wi = p.nextWorker()
		p.transformAssign[id] = wi
	}
	p.send(wi, registerTransformMsg{id: id, positions: positions})
}

// RegisterSkin caches skinning geometry on one worker. The pool takes
// ownership of all four slices. Meshes whose joint or weight buffers
// do not cover every vertex are rejected; later requests naming them
// are dropped like any other unregistered mesh.
func (p *Pool) RegisterSkin(id MeshID, positions, normals []float32, joints []uint16, weights []float32) {
	n := len(positions) / 3
	if len(normals) != n*3 || len(joints) != n*skeleton.MaxInfluences || len(weights) != n*skeleton.MaxInfluences {
		p.log.Warn("rejecting skin registration with mismatched buffer lengths",
			zap.Int("mesh", int(id)),
			zap.Int("vertices", n),
			zap.Int("joints", len(joints)),
			zap.Int("weights", len(weights)))
		return
	}
	wi, ok := p.skinAssign[id]
	if !ok {
		wi = p.nextWorker()
		p.skinAssign[id] = wi
	}
	p.send(wi, registerSkinMsg{id: id, positions: positions, normals: normals, joints: joints, weights: weights})
}

// RegisterStaticLight caches positions and normals for the static
// relighting path. The pool takes ownership of both slices. Mismatched
// buffer lengths are rejected the same way RegisterSkin rejects them.
func (p *Pool) RegisterStaticLight(id MeshID, positions, normals []float32) {
	if len(positions) != len(normals) {
		p.log.Warn("rejecting lighting registration with mismatched buffer lengths",
			zap.Int("mesh", int(id)),
			zap.Int("positions", len(positions)),
			zap.Int("normals", len(normals)))
		return
	}
	wi, ok := p.staticAssign[id]
	if !ok {
		wi = p.nextWorker()
		p.staticAssign[id] = wi
	}
	p.send(wi, registerStaticMsg{id: id, positions: positions, normals: normals})
}

// Unregister clears the mesh from every worker cache. Requests already
// queued or in flight that name the mesh are skipped worker-side.
func (p *Pool) Unregister(id MeshID) {
	for wi := range p.workers {
		p.send(wi, unregisterMsg{id: id})
	}
	delete(p.transformAssign, id)
	delete(p.skinAssign, id)
	delete(p.staticAssign, id)
}

// QueueTransform queues one transform request. Nothing is sent until
// Flush. Unregistered meshes are dropped silently.
func (p *Pool) QueueTransform(id MeshID, matrix math.Mat4) {
	wi, ok := p.transformAssign[id]
	if !ok {
		p.log.Debug("transform request for unregistered mesh", zap.Int("mesh", int(id)))
		return
	}
	p.queuedTransforms[wi] = append(p.queuedTransforms[wi], TransformItem{Mesh: id, Matrix: matrix})
}

// QueueSkin queues a skin request for meshes sharing one skeleton. The
// bone matrices are copied per receiving worker so no slice is shared
// across goroutines. A non-nil snapshot requests inline lighting of
// the skinned result.
func (p *Pool) QueueSkin(ids []MeshID, bones []math.Mat4, snap *lighting.Snapshot) {
	perWorker := make(map[int][]MeshID)
	for _, id := range ids {
		wi, ok := p.skinAssign[id]
		if !ok {
			p.log.Debug("skin request for unregistered mesh", zap.Int("mesh", int(id)))
			continue
		}
		perWorker[wi] = append(perWorker[wi], id)
	}

	for wi, meshes := range perWorker {
		bonesCopy := make([]math.Mat4, len(bones))
		copy(bonesCopy, bones)
		p.queuedSkins[wi] = append(p.queuedSkins[wi], skinJob{
			meshes:   meshes,
			bones:    bonesCopy,
			lighting: snap,
		})
	}
}

// QueueStaticLight queues a relighting request for static meshes.
func (p *Pool) QueueStaticLight(ids []MeshID, snap *lighting.Snapshot) {
	perWorker := make(map[int][]MeshID)
	for _, id := range ids {
		wi, ok := p.staticAssign[id]
		if !ok {
			p.log.Debug("lighting request for unregistered mesh", zap.Int("mesh", int(id)))
			continue
		}
		perWorker[wi] = append(perWorker[wi], id)
	}

	for wi, meshes := range perWorker {
		p.queuedStatics[wi] = append(p.queuedStatics[wi], staticLightJob{meshes: meshes, lighting: snap})
	}
}

// Flush posts exactly one message per worker per queued request kind,
// then waits for every worker that received work to reply. Results
// become visible to the caller all at once, never piecemeal, so a
// frame's geometry updates apply atomically.
func (p *Pool) Flush() []*BatchResult {
	expected := len(p.queuedTransforms) + len(p.queuedSkins) + len(p.queuedStatics)
	if expected == 0 {
		return nil
	}

	replies := make(chan *BatchResult, expected)

	for wi, items := range p.queuedTransforms {
		p.send(wi, batchMsg{kind: BatchTransform, transforms: items, reply: replies})
	}
	for wi, jobs := range p.queuedSkins {
		p.send(wi, batchMsg{kind: BatchSkin, skins: jobs, reply: replies})
	}
	for wi, jobs := range p.queuedStatics {
		p.send(wi, batchMsg{kind: BatchStaticLight, statics: jobs, reply: replies})
	}

	p.queuedTransforms = make(map[int][]TransformItem)
	p.queuedSkins = make(map[int][]skinJob)
	p.queuedStatics = make(map[int][]staticLightJob)

	results := make([]*BatchResult, 0, expected)
	for len(results) < expected {
		select {
		case r := <-replies:
			results = append(results, r)
		case <-p.cancelCtx.Done():
			return results
		}
	}
	return results
}

// Process-wide shared instance with acquire/release semantics.

var (
	sharedMu   sync.Mutex
	sharedPool *Pool
	sharedRefs int
)

// Acquire returns the shared pool, constructing it on first use.
// workerCount only applies to that first construction.
func Acquire(workerCount int) *Pool {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedPool == nil {
		sharedPool = NewPool(workerCount)
	}
	sharedRefs++
	return sharedPool
}

// Release drops one reference to the shared pool, disposing it (and
// terminating all workers) when the count returns to zero.
func Release() {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedRefs == 0 {
		return
	}
	sharedRefs--
	if sharedRefs == 0 {
		sharedPool.Close()
		sharedPool = nil
	}
}
