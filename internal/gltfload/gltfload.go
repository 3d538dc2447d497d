// Package gltfload decodes glTF 2.0 documents into the engine's
// skeleton, clip and mesh types. It is a thin boundary layer: the
// engine itself never touches the interchange format.
package gltfload

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/skinforge/internal/anim"
	"github.com/Faultbox/skinforge/internal/logger"
	"github.com/Faultbox/skinforge/internal/skeleton"
	"github.com/Faultbox/skinforge/pkg/math"
)

// Mesh is one decoded primitive. Skinned primitives keep their
// geometry in bind space; static primitives are baked into world
// space using the node hierarchy.
type Mesh struct {
	Name      string
	Positions []float32
	Normals   []float32
	Indices   []uint32
	Skin      *skeleton.SkinData
}

// Asset is everything the engine needs from one document.
type Asset struct {
	Skeleton *skeleton.Skeleton
	Clips    []*anim.Clip
	Meshes   []*Mesh
}

// Open reads and decodes the glTF (or GLB) file at path.
func Open(path string) (*Asset, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return decode(doc, path)
}

func decode(doc *gltf.Document, name string) (*Asset, error) {
	log := logger.Named("gltfload").With(zap.String("asset", name))
	asset := &Asset{}

	// Joint node index -> joint index, empty when the document has no
	// skin.
	jointByNode := map[int]int{}

	if len(doc.Skins) > 0 {
		if len(doc.Skins) > 1 {
			log.Warn("multiple skins in document, using the first",
				zap.Int("skins", len(doc.Skins)))
		}
		skel, mapping, err := buildSkeleton(doc, doc.Skins[0], name)
		if err != nil {
			return nil, err
		}
		asset.Skeleton = skel
		jointByNode = mapping
	}

	clips, err := buildClips(doc, jointByNode, log)
	if err != nil {
		return nil, err
	}
	asset.Clips = clips

	meshes, err := buildMeshes(doc, asset.Skeleton, log)
	if err != nil {
		return nil, err
	}
	asset.Meshes = meshes

	log.Info("asset decoded",
		zap.Int("meshes", len(asset.Meshes)),
		zap.Int("clips", len(asset.Clips)),
		zap.Bool("skeleton", asset.Skeleton != nil))
	return asset, nil
}

func buildSkeleton(doc *gltf.Document, skin *gltf.Skin, name string) (*skeleton.Skeleton, map[int]int, error) {
	jointByNode := make(map[int]int, len(skin.Joints))
	for i, nodeIndex := range skin.Joints {
		jointByNode[int(nodeIndex)] = i
	}

	parentOf := nodeParents(doc)

	joints := make([]skeleton.Joint, len(skin.Joints))
	for i, nodeIndex := range skin.Joints {
		node := doc.Nodes[nodeIndex]

		parent := -1
		if p, ok := parentOf[int(nodeIndex)]; ok {
			if pj, isJoint := jointByNode[p]; isJoint {
				parent = pj
			}
		}

		t, r, s := nodeTRS(node)
		joints[i] = skeleton.Joint{
			Index:           i,
			Name:            node.Name,
			Parent:          parent,
			BindTranslation: t,
			BindRotation:    r,
			BindScale:       s,
		}
	}

	var inverseBind []math.Mat4
	if skin.InverseBindMatrices != nil {
		raw, err := modeler.ReadAccessor(doc, doc.Accessors[*skin.InverseBindMatrices], nil)
		if err != nil {
			return nil, nil, errors.Wrap(err, "reading inverse bind matrices")
		}
		columns, ok := raw.([][4][4]float32)
		if !ok {
			return nil, nil, errors.Errorf("unexpected inverse bind accessor type %T", raw)
		}
		inverseBind = make([]math.Mat4, len(columns))
		for i, m := range columns {
			// glTF matrices are column-major; the reshaped accessor's
			// first index is the column.
			for c := 0; c < 4; c++ {
				for r := 0; r < 4; r++ {
					inverseBind[i][c*4+r] = m[c][r]
				}
			}
		}
	} else {
		inverseBind = make([]math.Mat4, len(joints))
		for i := range inverseBind {
			inverseBind[i] = math.Identity()
		}
	}

	skelName := skin.Name
	if skelName == "" {
		skelName = name
	}
	return skeleton.New(skelName, joints, inverseBind), jointByNode, nil
}

func buildClips(doc *gltf.Document, jointByNode map[int]int, log *zap.Logger) ([]*anim.Clip, error) {
	clips := make([]*anim.Clip, 0, len(doc.Animations))

	for animIndex, gltfAnim := range doc.Animations {
		var samplers []anim.Sampler
		var channels []anim.Channel

		for _, channel := range gltfAnim.Channels {
			if channel.Sampler < 0 || channel.Sampler >= len(gltfAnim.Samplers) {
				log.Debug("skipping channel with out-of-range sampler",
					zap.String("clip", gltfAnim.Name),
					zap.Int("sampler", channel.Sampler))
				continue
			}
			if channel.Target.Node == nil {
				continue
			}
			joint, ok := jointByNode[int(*channel.Target.Node)]
			if !ok {
				// Channels animating non-joint nodes (cameras, loose
				// meshes) are out of scope for the skeleton player.
				log.Debug("skipping channel targeting non-joint node",
					zap.String("clip", gltfAnim.Name),
					zap.Int("node", int(*channel.Target.Node)))
				continue
			}

			var property anim.Property
			stride := 3
			switch channel.Target.Path {
			case gltf.TRSTranslation:
				property = anim.PropertyTranslation
			case gltf.TRSRotation:
				property = anim.PropertyRotation
				stride = 4
			case gltf.TRSScale:
				property = anim.PropertyScale
			default:
				log.Debug("skipping unsupported channel path",
					zap.String("clip", gltfAnim.Name),
					zap.String("path", string(channel.Target.Path)))
				continue
			}

			sampler := gltfAnim.Samplers[channel.Sampler]
			if sampler.Interpolation == gltf.InterpolationCubicSpline {
				log.Warn("cubic spline interpolation not supported, skipping channel",
					zap.String("clip", gltfAnim.Name))
				continue
			}

			times, values, err := readSampler(doc, sampler, stride)
			if err != nil {
				return nil, errors.Wrapf(err, "clip %q", gltfAnim.Name)
			}

			interp := anim.InterpolationLinear
			if sampler.Interpolation == gltf.InterpolationStep {
				interp = anim.InterpolationStep
			}
			samplers = append(samplers, anim.Sampler{
				Times:         times,
				Values:        values,
				Stride:        stride,
				Interpolation: interp,
			})
			channels = append(channels, anim.Channel{
				Joint:    joint,
				Property: property,
				Sampler:  len(samplers) - 1,
			})
		}

		if len(channels) == 0 {
			log.Warn("clip has no usable channels", zap.String("clip", gltfAnim.Name))
			continue
		}

		clipName := gltfAnim.Name
		if clipName == "" {
			clipName = fmt.Sprintf("clip_%d", animIndex)
		}
		clips = append(clips, anim.NewClip(clipName, samplers, channels))
	}

	return clips, nil
}

func readSampler(doc *gltf.Document, sampler *gltf.AnimationSampler, stride int) ([]float32, []float32, error) {
	rawTimes, err := modeler.ReadAccessor(doc, doc.Accessors[sampler.Input], nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading keyframe times")
	}
	times, ok := rawTimes.([]float32)
	if !ok {
		return nil, nil, errors.Errorf("unexpected keyframe time type %T", rawTimes)
	}

	rawValues, err := modeler.ReadAccessor(doc, doc.Accessors[sampler.Output], nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading keyframe values")
	}

	values := make([]float32, 0, len(times)*stride)
	switch v := rawValues.(type) {
	case [][3]float32:
		for _, e := range v {
			values = append(values, e[0], e[1], e[2])
		}
	case [][4]float32:
		for _, e := range v {
			values = append(values, e[0], e[1], e[2], e[3])
		}
	default:
		return nil, nil, errors.Errorf("unexpected keyframe value type %T", rawValues)
	}
	return times, values, nil
}

func buildMeshes(doc *gltf.Document, skel *skeleton.Skeleton, log *zap.Logger) ([]*Mesh, error) {
	parentOf := nodeParents(doc)
	var meshes []*Mesh

	for nodeIndex, node := range doc.Nodes {
		if node.Mesh == nil {
			continue
		}
		gltfMesh := doc.Meshes[*node.Mesh]
		skinned := node.Skin != nil && skel != nil

		var world math.Mat4
		if !skinned {
			world = worldMatrix(doc, parentOf, nodeIndex)
		}

		for primIndex, prim := range gltfMesh.Primitives {
			mesh, err := buildPrimitive(doc, gltfMesh, prim, primIndex, skinned, skel, log)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %q", gltfMesh.Name)
			}
			if mesh == nil {
				continue
			}
			if !skinned {
				bakeTransform(mesh, &world)
			}
			meshes = append(meshes, mesh)
		}
	}

	return meshes, nil
}

func buildPrimitive(doc *gltf.Document, gltfMesh *gltf.Mesh, prim *gltf.Primitive, primIndex int,
	skinned bool, skel *skeleton.Skeleton, log *zap.Logger,
) (*Mesh, error) {
	posAccessor, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		log.Warn("primitive without positions, skipping",
			zap.String("mesh", gltfMesh.Name), zap.Int("primitive", primIndex))
		return nil, nil
	}

	positions, err := modeler.ReadPosition(doc, doc.Accessors[posAccessor], nil)
	if err != nil {
		return nil, errors.Wrap(err, "reading positions")
	}

	mesh := &Mesh{Name: fmt.Sprintf("%s/%d", gltfMesh.Name, primIndex)}
	mesh.Positions = make([]float32, 0, len(positions)*3)
	for _, p := range positions {
		mesh.Positions = append(mesh.Positions, p[0], p[1], p[2])
	}

	mesh.Normals = make([]float32, len(positions)*3)
	if normalAccessor, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[normalAccessor], nil)
		if err != nil {
			return nil, errors.Wrap(err, "reading normals")
		}
		for i, n := range normals {
			mesh.Normals[i*3] = n[0]
			mesh.Normals[i*3+1] = n[1]
			mesh.Normals[i*3+2] = n[2]
		}
	} else {
		// No normals in the file; leave them degenerate so the
		// lighting evaluator falls back to its default up vector.
		log.Warn("primitive without normals",
			zap.String("mesh", gltfMesh.Name), zap.Int("primitive", primIndex))
	}

	if prim.Indices != nil {
		indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, errors.Wrap(err, "reading indices")
		}
		mesh.Indices = indices
	}

	if skinned {
		jointAccessor, hasJoints := prim.Attributes[gltf.JOINTS_0]
		weightAccessor, hasWeights := prim.Attributes[gltf.WEIGHTS_0]
		if hasJoints && hasWeights {
			skin, err := readSkin(doc, int(jointAccessor), int(weightAccessor), skel.Name)
			if err != nil {
				return nil, err
			}
			mesh.Skin = skin
		} else {
			log.Warn("skinned node primitive missing joint or weight attributes",
				zap.String("mesh", gltfMesh.Name), zap.Int("primitive", primIndex))
		}
	}

	return mesh, nil
}

func readSkin(doc *gltf.Document, jointAccessor, weightAccessor int, skeletonName string) (*skeleton.SkinData, error) {
	rawJoints, err := modeler.ReadJoints(doc, doc.Accessors[jointAccessor], nil)
	if err != nil {
		return nil, errors.Wrap(err, "reading joint indices")
	}
	rawWeights, err := modeler.ReadWeights(doc, doc.Accessors[weightAccessor], nil)
	if err != nil {
		return nil, errors.Wrap(err, "reading joint weights")
	}

	skin := &skeleton.SkinData{
		SkeletonName: skeletonName,
		Joints:       make([]uint16, 0, len(rawJoints)*skeleton.MaxInfluences),
		Weights:      make([]float32, 0, len(rawWeights)*skeleton.MaxInfluences),
	}
	for _, j := range rawJoints {
		skin.Joints = append(skin.Joints, j[0], j[1], j[2], j[3])
	}
	for _, w := range rawWeights {
		skin.Weights = append(skin.Weights, w[0], w[1], w[2], w[3])
	}
	return skin, nil
}

// nodeParents maps each node index to its parent node index.
func nodeParents(doc *gltf.Document) map[int]int {
	parents := make(map[int]int)
	for i, node := range doc.Nodes {
		for _, child := range node.Children {
			parents[int(child)] = i
		}
	}
	return parents
}

func nodeTRS(node *gltf.Node) (math.Vec3, math.Quat, math.Vec3) {
	t := math.Vec3{
		X: float32(node.Translation[0]),
		Y: float32(node.Translation[1]),
		Z: float32(node.Translation[2]),
	}
	r := math.Quat{
		X: float32(node.Rotation[0]),
		Y: float32(node.Rotation[1]),
		Z: float32(node.Rotation[2]),
		W: float32(node.Rotation[3]),
	}
	if r == (math.Quat{}) {
		r = math.QuatIdentity()
	}
	s := math.Vec3{
		X: float32(node.Scale[0]),
		Y: float32(node.Scale[1]),
		Z: float32(node.Scale[2]),
	}
	if s == (math.Vec3{}) {
		s = math.Vec3{X: 1, Y: 1, Z: 1}
	}
	return t, r, s
}

func localMatrix(node *gltf.Node) math.Mat4 {
	if node.Matrix != [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1} &&
		node.Matrix != [16]float64{} {
		var m math.Mat4
		for i, v := range node.Matrix {
			m[i] = float32(v)
		}
		return m
	}
	t, r, s := nodeTRS(node)
	return math.ComposeTRS(t, r, s)
}

// worldMatrix walks the parent chain up to a root. Documents are
// small enough that memoization is not worth the bookkeeping here.
func worldMatrix(doc *gltf.Document, parentOf map[int]int, nodeIndex int) math.Mat4 {
	m := localMatrix(doc.Nodes[nodeIndex])
	for {
		p, ok := parentOf[nodeIndex]
		if !ok {
			return m
		}
		m = localMatrix(doc.Nodes[p]).Mul(m)
		nodeIndex = p
	}
}

func bakeTransform(mesh *Mesh, world *math.Mat4) {
	for v := 0; v < len(mesh.Positions)/3; v++ {
		px, py, pz := mesh.Positions[v*3], mesh.Positions[v*3+1], mesh.Positions[v*3+2]
		mesh.Positions[v*3] = world[0]*px + world[4]*py + world[8]*pz + world[12]
		mesh.Positions[v*3+1] = world[1]*px + world[5]*py + world[9]*pz + world[13]
		mesh.Positions[v*3+2] = world[2]*px + world[6]*py + world[10]*pz + world[14]

		n := world.TransformNormalVec3(math.Vec3{
			X: mesh.Normals[v*3],
			Y: mesh.Normals[v*3+1],
			Z: mesh.Normals[v*3+2],
		})
		mesh.Normals[v*3] = n.X
		mesh.Normals[v*3+1] = n.Y
		mesh.Normals[v*3+2] = n.Z
	}
}
