package skeleton

import (
	gomath "math"

	"github.com/Faultbox/skinforge/pkg/math"
)

// Both the single-goroutine evaluator path and the compute workers
// call these routines, so the two paths produce identical results for
// identical inputs.

// SkinPositions blends each vertex position across its weighted bone
// matrices and writes the result to dst (x,y,z per vertex). Zero
// weights are skipped; out-of-range joint indices are skipped too, and
// the count of skipped influences is returned so the caller can log
// once instead of per vertex. dst and src may alias only if identical.
func SkinPositions(dst, src []float32, bones []math.Mat4, joints []uint16, weights []float32) int {
	vertexCount := len(src) / 3
	badJoints := 0

	for v := 0; v < vertexCount; v++ {
		px, py, pz := src[v*3], src[v*3+1], src[v*3+2]
		var ox, oy, oz float32

		base := v * MaxInfluences
		for i := 0; i < MaxInfluences; i++ {
			w := weights[base+i]
			if w == 0 {
				continue
			}
			j := int(joints[base+i])
			if j >= len(bones) {
				badJoints++
				continue
			}

			m := &bones[j]
			ox += w * (m[0]*px + m[4]*py + m[8]*pz + m[12])
			oy += w * (m[1]*px + m[5]*py + m[9]*pz + m[13])
			oz += w * (m[2]*px + m[6]*py + m[10]*pz + m[14])
		}

		dst[v*3] = ox
		dst[v*3+1] = oy
		dst[v*3+2] = oz
	}

	return badJoints
}

// SkinNormals blends each vertex normal across the upper-left 3x3 of
// its weighted bone matrices, then renormalizes. A near-zero result
// (all influencing rotations cancelled) falls back to the up vector.
func SkinNormals(dst, src []float32, bones []math.Mat4, joints []uint16, weights []float32) int {
	vertexCount := len(src) / 3
	badJoints := 0

	for v := 0; v < vertexCount; v++ {
		nx, ny, nz := src[v*3], src[v*3+1], src[v*3+2]
		var ox, oy, oz float32

		base := v * MaxInfluences
		for i := 0; i < MaxInfluences; i++ {
			w := weights[base+i]
			if w == 0 {
				continue
			}
			j := int(joints[base+i])
			if j >= len(bones) {
				badJoints++
				continue
			}

			m := &bones[j]
			ox += w * (m[0]*nx + m[4]*ny + m[8]*nz)
			oy += w * (m[1]*nx + m[5]*ny + m[9]*nz)
			oz += w * (m[2]*nx + m[6]*ny + m[10]*nz)
		}

		length := float32(gomath.Sqrt(float64(ox*ox + oy*oy + oz*oz)))
		if length < 1e-6 {
			ox, oy, oz = 0, 0, 1
		} else {
			ox /= length
			oy /= length
			oz /= length
		}

		dst[v*3] = ox
		dst[v*3+1] = oy
		dst[v*3+2] = oz
	}

	return badJoints
}
