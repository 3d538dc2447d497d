package math

import "math"

// ComposeTRS builds a matrix from translation, rotation, and scale,
// applied in scale-rotate-translate order.
func ComposeTRS(translation Vec3, rotation Quat, scale Vec3) Mat4 {
	m := rotation.ToMat4()

	// Scale each basis column, then set translation directly. Cheaper
	// than three matrix multiplies and numerically identical.
	m[0] *= scale.X
	m[1] *= scale.X
	m[2] *= scale.X
	m[4] *= scale.Y
	m[5] *= scale.Y
	m[6] *= scale.Y
	m[8] *= scale.Z
	m[9] *= scale.Z
	m[10] *= scale.Z
	m[12] = translation.X
	m[13] = translation.Y
	m[14] = translation.Z

	return m
}

// Translation returns the translation column of the matrix.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[12], m[13], m[14]}
}

// WithTranslation returns a copy of the matrix with its translation
// column replaced.
func (m Mat4) WithTranslation(v Vec3) Mat4 {
	m[12] = v.X
	m[13] = v.Y
	m[14] = v.Z
	return m
}

// ScaleBasis returns a copy of the matrix with the upper-left 3x3
// block multiplied by k. The translation column is untouched.
func (m Mat4) ScaleBasis(k float32) Mat4 {
	for col := 0; col < 3; col++ {
		m[col*4+0] *= k
		m[col*4+1] *= k
		m[col*4+2] *= k
	}
	return m
}

// BasisXLength returns the length of the first basis column. A rigid
// transform yields 1; anything else carries scale.
func (m Mat4) BasisXLength() float32 {
	return float32(math.Sqrt(float64(m[0]*m[0] + m[1]*m[1] + m[2]*m[2])))
}

// TransformNormalVec3 transforms a direction by the upper-left 3x3 of
// the matrix and returns it as a Vec3. Translation is ignored; callers
// renormalize if unit length matters.
func (m Mat4) TransformNormalVec3(v Vec3) Vec3 {
	return Vec3{
		m[0]*v.X + m[4]*v.Y + m[8]*v.Z,
		m[1]*v.X + m[5]*v.Y + m[9]*v.Z,
		m[2]*v.X + m[6]*v.Y + m[10]*v.Z,
	}
}
