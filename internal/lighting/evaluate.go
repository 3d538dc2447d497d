package lighting

import (
	gomath "math"

	"github.com/Faultbox/skinforge/pkg/math"
)

// MaxLitChannel is the per-channel ceiling applied to lit colors. It
// sits above 1 on purpose: moderate overbright survives into the
// vertex colors instead of washing out at the first light.
const MaxLitChannel = 2.0

// specularDebugColor is the marker written in place of real specular
// terms when debug mode is on.
var specularDebugColor = [3]float32{1, 0, 1}

// LightVertices computes one RGBA color per vertex from the snapshot.
// dst holds 4 floats per vertex; positions and normals hold 3.
// positions may be nil, which disables spot lights and specular. model
// and camera are optional. The function is pure: the single-goroutine
// fallback path and the pool workers call exactly this code, so both
// paths produce identical colors for identical inputs.
func LightVertices(dst, positions, normals []float32, snap *Snapshot, model *math.Mat4, camera *math.Vec3) {
	vertexCount := len(normals) / 3
	if len(dst) < vertexCount*4 {
		vertexCount = len(dst) / 4
	}
	havePositions := len(positions) >= vertexCount*3

	if camera == nil {
		camera = snap.Camera
	}

	specActive := snap.Specular.Intensity > 0 && camera != nil && havePositions
	spotsActive := havePositions && anySpotEnabled(snap.Spots)
	needWorldPos := spotsActive || specActive

	for v := 0; v < vertexCount; v++ {
		normal := math.Vec3{X: normals[v*3], Y: normals[v*3+1], Z: normals[v*3+2]}
		var worldPos math.Vec3
		if havePositions {
			worldPos = math.Vec3{X: positions[v*3], Y: positions[v*3+1], Z: positions[v*3+2]}
		}

		if model != nil {
			normal = model.TransformNormalVec3(normal)
			if needWorldPos {
				worldPos = model.TransformVec3(worldPos)
			}
		}
		normal = renormalize(normal)

		r := snap.Ambient[0]
		g := snap.Ambient[1]
		b := snap.Ambient[2]

		if snap.Hemisphere.Enabled {
			blend := (normal.Z + 1) * 0.5
			h := snap.Hemisphere
			r += (h.GroundColor[0] + (h.SkyColor[0]-h.GroundColor[0])*blend) * h.Intensity
			g += (h.GroundColor[1] + (h.SkyColor[1]-h.GroundColor[1])*blend) * h.Intensity
			b += (h.GroundColor[2] + (h.SkyColor[2]-h.GroundColor[2])*blend) * h.Intensity
		}

		for i := range snap.Directionals {
			l := &snap.Directionals[i]
			if !l.Enabled {
				continue
			}

			diffuse := normal.Dot(l.Direction)
			if diffuse > 0 {
				term := diffuse * l.Intensity
				r += l.Color[0] * term
				g += l.Color[1] * term
				b += l.Color[2] * term
			}

			if specActive && l.CastSpecular {
				r, g, b = addSpecular(r, g, b, normal, worldPos, *camera, l.Direction, l.Color, l.Intensity, snap.Specular)
			}
		}

		if spotsActive {
			for i := range snap.Spots {
				l := &snap.Spots[i]
				if !l.Enabled {
					continue
				}

				toVertex := worldPos.Sub(l.Position)
				dist := toVertex.Length()
				if dist < 1e-6 {
					continue
				}
				dir := toVertex.Scale(1 / dist)

				angular := coneAttenuation(l.Direction.Dot(dir), l.InnerAngle, l.OuterAngle, l.Falloff)
				if angular <= 0 {
					continue
				}
				distAtten := distanceAttenuation(dist, l.Range)
				if distAtten <= 0 {
					continue
				}

				// Direction from the vertex toward the light.
				toLight := dir.Scale(-1)
				atten := angular * distAtten

				diffuse := normal.Dot(toLight)
				if diffuse > 0 {
					term := diffuse * l.Intensity * atten
					r += l.Color[0] * term
					g += l.Color[1] * term
					b += l.Color[2] * term
				}

				if specActive && l.CastSpecular {
					r, g, b = addSpecular(r, g, b, normal, worldPos, *camera, toLight, l.Color, l.Intensity*atten, snap.Specular)
				}
			}
		}

		dst[v*4] = clampChannel(r)
		dst[v*4+1] = clampChannel(g)
		dst[v*4+2] = clampChannel(b)
		dst[v*4+3] = 1
	}
}

// addSpecular accumulates a Blinn-Phong highlight. In debug mode the
// marker color is written instead of the light's own color, modulated
// by the same term so highlight regions stay inspectable without
// touching the non-specular channels.
func addSpecular(r, g, b float32, normal, worldPos, camera, toLight math.Vec3, color [3]float32, intensity float32, cfg SpecularSettings) (float32, float32, float32) {
	view := camera.Sub(worldPos).Normalize()
	half := toLight.Add(view).Normalize()

	ndh := normal.Dot(half)
	if ndh <= 0 {
		return r, g, b
	}

	term := float32(gomath.Pow(float64(ndh), float64(cfg.Shininess))) * cfg.Intensity * intensity
	if cfg.Debug {
		r += specularDebugColor[0] * term
		g += specularDebugColor[1] * term
		b += specularDebugColor[2] * term
	} else {
		r += color[0] * term
		g += color[1] * term
		b += color[2] * term
	}
	return r, g, b
}

// coneAttenuation maps the cosine of the axis/vertex angle to [0,1]:
// full intensity inside the inner cone, a falloff-shaped ramp through
// the penumbra, zero outside the outer cone.
func coneAttenuation(cosAngle, innerAngle, outerAngle, falloff float32) float32 {
	innerCos := float32(gomath.Cos(float64(innerAngle)))
	outerCos := float32(gomath.Cos(float64(outerAngle)))

	if cosAngle <= outerCos {
		return 0
	}
	if cosAngle >= innerCos {
		return 1
	}

	t := (cosAngle - outerCos) / (innerCos - outerCos)
	if falloff != 1 {
		// t^0 is 1, so a zero falloff lights the whole penumbra fully.
		t = float32(gomath.Pow(float64(t), float64(falloff)))
	}
	return t
}

// distanceAttenuation returns the radial falloff for a spot light.
// With a positive range the curve falls smoothly to zero at the range;
// with range 0 it is inverse-square with a +1 offset so the value
// stays finite at the light position. The two curves do not meet as
// range approaches zero; both shapes are intentional.
func distanceAttenuation(dist, lightRange float32) float32 {
	if lightRange > 0 {
		if dist >= lightRange {
			return 0
		}
		f := 1 - dist/lightRange
		return f * f
	}
	return 1 / (1 + dist*dist)
}

func anySpotEnabled(spots []SpotLight) bool {
	for i := range spots {
		if spots[i].Enabled {
			return true
		}
	}
	return false
}

func renormalize(v math.Vec3) math.Vec3 {
	n := v.Normalize()
	if n.Length() == 0 {
		// Degenerate normal; substitute the canonical up vector.
		return math.Vec3{Z: 1}
	}
	return n
}

func clampChannel(c float32) float32 {
	if c > MaxLitChannel {
		return MaxLitChannel
	}
	if c < 0 {
		return 0
	}
	return c
}
