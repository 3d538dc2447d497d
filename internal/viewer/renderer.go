package viewer

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/skinforge/internal/logger"
	"github.com/Faultbox/skinforge/internal/model"
	"github.com/Faultbox/skinforge/pkg/math"
)

// meshBuffers is the GL state for one engine mesh. Position and color
// VBOs are dynamic: they are re-uploaded every frame from the CPU
// output buffers.
type meshBuffers struct {
	vao      uint32
	posVBO   uint32
	colorVBO uint32
	ebo      uint32

	vertexCount int32
	indexCount  int32
}

// Renderer draws model meshes with a pass-through shader. All shading
// already happened on the CPU; the shader only projects positions and
// interpolates the per-vertex colors.
type Renderer struct {
	program    uint32
	mvpUniform int32

	meshes map[*model.Mesh]*meshBuffers

	log *zap.Logger
}

// NewRenderer initializes OpenGL state. Must be called after the GL
// context exists.
func NewRenderer(width, height int) (*Renderer, error) {
	r := &Renderer{
		meshes: make(map[*model.Mesh]*meshBuffers),
		log:    logger.Named("viewer"),
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	version := gl.GoStr(gl.GetString(gl.VERSION))
	rendererName := gl.GoStr(gl.GetString(gl.RENDERER))
	r.log.Info("OpenGL initialized",
		zap.String("version", version),
		zap.String("renderer", rendererName),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)
	gl.Viewport(0, 0, int32(width), int32(height))

	var err error
	r.program, err = createProgram()
	if err != nil {
		return nil, fmt.Errorf("failed to create shader program: %w", err)
	}
	r.mvpUniform = gl.GetUniformLocation(r.program, gl.Str("uMVP\x00"))

	return r, nil
}

// Close releases all GL resources.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	for _, b := range r.meshes {
		r.deleteBuffers(b)
	}
	if r.program != 0 {
		gl.DeleteProgram(r.program)
	}
}

func (r *Renderer) deleteBuffers(b *meshBuffers) {
	if b.vao != 0 {
		gl.DeleteVertexArrays(1, &b.vao)
	}
	if b.posVBO != 0 {
		gl.DeleteBuffers(1, &b.posVBO)
	}
	if b.colorVBO != 0 {
		gl.DeleteBuffers(1, &b.colorVBO)
	}
	if b.ebo != 0 {
		gl.DeleteBuffers(1, &b.ebo)
	}
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Begin clears the frame.
func (r *Renderer) Begin() {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// AddMesh allocates GL buffers for a mesh. indices may be empty, in
// which case the mesh is drawn as a raw triangle list.
func (r *Renderer) AddMesh(mesh *model.Mesh, indices []uint32) {
	b := &meshBuffers{vertexCount: int32(mesh.VertexCount())}

	gl.GenVertexArrays(1, &b.vao)
	gl.BindVertexArray(b.vao)

	gl.GenBuffers(1, &b.posVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.posVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(mesh.Positions)*4, unsafe.Pointer(&mesh.Positions[0]), gl.DYNAMIC_DRAW)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 3*4, nil)
	gl.EnableVertexAttribArray(0)

	gl.GenBuffers(1, &b.colorVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.colorVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(mesh.Colors)*4, unsafe.Pointer(&mesh.Colors[0]), gl.DYNAMIC_DRAW)
	gl.VertexAttribPointer(1, 4, gl.FLOAT, false, 4*4, nil)
	gl.EnableVertexAttribArray(1)

	if len(indices) > 0 {
		gl.GenBuffers(1, &b.ebo)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, unsafe.Pointer(&indices[0]), gl.STATIC_DRAW)
		b.indexCount = int32(len(indices))
	}

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)

	r.meshes[mesh] = b
	r.log.Debug("mesh buffers created",
		zap.String("mesh", mesh.Name),
		zap.Int32("vertices", b.vertexCount),
		zap.Int32("indices", b.indexCount),
	)
}

// Draw re-uploads every mesh's current positions and colors and draws
// them with the given view-projection matrix.
func (r *Renderer) Draw(viewProjection *math.Mat4) {
	gl.UseProgram(r.program)
	gl.UniformMatrix4fv(r.mvpUniform, 1, false, viewProjection.Ptr())

	for mesh, b := range r.meshes {
		gl.BindVertexArray(b.vao)

		gl.BindBuffer(gl.ARRAY_BUFFER, b.posVBO)
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(mesh.Positions)*4, unsafe.Pointer(&mesh.Positions[0]))
		gl.BindBuffer(gl.ARRAY_BUFFER, b.colorVBO)
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(mesh.Colors)*4, unsafe.Pointer(&mesh.Colors[0]))

		if b.indexCount > 0 {
			gl.DrawElements(gl.TRIANGLES, b.indexCount, gl.UNSIGNED_INT, nil)
		} else {
			gl.DrawArrays(gl.TRIANGLES, 0, b.vertexCount)
		}
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func createProgram() (uint32, error) {
	vertexShaderSource := `
		#version 410 core

		layout (location = 0) in vec3 aPos;
		layout (location = 1) in vec4 aColor;

		uniform mat4 uMVP;

		out vec4 vertexColor;

		void main() {
			gl_Position = uMVP * vec4(aPos, 1.0);
			vertexColor = aColor;
		}
	` + "\x00"

	fragmentShaderSource := `
		#version 410 core

		in vec4 vertexColor;
		out vec4 FragColor;

		void main() {
			FragColor = vertexColor;
		}
	` + "\x00"

	vertexShader, err := compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, fmt.Errorf("vertex shader: %w", err)
	}
	defer gl.DeleteShader(vertexShader)

	fragmentShader, err := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, fmt.Errorf("fragment shader: %w", err)
	}
	defer gl.DeleteShader(fragmentShader)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		infoLog := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(infoLog))
		return 0, fmt.Errorf("link failed: %s", infoLog)
	}

	return program, nil
}

// compileShader compiles a shader from source.
func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)

	csources, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		infoLog := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(infoLog))
		return 0, fmt.Errorf("compile failed: %s", infoLog)
	}

	return shader, nil
}
