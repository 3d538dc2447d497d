// Package main is the interactive asset viewer: it plays a skinned
// glTF asset in an SDL window with orbit camera controls, rendering
// the CPU-computed geometry and vertex colors each frame.
package main

import (
	"fmt"
	gomath "math"
	"os"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/skinforge/internal/compute"
	"github.com/Faultbox/skinforge/internal/config"
	"github.com/Faultbox/skinforge/internal/gltfload"
	"github.com/Faultbox/skinforge/internal/lighting"
	"github.com/Faultbox/skinforge/internal/logger"
	"github.com/Faultbox/skinforge/internal/model"
	"github.com/Faultbox/skinforge/internal/viewer"
	"github.com/Faultbox/skinforge/pkg/math"
)

// orbitCamera circles the origin at a fixed height, driven by mouse
// drag and wheel.
type orbitCamera struct {
	yaw      float32
	pitch    float32
	distance float32
}

func (c *orbitCamera) position() math.Vec3 {
	cosPitch := float32(gomath.Cos(float64(c.pitch)))
	return math.Vec3{
		X: c.distance * cosPitch * float32(gomath.Sin(float64(c.yaw))),
		Y: c.distance * float32(gomath.Sin(float64(c.pitch))),
		Z: c.distance * cosPitch * float32(gomath.Cos(float64(c.yaw))),
	}
}

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := config.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: skelview [flags] <asset.gltf|.glb> [clip]")
		os.Exit(2)
	}

	asset, err := gltfload.Open(args[0])
	if err != nil {
		logger.Error("failed to load asset", zap.Error(err))
		os.Exit(1)
	}

	window, err := viewer.NewWindow(viewer.WindowConfig{
		Title:      "skelview - " + args[0],
		Width:      cfg.Viewer.Width,
		Height:     cfg.Viewer.Height,
		Fullscreen: cfg.Viewer.Fullscreen,
		VSync:      cfg.Viewer.VSync,
	})
	if err != nil {
		logger.Error("failed to create window", zap.Error(err))
		os.Exit(1)
	}
	defer window.Close()

	renderer, err := viewer.NewRenderer(cfg.Viewer.Width, cfg.Viewer.Height)
	if err != nil {
		logger.Error("failed to create renderer", zap.Error(err))
		os.Exit(1)
	}
	defer renderer.Close()

	lights := lighting.NewState()
	lights.SetAmbient(0.25, 0.25, 0.3, 1)
	lights.AddDirectional(lighting.DirectionalLight{
		Enabled:      true,
		Color:        [3]float32{1, 0.98, 0.92},
		Intensity:    0.9,
		Direction:    math.Vec3{X: 0.4, Y: 1, Z: 0.6},
		CastSpecular: true,
	})
	lights.SetSpecular(lighting.SpecularSettings{
		Shininess: cfg.Specular.Shininess,
		Intensity: cfg.Specular.Intensity,
		Debug:     cfg.Specular.Debug,
	})

	m := model.New(args[0], asset.Skeleton, asset.Clips, lights)
	for _, mesh := range asset.Meshes {
		added := m.AddMesh(mesh.Name, mesh.Positions, mesh.Normals, mesh.Skin)
		renderer.AddMesh(added, mesh.Indices)
	}

	if cfg.Compute.UseWorkers {
		pool := compute.Acquire(cfg.Compute.Workers)
		defer compute.Release()
		m.AttachPool(pool)
		defer m.Close()
	}

	var clips []string
	clipIndex := 0
	if player := m.Player(); player != nil {
		player.Rate = cfg.Playback.Rate
		player.Loop = cfg.Playback.Loop
		clips = player.ClipNames()
		if len(args) > 1 {
			player.Play(args[1], 0)
		} else if len(clips) > 0 {
			player.Play(clips[0], 0)
		}
	}

	camera := &orbitCamera{pitch: 0.3, distance: 4}
	target := math.Vec3{Y: 1}
	if bounds, ok := m.Bounds(); ok {
		target = bounds.Center()
		if r := bounds.Radius(); r > 0 {
			camera.distance = r * 2.5
		}
	}
	specDebug := cfg.Specular.Debug

	var leftMouseDown bool
	var lastMouseX, lastMouseY int32

	running := true
	last := time.Now()
	for running {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				running = false

			case *sdl.WindowEvent:
				if e.Event == sdl.WINDOWEVENT_RESIZED || e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
					w, h := window.GetSize()
					renderer.Resize(w, h)
				}

			case *sdl.MouseButtonEvent:
				if e.Button == sdl.BUTTON_LEFT {
					leftMouseDown = e.State == sdl.PRESSED
					lastMouseX, lastMouseY = e.X, e.Y
				}

			case *sdl.MouseMotionEvent:
				if leftMouseDown {
					camera.yaw += float32(e.X-lastMouseX) * 0.01
					camera.pitch += float32(e.Y-lastMouseY) * 0.01
					if camera.pitch > 1.5 {
						camera.pitch = 1.5
					}
					if camera.pitch < -1.5 {
						camera.pitch = -1.5
					}
				}
				lastMouseX, lastMouseY = e.X, e.Y

			case *sdl.MouseWheelEvent:
				camera.distance -= float32(e.Y) * 0.3
				if camera.distance < 0.5 {
					camera.distance = 0.5
				}

			case *sdl.KeyboardEvent:
				if e.Type != sdl.KEYDOWN {
					break
				}
				switch e.Keysym.Sym {
				case sdl.K_ESCAPE:
					running = false
				case sdl.K_SPACE:
					if player := m.Player(); player != nil {
						if player.Paused() {
							player.Resume()
						} else {
							player.Pause()
						}
					}
				case sdl.K_TAB:
					if player := m.Player(); player != nil && len(clips) > 0 {
						clipIndex = (clipIndex + 1) % len(clips)
						player.Play(clips[clipIndex], 0)
						logger.Info("switched clip", zap.String("clip", clips[clipIndex]))
					}
				case sdl.K_d:
					specDebug = !specDebug
					spec := lights.Specular()
					spec.Debug = specDebug
					lights.SetSpecular(spec)
				}
			}
		}

		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		eye := target.Add(camera.position())
		lights.SetCameraPosition(eye)
		m.Update(dt)

		w, h := window.GetSize()
		projection := math.Perspective(gomath.Pi/4, float32(w)/float32(h), 0.1, 100)
		view := math.LookAt(eye, target, math.Vec3{Y: 1})
		viewProjection := projection.Mul(view)

		renderer.Begin()
		renderer.Draw(&viewProjection)
		window.SwapBuffers()
	}
}
