// Package main is the headless skinforge runner: it loads an asset,
// plays a clip, and reports per-frame compute timings.
package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/skinforge/internal/compute"
	"github.com/Faultbox/skinforge/internal/config"
	"github.com/Faultbox/skinforge/internal/gltfload"
	"github.com/Faultbox/skinforge/internal/lighting"
	"github.com/Faultbox/skinforge/internal/logger"
	"github.com/Faultbox/skinforge/internal/model"
	"github.com/Faultbox/skinforge/pkg/math"
)

const (
	frameCount = 600
	frameStep  = float32(1.0 / 60.0)
)

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
		fmt.Fprintln(os.Stderr, "usage: skinforge [flags] <asset.gltf|.glb> [clip]")
		os.Exit(2)
	}

	asset, err := gltfload.Open(args[0])
	if err != nil {
		logger.Error("failed to load asset", zap.Error(err))
		os.Exit(1)
	}

	lights := defaultLights(cfg)

	m := model.New(args[0], asset.Skeleton, asset.Clips, lights)
	for _, mesh := range asset.Meshes {
		m.AddMesh(mesh.Name, mesh.Positions, mesh.Normals, mesh.Skin)
	}

	if cfg.Compute.UseWorkers {
		pool := compute.Acquire(cfg.Compute.Workers)
		defer compute.Release()
		m.AttachPool(pool)
		defer m.Close()
		logger.Info("using compute pool", zap.Int("workers", pool.WorkerCount()))
	} else {
		logger.Info("using single-threaded path")
	}

	if player := m.Player(); player != nil {
		player.Rate = cfg.Playback.Rate
		player.Loop = cfg.Playback.Loop

		clip := pickClip(player.ClipNames(), args)
		if clip == "" {
			logger.Warn("asset has no clips, rendering the bind pose")
		} else {
			logger.Info("playing clip", zap.String("clip", clip))
			player.Play(clip, 0)
		}
	}

	run(m)
}

// pickClip returns the requested clip name, or the first available one.
func pickClip(names []string, args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

func defaultLights(cfg *config.Config) *lighting.State {
	lights := lighting.NewState()
	lights.SetAmbient(0.25, 0.25, 0.3, 1)
	lights.AddDirectional(lighting.DirectionalLight{
		Enabled:      true,
		Color:        [3]float32{1, 0.98, 0.92},
		Intensity:    0.9,
		Direction:    math.Vec3{X: 0.4, Y: 1, Z: 0.6},
		CastSpecular: true,
	})
	lights.SetHemisphere(lighting.HemisphereLight{
		Enabled:     true,
		SkyColor:    [3]float32{0.2, 0.25, 0.35},
		GroundColor: [3]float32{0.1, 0.08, 0.06},
		Intensity:   0.5,
	})
	lights.SetSpecular(lighting.SpecularSettings{
		Shininess: cfg.Specular.Shininess,
		Intensity: cfg.Specular.Intensity,
		Debug:     cfg.Specular.Debug,
	})
	lights.SetCameraPosition(math.Vec3{X: 0, Y: 1.5, Z: 4})
	return lights
}

func run(m *model.Model) {
	vertices := 0
	for _, mesh := range m.Meshes() {
		vertices += mesh.VertexCount()
	}

	var total time.Duration
	worst := time.Duration(0)
	start := time.Now()
	for frame := 0; frame < frameCount; frame++ {
		frameStart := time.Now()
		m.Update(frameStep)
		elapsed := time.Since(frameStart)
		total += elapsed
		if elapsed > worst {
			worst = elapsed
		}
	}

	logger.Info("run complete",
		zap.Int("frames", frameCount),
		zap.Int("vertices", vertices),
		zap.Duration("wall", time.Since(start)),
		zap.Duration("avg_frame", total/frameCount),
		zap.Duration("worst_frame", worst))
}
