// Package config handles engine configuration loading and management.
package config

// Config holds all engine settings.
type Config struct {
	Compute  ComputeConfig  `yaml:"compute"`
	Playback PlaybackConfig `yaml:"playback"`
	Specular SpecularConfig `yaml:"specular"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ComputeConfig holds parallel compute pool settings.
type ComputeConfig struct {
	// Workers is the worker goroutine count. 0 selects the default
	// (hardware concurrency minus one, clamped to [1, 8]).
	Workers int `yaml:"workers"`
	// UseWorkers controls whether model updates are dispatched to the
	// pool or evaluated on the calling goroutine.
	UseWorkers bool `yaml:"use_workers"`
}

// PlaybackConfig holds default animation playback settings.
type PlaybackConfig struct {
	Rate float32 `yaml:"rate"` // Playback rate multiplier
	Loop bool    `yaml:"loop"` // Loop clips by default
}

// SpecularConfig holds global specular highlight settings.
type SpecularConfig struct {
	Shininess float32 `yaml:"shininess"` // Blinn-Phong exponent, >= 1
	Intensity float32 `yaml:"intensity"` // Global multiplier, >= 0
	Debug     bool    `yaml:"debug"`     // Replace specular with marker color
}

// ViewerConfig holds display settings for the SDL viewer.
type ViewerConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Compute: ComputeConfig{
			Workers:    0,
			UseWorkers: true,
		},
		Playback: PlaybackConfig{
			Rate: 1.0,
			Loop: true,
		},
		Specular: SpecularConfig{
			Shininess: 32,
			Intensity: 1.0,
			Debug:     false,
		},
		Viewer: ViewerConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
