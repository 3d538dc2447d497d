package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagWorkers   = flag.Int("workers", -1, "Compute worker count (0 = auto)")
	flagNoWorkers = flag.Bool("no-workers", false, "Evaluate on the main goroutine only")
	flagRate      = flag.Float64("rate", 0, "Playback rate multiplier")
	flagNoLoop    = flag.Bool("no-loop", false, "Do not loop clips")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag command-line arguments.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagWorkers >= 0 {
		cfg.Compute.Workers = *flagWorkers
	}
	if *flagNoWorkers {
		cfg.Compute.UseWorkers = false
	}
	if *flagRate > 0 {
		cfg.Playback.Rate = float32(*flagRate)
	}
	if *flagNoLoop {
		cfg.Playback.Loop = false
	}
}
