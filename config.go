package rescomp

import (
	"runtime"

	"github.com/bodgit/rescomp/blockmap"
	"github.com/bodgit/rescomp/cutter"
	"github.com/spf13/viper"
)

// Configuration keys
const (
	KeyMapHardLimit     = "map.hard_limit"
	KeyMapSoftLimit     = "map.soft_limit"
	KeyIterationsMedium = "sprite.iterations.medium"
	KeyIterationsSlow   = "sprite.iterations.slow"
	KeyIterationsMax    = "sprite.iterations.max"
	KeySpriteWorkers    = "sprite.workers"
	KeyPipelineWorkers  = "pipeline.workers"
	KeyAlignDefault     = "align.default"
	KeyHeader           = "header"
)

// Config holds the tunables of a compilation
type Config struct {
	// MapLimits bounds the memory needed to unpack a MAP
	MapLimits blockmap.Limits
	// Iterations is the slow search budget for each optimization level.
	// NewConfig never sets a budget below 1 for the slow levels.
	Iterations map[cutter.Level]int64
	// SpriteWorkers is the number of goroutines cutting one frame
	SpriteWorkers int
	// PipelineWorkers is the number of files compiled at once by Build
	PipelineWorkers int
	// DefaultAlign is used by ALIGN without an argument
	DefaultAlign int
	// Header enables writing the C header
	Header bool
}

var defaultIterations = map[string]int64{
	KeyIterationsMedium: 100000,
	KeyIterationsSlow:   500000,
	KeyIterationsMax:    2000000,
}

// iterations returns the budget at key. A budget below 1 would let the slow
// search run until cancelled so the default is used instead.
func iterations(v *viper.Viper, key string) int64 {
	if n := v.GetInt64(key); n > 0 {
		return n
	}
	return defaultIterations[key]
}

// SetDefaults registers the default value of every key with v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyMapHardLimit, blockmap.DefaultLimits.Hard)
	v.SetDefault(KeyMapSoftLimit, blockmap.DefaultLimits.Soft)
	for k, n := range defaultIterations {
		v.SetDefault(k, n)
	}
	v.SetDefault(KeySpriteWorkers, runtime.NumCPU())
	v.SetDefault(KeyPipelineWorkers, 10)
	v.SetDefault(KeyAlignDefault, 524288)
	v.SetDefault(KeyHeader, true)
}

// NewConfig reads a Config from v, falling back to the defaults for any
// key that is not set
func NewConfig(v *viper.Viper) Config {
	SetDefaults(v)

	c := Config{
		MapLimits: blockmap.Limits{
			Hard: v.GetInt(KeyMapHardLimit),
			Soft: v.GetInt(KeyMapSoftLimit),
		},
		Iterations: map[cutter.Level]int64{
			cutter.Fast:   0,
			cutter.Medium: iterations(v, KeyIterationsMedium),
			cutter.Slow:   iterations(v, KeyIterationsSlow),
			cutter.Max:    iterations(v, KeyIterationsMax),
		},
		SpriteWorkers:   v.GetInt(KeySpriteWorkers),
		PipelineWorkers: v.GetInt(KeyPipelineWorkers),
		DefaultAlign:    v.GetInt(KeyAlignDefault),
		Header:          v.GetBool(KeyHeader),
	}

	if c.SpriteWorkers < 1 {
		c.SpriteWorkers = 1
	}
	if c.PipelineWorkers < 1 {
		c.PipelineWorkers = 1
	}

	return c
}

// DefaultConfig returns the Config with every key at its default
func DefaultConfig() Config {
	return NewConfig(viper.New())
}
