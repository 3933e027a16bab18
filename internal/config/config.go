// Package config loads the engine's storage configuration from a YAML file,
// grounded on the teacher repo's internal.LoadConfig (same viper.New +
// SetConfigFile + Unmarshal shape), retargeted from the teacher's server
// config onto this module's buffer-pool/record/index settings.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the top-level shape read from a storage engine's YAML config
// file.
type Config struct {
	BufferPool struct {
		Capacity int    `mapstructure:"capacity"`
		Policy   string `mapstructure:"policy"` // "lru" or "clock"
	} `mapstructure:"buffer_pool"`

	Record struct {
		DataDir string `mapstructure:"data_dir"`
	} `mapstructure:"record"`

	Index struct {
		DataDir string `mapstructure:"data_dir"`
		Order   int32  `mapstructure:"order"`
	} `mapstructure:"index"`

	Server struct {
		Port  int  `mapstructure:"port"`
		Debug bool `mapstructure:"debug"`
	} `mapstructure:"server"`
}

// DefaultBufferPoolCapacity mirrors bufferpool.New's own fallback, kept here
// too so a config file that omits buffer_pool.capacity still produces a
// sane Config before the pool is even constructed.
const DefaultBufferPoolCapacity = 16

// Load reads and unmarshals the YAML config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if cfg.BufferPool.Capacity <= 0 {
		cfg.BufferPool.Capacity = DefaultBufferPoolCapacity
	}
	if cfg.BufferPool.Policy == "" {
		cfg.BufferPool.Policy = "clock"
	}
	return &cfg, nil
}
