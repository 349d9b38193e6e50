// Package config loads the process-wide configuration layer: a YAML file
// plus environment overrides, unmarshaled through viper/mapstructure the
// same way the original desktop app's config layer did.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/akarpov/sonance/internal/platform"
)

// Config is the full process configuration: storage/debug ambient options
// plus the playback option table. The persisted settings store does not
// seed itself from it; settings.GetPlayback seeds from its own defaults.
type Config struct {
	Debug bool `mapstructure:"debug"`

	Storage struct {
		DatabasePath string `mapstructure:"database_path"`
		CacheDir     string `mapstructure:"cache_dir"`
		MaxCacheSize int64  `mapstructure:"max_cache_size"`
		EnableWAL    bool   `mapstructure:"enable_wal"`
	} `mapstructure:"storage"`

	Download struct {
		MaxConcurrent int    `mapstructure:"max_concurrent"`
		ChunkSize     int    `mapstructure:"chunk_size"`
		TempDir       string `mapstructure:"temp_dir"`
		RatePerSecond int    `mapstructure:"rate_per_second"`
	} `mapstructure:"download"`

	Playback struct {
		OutputDevice            string  `mapstructure:"output_device"`
		ExclusiveMode           bool    `mapstructure:"exclusive_mode"`
		BackendType             string  `mapstructure:"backend_type"`
		ALSAPlugin              string  `mapstructure:"alsa_plugin"`
		PreferredSampleRate     int     `mapstructure:"preferred_sample_rate"`
		DeviceSampleRateLimits  map[string]int `mapstructure:"device_sample_rate_limits"`
		LimitQualityToDevice    bool    `mapstructure:"limit_quality_to_device"`
		NormalizationEnabled    bool    `mapstructure:"normalization_enabled"`
		NormalizationTargetLUFS float64 `mapstructure:"normalization_target_lufs"`
		GaplessEnabled          bool    `mapstructure:"gapless_enabled"`
		StreamFirstTrack        bool    `mapstructure:"stream_first_track"`
		StreamBufferSeconds     float64 `mapstructure:"stream_buffer_seconds"`
		StreamingOnly           bool    `mapstructure:"streaming_only"`
		PWForceBitperfect       bool    `mapstructure:"pw_force_bitperfect"`
	} `mapstructure:"playback"`
}

// Load reads config.yaml from configPath (or the platform config dir, then
// ./configs, then the working directory) layered under SONANCE_-prefixed
// environment overrides, seeded with setDefaults(). Options setDefaults()
// does not cover (output_device, alsa_plugin, preferred_sample_rate,
// device_sample_rate_limits) start at their zero values.
func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		configDir, err := platform.GetConfigDir()
		if err != nil {
			return nil, err
		}
		viper.AddConfigPath(configDir)
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("SONANCE")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, err
	}

	optimizeForPlatform(&cfg)

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("debug", false)

	dataDir, _ := platform.GetDataDir()
	cacheDir, _ := platform.GetCacheDir()

	viper.SetDefault("storage.database_path", filepath.Join(dataDir, "sonance.db"))
	viper.SetDefault("storage.cache_dir", cacheDir)
	viper.SetDefault("storage.max_cache_size", 512*1024*1024)
	viper.SetDefault("storage.enable_wal", true)

	viper.SetDefault("download.max_concurrent", 3)
	viper.SetDefault("download.chunk_size", 1024*1024)
	viper.SetDefault("download.temp_dir", filepath.Join(cacheDir, "temp"))
	viper.SetDefault("download.rate_per_second", 0) // 0 = unlimited

	viper.SetDefault("playback.backend_type", "pipewire")
	viper.SetDefault("playback.exclusive_mode", false)
	viper.SetDefault("playback.limit_quality_to_device", false)
	viper.SetDefault("playback.normalization_enabled", true)
	viper.SetDefault("playback.normalization_target_lufs", -18.0)
	viper.SetDefault("playback.gapless_enabled", true)
	viper.SetDefault("playback.stream_first_track", true)
	viper.SetDefault("playback.stream_buffer_seconds", 2.0)
	viper.SetDefault("playback.streaming_only", false)
	viper.SetDefault("playback.pw_force_bitperfect", false)
}

func optimizeForPlatform(cfg *Config) {
	switch runtime.GOOS {
	case "linux":
		if cfg.Download.ChunkSize < 256*1024 {
			cfg.Download.ChunkSize = 1024 * 1024
		}
	case "darwin":
		if cfg.Playback.BackendType == "" {
			cfg.Playback.BackendType = "pipewire"
		}
	}
}

func ensureDirectories(cfg *Config) error {
	dirs := []string{
		filepath.Dir(cfg.Storage.DatabasePath),
		cfg.Storage.CacheDir,
		cfg.Download.TempDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// Save writes the current config back to the platform config directory,
// mirroring what the desktop app's settings screen did on every change.
func (c *Config) Save() error {
	configDir, err := platform.GetConfigDir()
	if err != nil {
		return err
	}

	configFile := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configFile)
}
