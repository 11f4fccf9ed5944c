package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kjzl/valorant-instalock/internal/catalog"
	"github.com/kjzl/valorant-instalock/internal/lockfile"
)

const (
	EnvPrefix  = "INSTALOCK"
	appDirName = "valorant-instalock"
	configName = "config"
	configType = "toml"
)

type ControlConfig struct {
	Listen string `mapstructure:"listen"` // empty disables the control surface
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

type CatalogConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type Config struct {
	InstalockWaitMS int            `mapstructure:"instalock_wait_ms"`
	MapAgentConfig  MapAgentConfig `mapstructure:"map_agent_config"`
	Lockfile        string         `mapstructure:"lockfile"`
	RetryInitMS     int            `mapstructure:"retry_init_ms"`
	Control         ControlConfig  `mapstructure:"control"`
	Log             LogConfig      `mapstructure:"log"`
	Cache           CacheConfig    `mapstructure:"cache"`
	Catalog         CatalogConfig  `mapstructure:"catalog"`
}

// InstalockWait is the delay between entering pregame and the first lock.
func (c Config) InstalockWait() time.Duration {
	return time.Duration(c.InstalockWaitMS) * time.Millisecond
}

// RetryInit is the delay before a failed session start is retried.
func (c Config) RetryInit() time.Duration {
	return time.Duration(c.RetryInitMS) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	configDir, _ := os.UserConfigDir()
	cacheDir, _ := os.UserCacheDir()

	v.SetDefault("instalock_wait_ms", 500)
	v.SetDefault("map_agent_config.strategy", string(StrategyNone))
	v.SetDefault("map_agent_config.default.mode", string(ModeNone))
	v.SetDefault("lockfile", lockfile.DefaultPath())
	v.SetDefault("retry_init_ms", 5000)
	v.SetDefault("control.listen", "127.0.0.1:7420")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", filepath.Join(configDir, appDirName, "logs"))
	v.SetDefault("cache.dir", filepath.Join(cacheDir, appDirName))
	v.SetDefault("catalog.base_url", catalog.DefaultBaseURL)
}

// DefaultPath is where Load looks for a config file when none is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDirName, configName+"."+configType)
}

// Load reads configuration from path (or the default location when empty),
// then environment variables prefixed INSTALOCK_. A missing default config
// file is not an error.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, appDirName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.InstalockWaitMS < 0 {
		return fmt.Errorf("instalock_wait_ms must not be negative, got %d", c.InstalockWaitMS)
	}
	if c.RetryInitMS <= 0 {
		return fmt.Errorf("retry_init_ms must be positive, got %d", c.RetryInitMS)
	}
	if c.Lockfile == "" {
		return errors.New("lockfile path is empty")
	}
	return c.MapAgentConfig.Validate()
}
