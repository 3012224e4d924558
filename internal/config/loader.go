package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "qrkit"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "QRKIT"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, which is where
// the CLI binds its flags.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on a caller-supplied viper instance.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads the first qrkit.yaml found on the search path, if any, then
// applies environment variables and defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.prepare()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.decode(true)
}

// LoadWithFile loads configuration from a specific file path. An empty path
// falls back to Load.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); err != nil {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.prepare()
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}
	return l.decode(true)
}

// Current unmarshals the settings viper holds now, including flag values
// bound after loading. It does not validate.
func (l *Loader) Current() (*Config, error) {
	return l.decode(false)
}

func (l *Loader) decode(validate bool) (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) prepare() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	setDefaults(l.v)
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("verbose", d.Verbose)

	v.SetDefault("decoder.formats", d.Decoder.Formats)
	v.SetDefault("decoder.try_harder", d.Decoder.TryHarder)
	v.SetDefault("decoder.multi", d.Decoder.Multi)
	v.SetDefault("decoder.try_inverted", d.Decoder.TryInverted)
	v.SetDefault("decoder.character_set", d.Decoder.CharacterSet)
	v.SetDefault("decoder.max_width", d.Decoder.MaxWidth)
	v.SetDefault("decoder.max_height", d.Decoder.MaxHeight)

	v.SetDefault("encoder.level", d.Encoder.Level)
	v.SetDefault("encoder.max_version", d.Encoder.MaxVersion)
	v.SetDefault("encoder.module_size", d.Encoder.ModuleSize)
	v.SetDefault("encoder.border", d.Encoder.Border)
	v.SetDefault("encoder.foreground", d.Encoder.Foreground)
	v.SetDefault("encoder.background", d.Encoder.Background)
	v.SetDefault("encoder.logo_fraction", d.Encoder.LogoFraction)
	v.SetDefault("encoder.image_format", d.Encoder.ImageFormat)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.file", d.Output.File)
	v.SetDefault("output.overlay_dir", d.Output.OverlayDir)
	v.SetDefault("output.overlay_color", d.Output.OverlayColor)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.cache_ttl_sec", d.Server.CacheTTLSec)
	v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	v.SetDefault("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
	v.SetDefault("server.rate_limit.requests_per_day", d.Server.RateLimit.RequestsPerDay)
	v.SetDefault("server.rate_limit.max_data_per_day", d.Server.RateLimit.MaxDataPerDay)

	v.SetDefault("batch.workers", d.Batch.Workers)
	v.SetDefault("batch.recursive", d.Batch.Recursive)
	v.SetDefault("batch.include", d.Batch.Include)
	v.SetDefault("batch.exclude", d.Batch.Exclude)
	v.SetDefault("batch.continue_on_error", d.Batch.ContinueOnError)
	v.SetDefault("batch.pages", d.Batch.Pages)

	v.SetDefault("scan.interval_ms", d.Scan.IntervalMS)
	v.SetDefault("scan.max_frames", d.Scan.MaxFrames)
	v.SetDefault("scan.stop_on_first", d.Scan.StopOnFirst)
}

// GenerateDefaultConfigFile writes a YAML file holding every default.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	v := viper.New()
	setDefaults(v)
	return v.WriteConfigAs(filename)
}

// GetConfigSearchPaths returns the directories searched for qrkit.yaml.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	if dir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(dir, "qrkit"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "qrkit"))
	}
	return append(paths, "/etc/qrkit")
}
