package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Predict  PredictConfig  `mapstructure:"predict"`
	Database DatabaseConfig `mapstructure:"database"`
	History  HistoryConfig  `mapstructure:"history"`
	UI       UIConfig       `mapstructure:"ui"`
	Export   ExportConfig   `mapstructure:"export"`
}

// PredictConfig points at the external prediction service.
type PredictConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Field    string        `mapstructure:"field"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// HistoryConfig controls whether diagnoses are recorded locally.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	ImageDir   string   `mapstructure:"image_dir"`
	Extensions []string `mapstructure:"extensions"`
}

// ExportConfig controls where rendered reports are written.
type ExportConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

// DefaultEndpoint is the prediction service address used when nothing is configured.
const DefaultEndpoint = "http://localhost:5000/predict"

func setDefaults(v *viper.Viper) {
	v.SetDefault("predict.endpoint", DefaultEndpoint)
	v.SetDefault("predict.timeout", "60s")
	v.SetDefault("predict.field", "image")
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "pulmolens", "pulmolens.db"))
	v.SetDefault("history.enabled", true)
	v.SetDefault("ui.image_dir", ".")
	v.SetDefault("ui.extensions", []string{".jpg", ".jpeg", ".png"})
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.format", "txt")
}

// Path returns the config file location. PULMOLENS_CONFIG wins over the default.
func Path() string {
	if p := os.Getenv("PULMOLENS_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "pulmolens", "config.toml")
}

// Load reads configuration from file and env. Env var overrides use prefix PULMOLENS_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	v.SetConfigFile(Path())

	v.SetEnvPrefix("PULMOLENS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// a missing file is fine; a malformed one is not
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.UI.Extensions = normalizeExtensions(c.UI.Extensions)
	c.Export.Format = strings.ToLower(strings.TrimSpace(c.Export.Format))
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("predict.endpoint", cfg.Predict.Endpoint)
	v.Set("predict.timeout", cfg.Predict.Timeout.String())
	v.Set("predict.field", cfg.Predict.Field)
	v.Set("database.path", cfg.Database.Path)
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("ui.image_dir", cfg.UI.ImageDir)
	v.Set("ui.extensions", cfg.UI.Extensions)
	v.Set("export.dir", cfg.Export.Dir)
	v.Set("export.format", cfg.Export.Format)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// normalizeExtensions lowercases entries and ensures a leading dot.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
