package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PULMOLENS_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultEndpoint, cfg.Predict.Endpoint)
	require.Equal(t, 60*time.Second, cfg.Predict.Timeout)
	require.Equal(t, "image", cfg.Predict.Field)
	require.True(t, cfg.History.Enabled)
	require.Equal(t, []string{".jpg", ".jpeg", ".png"}, cfg.UI.Extensions)
	require.Equal(t, "txt", cfg.Export.Format)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := []byte(`
[predict]
endpoint = "http://scanner.local:9000/predict"
timeout = "5s"

[ui]
extensions = ["PNG", "bmp"]

[export]
format = "YAML"
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv("PULMOLENS_CONFIG", path)
	t.Setenv("PULMOLENS_HISTORY_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://scanner.local:9000/predict", cfg.Predict.Endpoint)
	require.Equal(t, 5*time.Second, cfg.Predict.Timeout)
	require.Equal(t, []string{".png", ".bmp"}, cfg.UI.Extensions)
	require.Equal(t, "yaml", cfg.Export.Format)
	require.False(t, cfg.History.Enabled)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[predict\nendpoint="), 0o600))
	t.Setenv("PULMOLENS_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	t.Setenv("PULMOLENS_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.Predict.Endpoint = "http://10.0.0.2:5000/predict"
	cfg.Export.Dir = "/tmp/reports"
	require.NoError(t, Save(cfg))

	got, err := Load()
	require.NoError(t, err)
	require.Equal(t, cfg.Predict.Endpoint, got.Predict.Endpoint)
	require.Equal(t, cfg.Export.Dir, got.Export.Dir)
	require.Equal(t, cfg.Predict.Timeout, got.Predict.Timeout)
}
