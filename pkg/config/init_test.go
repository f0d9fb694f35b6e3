package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, "./assets/scss/style.scss", cfg.Paths.ScssFile)
	assert.Equal(t, "all.js", cfg.Paths.JSBundleName)
	assert.Equal(t, "dest", cfg.Paths.BuildFolder)
	assert.Equal(t, []string{"./assets/js/**/*.js", "!./assets/js/**/*.min.js", "!./assets/js/**/all.js"}, cfg.Paths.JSFiles)
	assert.True(t, cfg.Prefixer.Cascade)
}

func TestLoad_JSONOverrides(t *testing.T) {
	dir := t.TempDir()
	body := `{"paths": {"build_folder": "public", "js_bundle_name": "bundle.js"}, "serve_config": {"port": 8100, "watch_delay_ms": 50}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "toastpipe.json"), []byte(body), 0o644))

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "public", cfg.Paths.BuildFolder)
	assert.Equal(t, "bundle.js", cfg.Paths.JSBundleName)
	assert.Equal(t, "./assets/css", cfg.Paths.CSSFolder, "untouched keys keep defaults")
	assert.Equal(t, 8100, cfg.ServeConfig.Port)
	assert.Equal(t, 50, cfg.ServeConfig.WatchDelayMS)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	body := "paths:\n  css_folder: ./public/css\nprefixer:\n  cascade: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "toastpipe.yaml"), []byte(body), 0o644))

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "./public/css", cfg.Paths.CSSFolder)
	assert.False(t, cfg.Prefixer.Cascade)
	assert.False(t, cfg.Scripts.MangleTopLevel)
}

func TestLoad_ScriptsTopLevel(t *testing.T) {
	dir := t.TempDir()
	body := "scripts:\n  mangle_toplevel: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "toastpipe.yml"), []byte(body), 0o644))

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.True(t, cfg.Scripts.MangleTopLevel)
}

func TestLoad_EnvFileOverridesPort(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TOASTPIPE_PORT=9123\n"), 0o644))
	t.Setenv("TOASTPIPE_PORT", "")
	require.NoError(t, os.Unsetenv("TOASTPIPE_PORT"))

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 9123, cfg.ServeConfig.Port)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfiguration()
	require.NoError(t, cfg.Validate())

	cfg.Paths.JSBundleName = "sub/all.js"
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfiguration()
	cfg.Paths.BuildFolder = " "
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
