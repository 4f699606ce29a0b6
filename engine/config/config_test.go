package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDecodeTOML(t *testing.T) {
	data := []byte(`
[window]
title = "blur"
width = 800

[renderer]
backend = "headless"

[engine]
frame_limit = 30
`)
	cfg, err := Decode(data, FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, "blur", cfg.Window.Title)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, 720, cfg.Window.Height, "missing fields keep defaults")
	assert.Equal(t, "headless", cfg.Renderer.Backend)
	assert.Equal(t, 30.0, cfg.Engine.FrameLimit)
	assert.Equal(t, 60.0, cfg.Engine.TickRate)
}

func TestDecodeYAML(t *testing.T) {
	data := []byte(`
window:
  height: 600
renderer:
  present_mode: uncapped
log:
  level: debug
  format: json
`)
	cfg, err := Decode(data, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Window.Height)
	assert.Equal(t, "uncapped", cfg.Renderer.PresentMode)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestDecodeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"zero width", "[window]\nwidth = 0\n"},
		{"bad backend", "[renderer]\nbackend = \"vulkan\"\n"},
		{"bad present mode", "[renderer]\npresent_mode = \"mailbox\"\n"},
		{"bad log level", "[log]\nlevel = \"loud\"\n"},
		{"negative tick rate", "[engine]\ntick_rate = -1.0\n"},
		{"malformed", "[window\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), FormatTOML)
			assert.Error(t, err)
		})
	}
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "engine.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[window]\ntitle = \"a\"\n"), 0o644))
	cfg, err := Load(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "a", cfg.Window.Title)

	ymlPath := filepath.Join(dir, "engine.yml")
	require.NoError(t, os.WriteFile(ymlPath, []byte("window:\n  title: b\n"), 0o644))
	cfg, err = Load(ymlPath)
	require.NoError(t, err)
	assert.Equal(t, "b", cfg.Window.Title)

	_, err = Load(filepath.Join(dir, "engine.ini"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	assert.Nil(t, LogConfig{Level: "off"}.NewLogger(&bytes.Buffer{}))

	var buf bytes.Buffer
	l := LogConfig{Level: "info", Format: "json"}.NewLogger(&buf)
	require.NotNil(t, l)
	l.Debug("hidden")
	l.Info("shown", "frames", 3)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"frames":3`)
}
