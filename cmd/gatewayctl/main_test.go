package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
)

func TestParseSelector(t *testing.T) {
	sel, err := parseSelector([]string{"image", "camera"})
	require.NoError(t, err)
	assert.Equal(t, []camera.Section{camera.SectionImage, camera.SectionCamera}, sel.Fields)

	_, err = parseSelector([]string{"lens"})
	assert.Error(t, err)
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "set.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sampling: {frequency: 5}\ncamera: {gain: {automatic: true}}\n"), 0o600))

	cfg, err := readConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5.0, *cfg.Sampling.Frequency)
	assert.True(t, cfg.Camera.Gain.Automatic)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("{}\n"), 0o600))
	_, err = readConfig(empty)
	assert.ErrorContains(t, err, "sets nothing")
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".jpg", extension([]byte{0xff, 0xd8, 0xff, 0xe0, 0, 0}))
	assert.Equal(t, ".png", extension([]byte("\x89PNG\x0d\x0a\x1a\x0a")))
	assert.Equal(t, ".raw", extension([]byte{1, 2, 3}))
}

func TestCommandsRegistered(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"get-config", "set-config", "frames"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
