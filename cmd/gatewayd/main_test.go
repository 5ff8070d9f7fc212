package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labvisio/is-spinnaker-gateway/internal/config"
)

func TestNewSystemSimulated(t *testing.T) {
	cfg := &config.Config{
		Driver:  "simulated",
		Cameras: []config.CameraConfig{{ID: 0, IP: "10.0.0.10"}, {ID: 1, IP: "10.0.0.11"}},
	}
	system, err := newSystem(cfg)
	require.NoError(t, err)
	defer system.Close()

	devices, err := system.Devices(context.Background())
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	_, err = newSystem(&config.Config{Driver: "spinnaker"})
	assert.Error(t, err)
}

func TestRunFailsOnMissingConfig(t *testing.T) {
	err := run(context.Background(), "does/not/exist.yaml")
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestRootFlags(t *testing.T) {
	cmd := newRootCommand()
	assert.NotNil(t, cmd.Flags().Lookup("config"))
	assert.NotNil(t, cmd.Flags().Lookup("debug"))
}
