package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_OverridesDefaultsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "simulation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("n_banks: 6\nseed: 99\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.NBanks)
	assert.Equal(t, int64(99), cfg.Seed)
	// Unspecified fields retain their defaults.
	assert.Equal(t, "erdos_renyi", cfg.NetworkType)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/simulation.yaml")
	assert.Error(t, err)
}

func TestValidate_RejectsBadPopulation(t *testing.T) {
	cfg := Default()
	cfg.NBanks = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsWeightsNotSummingToOne(t *testing.T) {
	cfg := Default()
	cfg.CCPW1 = 0.9
	assert.Error(t, cfg.Validate())
}
