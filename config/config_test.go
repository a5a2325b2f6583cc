package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice.build/go/corec/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	t.Parallel()
	assert.Empty(t, config.Default().Validate())
}

func TestValidateRejectsNonPositiveFuel(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.ConstFuel = 0
	violations := cfg.Validate()
	require.Len(t, violations, 1)
	assert.Equal(t, "positive-fuel", violations[0].Rule)
}

func TestValidateRejectsUnknownPointerWidth(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.PointerWidth = 16
	violations := cfg.Validate()
	require.Len(t, violations, 1)
	assert.Equal(t, "known-pointer-width", violations[0].Rule)
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lattice.toml")
	require.NoError(t, os.WriteFile(path, []byte("const_fuel = 500\npointer_width = 32\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.ConstFuel)
	assert.Equal(t, config.Pointer32, cfg.PointerWidth)
	assert.Equal(t, config.Default().DefaultCallingConvention, cfg.DefaultCallingConvention)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lattice.yaml")
	require.NoError(t, os.WriteFile(path, []byte("const_fuel: 750\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 750, cfg.ConstFuel)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lattice.toml")
	require.NoError(t, os.WriteFile(path, []byte("const_fuel = -1\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lattice.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
