package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/hw-keyring/internal/config"
)

func TestPrintServiceEnv(t *testing.T) {
	config := config.DefaultServiceConfigFromEnv()
	_, err := json.MarshalIndent(config, "", "  ")

	if err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Keyring.MaxIndex)
	assert.Equal(t, time.Second, cfg.Keyring.PromptCooldown)
	assert.Equal(t, 5, cfg.Keyring.PerPage)
	assert.Equal(t, "m/44'/60'/0'/0", cfg.Keyring.HDPath)
	assert.Equal(t, "eth", cfg.Keyring.DefaultCoin)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KEYRING_KEYRING_MAX_INDEX", "25")
	t.Setenv("KEYRING_KEYRING_PROMPT_COOLDOWN", "250ms")
	t.Setenv("KEYRING_LOGGER_LEVEL", "debug")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Keyring.MaxIndex)
	assert.Equal(t, 250*time.Millisecond, cfg.Keyring.PromptCooldown)
	assert.Equal(t, zerolog.DebugLevel, cfg.Logger.Level)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[keyring]
per_page = 10
local_derivation = true

[device]
model = "1"
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Keyring.PerPage)
	assert.True(t, cfg.Keyring.LocalDerivation)
	assert.Equal(t, "1", cfg.Device.Model)
}

func TestInvalidValues(t *testing.T) {
	t.Setenv("KEYRING_KEYRING_PER_PAGE", "0")

	_, err := config.Load("")
	require.Error(t, err)
}

func TestMaxIndexBounds(t *testing.T) {
	t.Setenv("KEYRING_KEYRING_MAX_INDEX", "2147483648")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 2147483648, cfg.Keyring.MaxIndex)

	t.Setenv("KEYRING_KEYRING_MAX_INDEX", "2147483649")
	_, err = config.Load("")
	require.Error(t, err)

	t.Setenv("KEYRING_KEYRING_MAX_INDEX", "4294967297")
	_, err = config.Load("")
	require.Error(t, err)
}

func TestSecretsAreNotPrinted(t *testing.T) {
	t.Setenv("KEYRING_DEVICE_MNEMONIC", "secret words")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, "secret words", cfg.Device.Mnemonic)

	out, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret words")
}
