package command_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/hw-keyring/internal/config"
	"github/chapool/hw-keyring/internal/device/soft"
	"github/chapool/hw-keyring/internal/keyring"
	"github/chapool/hw-keyring/internal/test"
	"github/chapool/hw-keyring/internal/util/command"
)

func testConfig() config.Service {
	return config.Service{
		Keyring: test.KeyringConfig(),
		Device:  config.SoftDevice{Mnemonic: test.Mnemonic},
	}
}

func TestWithKeyring(t *testing.T) {
	ctx := t.Context()

	var testError = errors.New("test error")

	resultErr := command.WithKeyring(ctx, testConfig(), command.DeviceHooks{}, func(ctx context.Context, k *keyring.Keyring) error {
		added, err := k.AddAccounts(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{test.FirstEthAddress}, added)

		return testError
	})

	assert.Equal(t, testError, resultErr)
}

func TestOpenDeviceKeystore(t *testing.T) {
	ks, err := soft.SealMnemonic(test.Mnemonic, "secret", soft.LightScryptParams())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keystore.json")
	require.NoError(t, ks.Save(path))

	cfg := testConfig()
	cfg.Device = config.SoftDevice{KeystorePath: path, Model: "1"}

	_, err = command.OpenDevice(cfg, command.DeviceHooks{})
	require.Error(t, err)

	_, err = command.OpenDevice(cfg, command.DeviceHooks{Password: func() (string, error) { return "wrong", nil }})
	require.ErrorIs(t, err, soft.ErrInvalidPassword)

	dev, err := command.OpenDevice(cfg, command.DeviceHooks{Password: func() (string, error) { return "secret", nil }})
	require.NoError(t, err)
	assert.Equal(t, "1", dev.Model())
}

func TestOpenDeviceUnconfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Device = config.SoftDevice{}

	_, err := command.OpenDevice(cfg, command.DeviceHooks{})
	require.Error(t, err)
}

func TestTerminalConfirm(t *testing.T) {
	confirm := command.TerminalConfirm(strings.NewReader("y\nno\n"))

	require.NoError(t, confirm(t.Context(), "getAddress"))
	require.EqualError(t, confirm(t.Context(), "signTypedData"), "Action cancelled by user")
	require.Error(t, confirm(t.Context(), "signTypedData"))
}
