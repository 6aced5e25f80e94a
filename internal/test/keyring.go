package test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/stretchr/testify/require"
	"github/chapool/hw-keyring/internal/config"
	"github/chapool/hw-keyring/internal/keyring"
)

// KeyringConfig is the keyring configuration used by tests: no prompt cooldown so
// tests run in real time without delay
func KeyringConfig() config.Keyring {
	return config.Keyring{
		MaxIndex:       1000, //nolint:mnd
		PromptCooldown: 0,
		PerPage:        5, //nolint:mnd
		HDPath:         "m/44'/60'/0'/0",
		DefaultCoin:    "eth",
		ManifestAppURL: "https://example.com",
		ManifestEmail:  "test@example.com",
	}
}

// WithTestKeyring runs closure with a keyring on top of a recording software device
func WithTestKeyring(t *testing.T, closure func(k *keyring.Keyring, dev *Device)) {
	t.Helper()

	k, dev := NewTestKeyring(t, KeyringConfig(), nil)
	closure(k, dev)
}

// NewTestKeyring builds a keyring with cfg. A nil clock uses the system clock. The
// keyring is closed when the test ends.
func NewTestKeyring(t *testing.T, cfg config.Keyring, clock mclock.Clock) (*keyring.Keyring, *Device) {
	t.Helper()

	if clock == nil {
		clock = mclock.System{}
	}
	dev, _ := NewSoftDevice(t, clock)

	k, err := keyring.InitNewKeyring(cfg, dev, clock, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = k.Close()
	})

	return k, dev
}
