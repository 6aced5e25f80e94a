package address_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/keyring/address"
	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/encoding"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
	"github/chapool/hw-keyring/internal/keyring/prompt"
	"github/chapool/hw-keyring/internal/test"
)

func profileOf(t *testing.T, id string) (coin.Profile, hdpath.DerivationPath) {
	t.Helper()

	profile, err := coin.NewRegistry().Resolve(id, nil)
	require.NoError(t, err)
	template, err := hdpath.ResolveTemplate(profile)
	require.NoError(t, err)

	return profile, template
}

func newDeriver(t *testing.T, opts address.Options) (address.Service, *test.Device) {
	t.Helper()

	dev, _ := test.NewSoftDevice(t, nil)
	return address.NewService(dev, prompt.NewQueue(nil, 0, nil), nil, opts), dev
}

func TestDeriveEth(t *testing.T) {
	ctx := t.Context()
	deriver, dev := newDeriver(t, address.Options{})
	profile, template := profileOf(t, "eth")

	derived, err := deriver.Derive(ctx, template, 0, profile)
	require.NoError(t, err)

	assert.Equal(t, test.FirstEthAddress, derived.Address)
	assert.Equal(t, "m/44'/60'/0'/0/0", derived.Path.String())
	assert.Equal(t, uint32(0), derived.Index)
	assert.Len(t, derived.PublicKey, 33)
	assert.Len(t, derived.ChainCode, 32)
	assert.Len(t, dev.CallsTo(device.OpGetPublicKey), 1)
	assert.Empty(t, dev.CallsTo(device.OpGetAccountInfo), "EVM addresses are computed locally")
}

func TestDeriveIsDeterministic(t *testing.T) {
	ctx := t.Context()
	deriver, _ := newDeriver(t, address.Options{})
	profile, template := profileOf(t, "eth")

	a, err := deriver.Derive(ctx, template, 7, profile)
	require.NoError(t, err)
	b, err := deriver.Derive(ctx, template, 7, profile)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestDeriveIsInjective(t *testing.T) {
	ctx := t.Context()
	deriver, _ := newDeriver(t, address.Options{LocalDerivation: true})
	profile, template := profileOf(t, "eth")

	seen := make(map[string]uint32)
	for i := uint32(0); i < 50; i++ {
		derived, err := deriver.Derive(ctx, template, i, profile)
		require.NoError(t, err)

		prev, dup := seen[derived.Address]
		require.False(t, dup, "index %d collides with %d", i, prev)
		seen[derived.Address] = i
	}
}

func TestLocalDerivationMatchesDevice(t *testing.T) {
	ctx := t.Context()
	remote, _ := newDeriver(t, address.Options{})
	local, dev := newDeriver(t, address.Options{LocalDerivation: true})
	profile, template := profileOf(t, "eth")

	for i := uint32(0); i < 4; i++ {
		want, err := remote.Derive(ctx, template, i, profile)
		require.NoError(t, err)
		got, err := local.Derive(ctx, template, i, profile)
		require.NoError(t, err)

		assert.Equal(t, want.Address, got.Address)
		assert.Equal(t, want.PublicKey, got.PublicKey)
		assert.Equal(t, want.Path, got.Path)
	}

	calls := dev.CallsTo(device.OpGetPublicKey)
	require.Len(t, calls, 1, "the account key is fetched once")
	assert.Equal(t, template.String(), calls[0].Path.String())

	local.Forget()
	_, err := local.Derive(ctx, template, 0, profile)
	require.NoError(t, err)
	assert.Len(t, dev.CallsTo(device.OpGetPublicKey), 2)
}

func TestDeriveSysUsesAccountInfo(t *testing.T) {
	ctx := t.Context()
	deriver, dev := newDeriver(t, address.Options{})
	profile, template := profileOf(t, "sys")
	assert.Equal(t, "m/84'/57'/0'", template.String())

	derived, err := deriver.Derive(ctx, template, 0, profile)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(derived.Address, "sys1q"), derived.Address)
	assert.Len(t, dev.CallsTo(device.OpGetAccountInfo), 1)

	local, err := encoding.UTXOAddress(derived.PublicKey, profile, 84)
	require.NoError(t, err)
	assert.Equal(t, local, derived.Address)
}

func TestDeriveFallsBackToLocalEncoding(t *testing.T) {
	ctx := t.Context()
	deriver, dev := newDeriver(t, address.Options{})
	dev.Fail[device.OpGetAccountInfo] = "Method not allowed"
	profile, template := profileOf(t, "sys")

	derived, err := deriver.Derive(ctx, template, 3, profile)
	require.NoError(t, err)

	expected, err := encoding.UTXOAddress(derived.PublicKey, profile, 84)
	require.NoError(t, err)
	assert.Equal(t, expected, derived.Address)
}

func TestDeriveLegacyBtc(t *testing.T) {
	deriver, _ := newDeriver(t, address.Options{})
	profile, template := profileOf(t, "btc")

	derived, err := deriver.Derive(t.Context(), template, 0, profile)
	require.NoError(t, err)
	assert.Equal(t, "m/49'/0'/0'/0", derived.Path.String())
	assert.True(t, strings.HasPrefix(derived.Address, "3"), derived.Address)
}

func TestDeriveFallbackCoinHasNoEncoding(t *testing.T) {
	deriver, _ := newDeriver(t, address.Options{})
	profile, template := profileOf(t, "ltc")

	_, err := deriver.Derive(t.Context(), template, 0, profile)
	require.ErrorIs(t, err, coin.ErrUnsupportedCoin)
}

func TestDeriveDeviceFailure(t *testing.T) {
	deriver, dev := newDeriver(t, address.Options{})
	dev.Fail[device.OpGetPublicKey] = "Device disconnected"
	profile, template := profileOf(t, "eth")

	_, err := deriver.Derive(t.Context(), template, 0, profile)
	require.Error(t, err)
	assert.True(t, device.IsDeviceError(err))
}

func TestDeriveRejectsHardenedIndex(t *testing.T) {
	deriver, dev := newDeriver(t, address.Options{})
	profile, template := profileOf(t, "eth")

	_, err := deriver.Derive(t.Context(), template, hdpath.HardenedOffset, profile)
	require.Error(t, err)
	assert.Empty(t, dev.Calls())
}

func TestDeviceCoin(t *testing.T) {
	eth, _ := profileOf(t, "rollux")
	sys, _ := profileOf(t, "sys")

	assert.Equal(t, "ETH", address.DeviceCoin(eth))
	assert.Equal(t, "SYS", address.DeviceCoin(sys))
}
