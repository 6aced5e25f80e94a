package keyring_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/keyring"
	"github/chapool/hw-keyring/internal/keyring/signer"
	"github/chapool/hw-keyring/internal/test"
)

func addresses(page []keyring.PageAccount) []string {
	out := make([]string, 0, len(page))
	for _, acc := range page {
		out = append(out, acc.Address)
	}
	return out
}

func TestInitialize(t *testing.T) {
	test.WithTestKeyring(t, func(k *keyring.Keyring, dev *test.Device) {
		require.NoError(t, k.Initialize(context.Background()))

		calls := dev.CallsTo(device.OpGetAddress)
		require.Len(t, calls, 1)
		assert.Equal(t, "m/44'/60'/0'/0/0", calls[0].Path.String())

		assert.Eventually(t, func() bool {
			return k.Connected() && k.Model() == "T"
		}, time.Second, 10*time.Millisecond)
	})
}

func TestInitializeDeviceFailure(t *testing.T) {
	test.WithTestKeyring(t, func(k *keyring.Keyring, dev *test.Device) {
		dev.Fail[device.OpInit] = "Device not connected"

		err := k.Initialize(context.Background())
		require.Error(t, err)
		assert.True(t, device.IsDeviceError(err))
		assert.Empty(t, dev.CallsTo(device.OpGetAddress))
	})
}

func TestPaging(t *testing.T) {
	test.WithTestKeyring(t, func(k *keyring.Keyring, dev *test.Device) {
		ctx := context.Background()

		first, err := k.FirstPage(ctx)
		require.NoError(t, err)
		require.Len(t, first, 5)
		assert.Equal(t, test.FirstEthAddress, first[0].Address)
		for i, acc := range first {
			assert.Equal(t, uint32(i), acc.Index)
		}

		next, err := k.NextPage(ctx)
		require.NoError(t, err)
		require.Len(t, next, 5)
		assert.Equal(t, uint32(5), next[0].Index)
		assert.NotContains(t, addresses(first), next[0].Address)

		previous, err := k.PreviousPage(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, previous)

		// never before the first page
		previous, err = k.PreviousPage(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, previous)

		// revisited pages come from the cache
		assert.Len(t, dev.CallsTo(device.OpGetPublicKey), 10)
		assert.Equal(t, 1, k.Snapshot().Page)
	})
}

func TestAddAccounts(t *testing.T) {
	test.WithTestKeyring(t, func(k *keyring.Keyring, _ *test.Device) {
		ctx := context.Background()

		added, err := k.AddAccounts(ctx, 2)
		require.NoError(t, err)
		require.Len(t, added, 2)
		assert.Equal(t, test.FirstEthAddress, added[0])

		added, err = k.AddAccounts(ctx, 2)
		require.NoError(t, err)
		assert.Empty(t, added)

		k.SetAccountToUnlock(1)
		added, err = k.AddAccounts(ctx, 2)
		require.NoError(t, err)
		require.Len(t, added, 1)

		accounts := k.Accounts()
		assert.Len(t, accounts, 3)
		assert.Equal(t, added[0], accounts[2])

		_, err = k.AddAccounts(ctx, 0)
		require.Error(t, err)
	})
}

func TestRemoveAccount(t *testing.T) {
	test.WithTestKeyring(t, func(k *keyring.Keyring, _ *test.Device) {
		_, err := k.AddAccounts(context.Background(), 2)
		require.NoError(t, err)

		require.NoError(t, k.RemoveAccount(strings.ToLower(test.FirstEthAddress)))
		assert.Len(t, k.Accounts(), 1)
		assert.NotContains(t, k.Accounts(), test.FirstEthAddress)

		err = k.RemoveAccount(test.FirstEthAddress)
		require.ErrorIs(t, err, keyring.ErrUnknownAccount)
	})
}

func TestSetHDPath(t *testing.T) {
	test.WithTestKeyring(t, func(k *keyring.Keyring, _ *test.Device) {
		ctx := context.Background()

		_, err := k.AddAccounts(ctx, 1)
		require.NoError(t, err)

		// same path keeps state
		require.NoError(t, k.SetHDPath("m/44'/60'/0'/0"))
		assert.Len(t, k.Accounts(), 1)

		require.NoError(t, k.SetHDPath("m/44'/1'/0'/0"))
		assert.Empty(t, k.Accounts())
		assert.Equal(t, "m/44'/1'/0'/0", k.HDPath().String())

		page, err := k.FirstPage(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, test.FirstEthAddress, page[0].Address)

		err = k.SetHDPath("m/44'/60'/1'/0")
		require.ErrorIs(t, err, keyring.ErrUnsupportedHDPath)
		err = k.SetHDPath("not a path")
		require.ErrorIs(t, err, keyring.ErrUnsupportedHDPath)
	})
}

func TestForgetDevice(t *testing.T) {
	test.WithTestKeyring(t, func(k *keyring.Keyring, dev *test.Device) {
		ctx := context.Background()

		_, err := k.AddAccounts(ctx, 1)
		require.NoError(t, err)
		require.Len(t, dev.CallsTo(device.OpGetPublicKey), 1)

		k.ForgetDevice()
		assert.Empty(t, k.Accounts())
		assert.Equal(t, 0, k.Snapshot().Page)

		_, err = k.AddAccounts(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, dev.CallsTo(device.OpGetPublicKey), 2)
	})
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()

	var state keyring.State
	test.WithTestKeyring(t, func(k *keyring.Keyring, _ *test.Device) {
		_, err := k.AddAccounts(ctx, 3)
		require.NoError(t, err)
		_, err = k.NextPage(ctx)
		require.NoError(t, err)

		state = k.Snapshot()
		state.Accounts[0] = "mutated"
		assert.Equal(t, test.FirstEthAddress, k.Accounts()[0])
		state = k.Snapshot()
	})

	test.WithTestKeyring(t, func(k *keyring.Keyring, _ *test.Device) {
		require.NoError(t, k.Restore(state))
		assert.Equal(t, state, k.Snapshot())

		state.HDPath = nil
		state.PerPage = 0
		require.NoError(t, k.Restore(state))
		assert.Equal(t, keyring.DefaultHDPath, k.HDPath())
		assert.Equal(t, 5, k.Snapshot().PerPage)
	})
}

func TestExportAccount(t *testing.T) {
	test.WithTestKeyring(t, func(k *keyring.Keyring, _ *test.Device) {
		_, err := k.ExportAccount(test.FirstEthAddress)
		require.ErrorIs(t, err, keyring.ErrNotSupported)
		assert.Equal(t, "Not supported on this device", err.Error())
	})
}

func TestLookups(t *testing.T) {
	test.WithTestKeyring(t, func(k *keyring.Keyring, _ *test.Device) {
		ctx := context.Background()

		index, err := k.IndexForAddress(ctx, "eth", strings.ToLower(test.FirstEthAddress))
		require.NoError(t, err)
		assert.Equal(t, uint32(0), index)

		sys, err := k.AddressForIndex(ctx, "sys", 0)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sys.Address, "sys1q"), sys.Address)
		assert.Equal(t, "m/84'/57'/0'/0", sys.Path.String())

		index, err = k.IndexForAddress(ctx, "SYS", sys.Address)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), index)

		_, err = k.AddressForIndex(ctx, "unknown", 0)
		require.Error(t, err)
	})
}

func TestSign(t *testing.T) {
	test.WithTestKeyring(t, func(k *keyring.Keyring, _ *test.Device) {
		sig, err := k.Sign(context.Background(), signer.PersonalMessage{Coin: "eth", Data: []byte("hello")})
		require.NoError(t, err)
		assert.Equal(t, test.FirstEthAddress, sig.Address)
		assert.True(t, strings.HasPrefix(sig.Signature, "0x"))
		assert.NotEmpty(t, sig.RequestID)
	})
}
