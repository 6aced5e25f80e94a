package soft_test

import (
	"context"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/device/soft"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
)

//nolint:dupword // Test mnemonic with repeated words
const mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var ethPath = hdpath.MustParse("m/44'/60'/0'/0/0")

func unlocked(t *testing.T, opts soft.Options) *soft.Device {
	t.Helper()

	d := soft.New(opts)
	require.NoError(t, d.LoadMnemonic(mnemonic, ""))
	return d
}

func TestKeystoreRoundTrip(t *testing.T) {
	ks, err := soft.SealMnemonic(mnemonic, "hunter2", soft.LightScryptParams())
	require.NoError(t, err)
	assert.Equal(t, 3, ks.Version)
	assert.NotContains(t, ks.Crypto.Ciphertext, "abandon")

	path := filepath.Join(t.TempDir(), "keys", "keystore.json")
	require.NoError(t, ks.Save(path))

	loaded, err := soft.LoadKeystore(path)
	require.NoError(t, err)
	assert.Equal(t, ks.ID, loaded.ID)

	_, err = loaded.Open("wrong")
	require.ErrorIs(t, err, soft.ErrInvalidPassword)

	opened, err := loaded.Open("hunter2")
	require.NoError(t, err)
	assert.Equal(t, mnemonic, opened)

	d := soft.New(soft.Options{})
	require.NoError(t, d.Unlock(loaded, "hunter2", ""))

	reply, err := d.GetAddress(context.Background(), device.AddressRequest{Path: ethPath, Coin: "eth"})
	require.NoError(t, err)
	require.True(t, reply.Success)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", reply.Address)
}

func TestLockedDevice(t *testing.T) {
	d := soft.New(soft.Options{})

	reply, err := d.GetPublicKey(context.Background(), device.PublicKeyRequest{Path: ethPath, Coin: "eth"})
	require.NoError(t, err)
	assert.False(t, reply.Success)
	assert.Equal(t, soft.ErrLocked.Error(), reply.Error)

	require.Error(t, d.LoadMnemonic("   ", ""))
}

func TestPassphraseChangesKeys(t *testing.T) {
	d := soft.New(soft.Options{})
	require.NoError(t, d.LoadMnemonic(mnemonic, "TREZOR"))

	reply, err := d.GetAddress(context.Background(), device.AddressRequest{Path: ethPath, Coin: "eth"})
	require.NoError(t, err)
	require.True(t, reply.Success)
	assert.NotEqual(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", reply.Address)
}

func TestBitcoinNativeSegwitAddress(t *testing.T) {
	d := unlocked(t, soft.Options{})

	reply, err := d.GetAddress(context.Background(), device.AddressRequest{
		Path: hdpath.MustParse("m/84'/0'/0'/0/0"),
		Coin: "btc",
	})
	require.NoError(t, err)
	require.True(t, reply.Success)
	assert.Equal(t, "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu", reply.Address)
}

func TestGetAccountInfo(t *testing.T) {
	d := unlocked(t, soft.Options{})

	info, err := d.GetAccountInfo(context.Background(), device.AccountInfoRequest{
		Path: hdpath.MustParse("m/84'/57'/0'/0/0"),
		Coin: "sys",
	})
	require.NoError(t, err)
	require.True(t, info.Success)
	assert.Regexp(t, "^sys1q", info.Address)
	assert.Regexp(t, "^xpub", info.Descriptor)

	info, err = d.GetAccountInfo(context.Background(), device.AccountInfoRequest{Path: ethPath, Coin: "eth"})
	require.NoError(t, err)
	require.True(t, info.Success)
	assert.Empty(t, info.Address)
}

func TestConfirmRejection(t *testing.T) {
	var asked []string
	d := unlocked(t, soft.Options{Confirm: func(_ context.Context, op string) error {
		asked = append(asked, op)
		return errors.New("")
	}})

	reply, err := d.GetAddress(context.Background(), device.AddressRequest{Path: ethPath, Coin: "eth", ShowOnDevice: true})
	require.NoError(t, err)
	assert.False(t, reply.Success)
	assert.Equal(t, "Action cancelled by user", reply.Error)

	// no prompt without ShowOnDevice
	reply, err = d.GetAddress(context.Background(), device.AddressRequest{Path: ethPath, Coin: "eth"})
	require.NoError(t, err)
	assert.True(t, reply.Success)

	msg, err := d.SignEthereumMessage(context.Background(), device.EthereumMessageRequest{Path: ethPath, Message: "hi"})
	require.NoError(t, err)
	assert.False(t, msg.Success)

	err = device.Check(device.OpSignEthereumMessage, msg, nil)
	require.Error(t, err)
	assert.True(t, device.IsDeviceError(err))

	assert.Equal(t, []string{device.OpGetAddress, device.OpSignEthereumMessage}, asked)
}

func TestEvents(t *testing.T) {
	d := soft.New(soft.Options{Model: "1"})
	events, unsubscribe := d.Subscribe()
	defer unsubscribe()

	require.NoError(t, d.Init(context.Background(), device.Manifest{AppURL: "https://example.org"}))
	ev := <-events
	assert.Equal(t, device.EventConnect, ev.Type)
	assert.Equal(t, "1", ev.Model)
	assert.False(t, ev.Initialized)

	require.NoError(t, d.LoadMnemonic(mnemonic, ""))
	require.NoError(t, d.Dispose())
	ev = <-events
	assert.Equal(t, device.EventDisconnect, ev.Type)

	reply, err := d.GetPublicKey(context.Background(), device.PublicKeyRequest{Path: ethPath})
	require.NoError(t, err)
	assert.False(t, reply.Success)

	unsubscribe()
	_, open := <-events
	assert.False(t, open)
}

func TestSignEthereumMessage(t *testing.T) {
	d := unlocked(t, soft.Options{})

	reply, err := d.SignEthereumMessage(context.Background(), device.EthereumMessageRequest{
		Path:    ethPath,
		Message: hex.EncodeToString([]byte("hello")),
		Hex:     true,
	})
	require.NoError(t, err)
	require.True(t, reply.Success)

	sig, err := hex.DecodeString(reply.Signature)
	require.NoError(t, err)
	require.Len(t, sig, crypto.SignatureLength)
	assert.Contains(t, []byte{27, 28}, sig[crypto.RecoveryIDOffset])

	sig[crypto.RecoveryIDOffset] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash([]byte("hello")), sig)
	require.NoError(t, err)
	assert.Equal(t, reply.Address, crypto.PubkeyToAddress(*pub).Hex())
}

func TestSignEvmTransaction(t *testing.T) {
	d := unlocked(t, soft.Options{})

	reply, err := d.SignEvmTransaction(context.Background(), device.EvmTransactionRequest{
		Path: ethPath,
		Tx: device.EvmTx{
			ChainID:              57,
			Nonce:                3,
			To:                   "0x000000000000000000000000000000000000dEaD",
			Value:                "1000",
			GasLimit:             21000,
			MaxFeePerGas:         "2000000000",
			MaxPriorityFeePerGas: "1000000000",
		},
	})
	require.NoError(t, err)
	require.True(t, reply.Success)

	raw, err := hexutil.Decode(reply.SerializedTx)
	require.NoError(t, err)

	var tx types.Transaction
	require.NoError(t, tx.UnmarshalBinary(raw))
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(3), tx.Nonce())

	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), &tx)
	require.NoError(t, err)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", sender.Hex())

	bad, err := d.SignEvmTransaction(context.Background(), device.EvmTransactionRequest{
		Path: ethPath,
		Tx:   device.EvmTx{ChainID: 1, Value: "-1"},
	})
	require.NoError(t, err)
	assert.False(t, bad.Success)
}

func TestSignAndVerifyMessage(t *testing.T) {
	d := unlocked(t, soft.Options{})
	path := hdpath.MustParse("m/84'/57'/0'/0/0")

	signed, err := d.SignMessage(context.Background(), device.SignMessageRequest{Path: path, Coin: "sys", Message: "hello"})
	require.NoError(t, err)
	require.True(t, signed.Success)
	assert.Regexp(t, "^sys1q", signed.Address)

	status, err := d.VerifyMessage(context.Background(), device.VerifyMessageRequest{
		Coin:      "sys",
		Address:   signed.Address,
		Message:   "hello",
		Signature: signed.Signature,
	})
	require.NoError(t, err)
	assert.True(t, status.Success)

	status, err = d.VerifyMessage(context.Background(), device.VerifyMessageRequest{
		Coin:      "sys",
		Address:   signed.Address,
		Message:   "tampered",
		Signature: signed.Signature,
	})
	require.NoError(t, err)
	assert.False(t, status.Success)
	assert.True(t, device.OK.Success)
}

func TestUtxoTransactionUnsupported(t *testing.T) {
	d := unlocked(t, soft.Options{})

	reply, err := d.SignUtxoTransaction(context.Background(), device.UtxoTransactionRequest{Coin: "sys"})
	require.NoError(t, err)
	assert.False(t, reply.Success)
	assert.Contains(t, reply.Error, "SYS")
}
