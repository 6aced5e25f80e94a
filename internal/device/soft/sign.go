package soft

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/encoding"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
)

// recoveryIDOffset turns the 0/1 recovery id into the 27/28 v value wallets expect
const recoveryIDOffset = 27

// SignEthereumMessage signs an EIP-191 personal message
func (d *Device) SignEthereumMessage(ctx context.Context, req device.EthereumMessageRequest) (*device.SignedMessage, error) {
	if status := d.ask(ctx, device.OpSignEthereumMessage); !status.Success {
		return &device.SignedMessage{Status: status}, nil
	}

	data := []byte(req.Message)
	if req.Hex {
		decoded, err := hex.DecodeString(req.Message)
		if err != nil {
			return &device.SignedMessage{Status: device.Failed("invalid hex message")}, nil
		}
		data = decoded
	}

	return d.signDigest(req.Path, accounts.TextHash(data))
}

// SignTypedData signs the EIP-712 digest of the typed data
func (d *Device) SignTypedData(ctx context.Context, req device.TypedDataRequest) (*device.SignedMessage, error) {
	if status := d.ask(ctx, device.OpSignTypedData); !status.Success {
		return &device.SignedMessage{Status: status}, nil
	}

	digest, _, err := apitypes.TypedDataAndHash(req.Data)
	if err != nil {
		return &device.SignedMessage{Status: device.Failed(err.Error())}, nil
	}

	return d.signDigest(req.Path, digest)
}

func (d *Device) signDigest(path hdpath.DerivationPath, digest []byte) (*device.SignedMessage, error) {
	key, err := d.seed.derive(path)
	if err != nil {
		return &device.SignedMessage{Status: device.Failed(err.Error())}, nil
	}

	priv, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert private key to ECDSA")
	}

	sig, err := crypto.Sign(digest, priv)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign digest")
	}
	sig[crypto.RecoveryIDOffset] += recoveryIDOffset

	return &device.SignedMessage{
		Status:    device.OK,
		Address:   crypto.PubkeyToAddress(priv.PublicKey).Hex(),
		Signature: hex.EncodeToString(sig),
	}, nil
}

// SignEvmTransaction builds, signs and serializes a legacy or EIP-1559 transaction
func (d *Device) SignEvmTransaction(ctx context.Context, req device.EvmTransactionRequest) (*device.SignedTransaction, error) {
	if status := d.ask(ctx, device.OpSignEvmTransaction); !status.Success {
		return &device.SignedTransaction{Status: status}, nil
	}

	tx, err := buildEvmTx(req.Tx)
	if err != nil {
		return &device.SignedTransaction{Status: device.Failed(err.Error())}, nil
	}

	key, err := d.seed.derive(req.Path)
	if err != nil {
		return &device.SignedTransaction{Status: device.Failed(err.Error())}, nil
	}
	priv, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert private key to ECDSA")
	}

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(req.Tx.ChainID)), priv)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal transaction")
	}

	return &device.SignedTransaction{Status: device.OK, SerializedTx: hexutil.Encode(raw)}, nil
}

func buildEvmTx(in device.EvmTx) (*types.Transaction, error) {
	value, err := parseAmount(in.Value, "value")
	if err != nil {
		return nil, err
	}

	var to *common.Address
	if in.To != "" {
		if !common.IsHexAddress(in.To) {
			return nil, errors.Errorf("invalid recipient %q", in.To)
		}
		addr := common.HexToAddress(in.To)
		to = &addr
	}

	if in.GasPrice != "" {
		gasPrice, err := parseAmount(in.GasPrice, "gasPrice")
		if err != nil {
			return nil, err
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    in.Nonce,
			GasPrice: gasPrice,
			Gas:      in.GasLimit,
			To:       to,
			Value:    value,
			Data:     in.Data,
		}), nil
	}

	maxFee, err := parseAmount(in.MaxFeePerGas, "maxFeePerGas")
	if err != nil {
		return nil, err
	}
	maxPriorityFee, err := parseAmount(in.MaxPriorityFeePerGas, "maxPriorityFeePerGas")
	if err != nil {
		return nil, err
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(in.ChainID),
		Nonce:     in.Nonce,
		GasTipCap: maxPriorityFee,
		GasFeeCap: maxFee,
		Gas:       in.GasLimit,
		To:        to,
		Value:     value,
		Data:      in.Data,
	}), nil
}

func parseAmount(s string, field string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}

	const base10 = 10
	v, ok := new(big.Int).SetString(s, base10)
	if !ok || v.Sign() < 0 {
		return nil, errors.Errorf("invalid %s format", field)
	}
	return v, nil
}

// SignMessage signs a message in the Bitcoin signed message format
func (d *Device) SignMessage(ctx context.Context, req device.SignMessageRequest) (*device.SignedMessage, error) {
	if status := d.ask(ctx, device.OpSignMessage); !status.Success {
		return &device.SignedMessage{Status: status}, nil
	}

	profile, err := d.profile(req.Coin)
	if err != nil || !profile.HasUTXOEncoding() {
		return &device.SignedMessage{Status: device.Failed("unsupported coin " + req.Coin)}, nil
	}

	message, err := messageBytes(req.Message, req.Hex)
	if err != nil {
		return &device.SignedMessage{Status: device.Failed(err.Error())}, nil
	}

	key, err := d.seed.derive(req.Path)
	if err != nil {
		return &device.SignedMessage{Status: device.Failed(err.Error())}, nil
	}
	priv, pub := btcec.PrivKeyFromBytes(key.Key)

	digest, err := messageDigest(profile, message)
	if err != nil {
		return nil, err
	}

	sig := ecdsa.SignCompact(priv, digest, true)

	address, err := encoding.UTXOAddress(pub.SerializeCompressed(), profile, req.Path.Purpose())
	if err != nil {
		return &device.SignedMessage{Status: device.Failed(err.Error())}, nil
	}

	return &device.SignedMessage{
		Status:    device.OK,
		Address:   address,
		Signature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// VerifyMessage recovers the signer of a Bitcoin style message signature and compares
// it against the address under every supported encoding
func (d *Device) VerifyMessage(_ context.Context, req device.VerifyMessageRequest) (*device.Status, error) {
	profile, err := d.profile(req.Coin)
	if err != nil || !profile.HasUTXOEncoding() {
		status := device.Failed("unsupported coin " + req.Coin)
		return &status, nil
	}

	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		status := device.Failed("invalid signature encoding")
		return &status, nil
	}

	digest, err := messageDigest(profile, []byte(req.Message))
	if err != nil {
		return nil, err
	}

	pub, _, err := ecdsa.RecoverCompact(sig, digest)
	if err != nil {
		status := device.Failed("invalid signature")
		return &status, nil
	}

	for _, purpose := range []uint32{84, 49, 44} { //nolint:mnd
		address, err := encoding.UTXOAddress(pub.SerializeCompressed(), profile, purpose)
		if err == nil && address == req.Address {
			status := device.OK
			return &status, nil
		}
	}

	status := device.Failed("Invalid signature")
	return &status, nil
}

// messageDigest is double-SHA256(varstr(magic) || varstr(message))
func messageDigest(profile coin.Profile, message []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarString(&buf, 0, profile.MessageMagic); err != nil {
		return nil, errors.Wrap(err, "failed to write message magic")
	}
	if err := wire.WriteVarBytes(&buf, 0, message); err != nil {
		return nil, errors.Wrap(err, "failed to write message")
	}
	return chainhash.DoubleHashB(buf.Bytes()), nil
}

func messageBytes(message string, isHex bool) ([]byte, error) {
	if !isHex {
		return []byte(message), nil
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(message, "0x"))
	if err != nil {
		return nil, errors.New("invalid hex message")
	}
	return decoded, nil
}
