package encoding

import (
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/hw-keyring/internal/keyring/coin"
)

const (
	purposeBIP44 = 44
	purposeBIP49 = 49
	purposeBIP84 = 84
)

// ErrInvalidAddress is returned when an address can not be normalized for its coin family
var ErrInvalidAddress = errors.New("invalid address")

// EVMAddress computes the checksummed Keccak address for a compressed or uncompressed secp256k1 key
func EVMAddress(publicKey []byte) (string, error) {
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse public key")
	}

	ecdsaPub, err := crypto.UnmarshalPubkey(pub.SerializeUncompressed())
	if err != nil {
		return "", errors.Wrap(err, "failed to unmarshal public key")
	}

	return crypto.PubkeyToAddress(*ecdsaPub).Hex(), nil
}

// UTXOAddress encodes the address for a public key according to the path purpose:
// 84 native segwit (bech32), 49 P2SH-wrapped segwit, 44 legacy P2PKH.
func UTXOAddress(publicKey []byte, profile coin.Profile, purpose uint32) (string, error) {
	if !profile.HasUTXOEncoding() {
		return "", errors.Wrapf(coin.ErrUnsupportedCoin, "no address encoding for %q", profile.ID)
	}

	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse public key")
	}
	keyHash := btcutil.Hash160(pub.SerializeCompressed())
	params := NetParams(profile)

	var addr btcutil.Address
	switch purpose {
	case purposeBIP84:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(keyHash, params)
	case purposeBIP49:
		var script []byte
		script, err = txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(keyHash).Script()
		if err != nil {
			return "", errors.Wrap(err, "failed to build witness program")
		}
		addr, err = btcutil.NewAddressScriptHash(script, params)
	case purposeBIP44:
		addr, err = btcutil.NewAddressPubKeyHash(keyHash, params)
	default:
		return "", errors.Wrapf(coin.ErrUnsupportedCoin, "no address encoding for purpose %d", purpose)
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to encode address")
	}

	return addr.EncodeAddress(), nil
}

// NetParams builds the minimal network parameters btcutil needs to encode addresses for a coin
func NetParams(profile coin.Profile) *chaincfg.Params {
	return &chaincfg.Params{
		Name:             profile.ID,
		Bech32HRPSegwit:  profile.Bech32HRP,
		PubKeyHashAddrID: profile.PubKeyHashAddrID,
		ScriptHashAddrID: profile.ScriptHashAddrID,
	}
}

// Normalize returns the canonical form of an address used as a cache key:
// checksum casing for EVM, unchanged for UTXO encodings.
func Normalize(address string, profile coin.Profile) (string, error) {
	address = strings.TrimSpace(address)
	if !profile.IsEVM() {
		if address == "" {
			return "", errors.Wrap(ErrInvalidAddress, "empty address")
		}
		return address, nil
	}

	if !common.IsHexAddress(address) {
		return "", errors.Wrapf(ErrInvalidAddress, "%q is not a hex address", address)
	}
	return common.HexToAddress(address).Hex(), nil
}

// SameAddress compares two addresses the way the coin family requires:
// case-insensitive for EVM, exact for UTXO encodings.
func SameAddress(a, b string, profile coin.Profile) bool {
	if profile.IsEVM() {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
