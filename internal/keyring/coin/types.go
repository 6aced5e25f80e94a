package coin

import "github.com/pkg/errors"

// ErrUnsupportedCoin is returned when no path policy exists for a coin.
var ErrUnsupportedCoin = errors.New("unsupported coin")

// Family groups coins by transaction model
type Family int

const (
	FamilyUTXO Family = iota
	FamilyEVM
)

func (f Family) String() string {
	switch f {
	case FamilyUTXO:
		return "utxo"
	case FamilyEVM:
		return "evm"
	default:
		return "unknown"
	}
}

// Role selects the derivation path rule a coin falls under
type Role int

const (
	// RolePrimary is the wallet's native UTXO coin (native segwit paths)
	RolePrimary Role = iota
	// RoleLegacy is a UTXO coin kept on P2SH-wrapped segwit paths
	RoleLegacy
	// RoleEVM covers every account-model chain
	RoleEVM
	// RoleFallback is a coin outside the profile table with a known slip44
	RoleFallback
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleLegacy:
		return "legacy"
	case RoleEVM:
		return "evm"
	case RoleFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Profile identifies an asset class. Profiles are values and never mutated after construction.
type Profile struct {
	ID     string
	Family Family
	Slip44 uint32
	Role   Role

	// UTXO address encoding parameters, zero for EVM coins
	Bech32HRP        string
	PubKeyHashAddrID byte
	ScriptHashAddrID byte
	MessageMagic     string
}

// IsEVM reports whether the profile belongs to the EVM family
func (p Profile) IsEVM() bool {
	return p.Family == FamilyEVM
}

// HasUTXOEncoding reports whether addresses for this coin can be encoded locally
func (p Profile) HasUTXOEncoding() bool {
	return p.Family == FamilyUTXO && p.Role != RoleFallback && p.Bech32HRP != ""
}
