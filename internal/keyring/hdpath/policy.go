package hdpath

import (
	"github.com/pkg/errors"
	"github/chapool/hw-keyring/internal/keyring/coin"
)

const (
	purposeBIP44 = 44
	purposeBIP49 = 49
	purposeBIP84 = 84
	ethereumCoin = 60
)

// ResolveTemplate maps a coin profile to its derivation path template. The template
// excludes the trailing account index.
//
//   - UTXO primary:  m/84'/<slip44>'/0'
//   - UTXO legacy:   m/49'/0'/0'
//   - EVM:           m/44'/60'/0'/0
//   - fallback:      m/44'/<slip44>'/0'/0/0
func ResolveTemplate(profile coin.Profile) (DerivationPath, error) {
	switch profile.Role {
	case coin.RoleEVM:
		return DerivationPath{
			HardenedOffset + purposeBIP44,
			HardenedOffset + ethereumCoin,
			HardenedOffset,
			0,
		}, nil
	case coin.RolePrimary:
		return DerivationPath{
			HardenedOffset + purposeBIP84,
			HardenedOffset + profile.Slip44,
			HardenedOffset,
		}, nil
	case coin.RoleLegacy:
		return DerivationPath{
			HardenedOffset + purposeBIP49,
			HardenedOffset,
			HardenedOffset,
		}, nil
	case coin.RoleFallback:
		return DerivationPath{
			HardenedOffset + purposeBIP44,
			HardenedOffset + profile.Slip44,
			HardenedOffset,
			0,
			0,
		}, nil
	default:
		return nil, errors.Wrapf(coin.ErrUnsupportedCoin, "no path policy for %q", profile.ID)
	}
}

// Resolver resolves templates; the keyring swaps it to honour a user-selected EVM path
type Resolver func(profile coin.Profile) (DerivationPath, error)
