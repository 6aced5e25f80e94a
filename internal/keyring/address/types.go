package address

import (
	"context"

	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
)

// DerivedAddress is the result of deriving one account. Immutable once created.
type DerivedAddress struct {
	Path      hdpath.DerivationPath
	Index     uint32
	Address   string
	PublicKey []byte
	ChainCode []byte
}

// Service provides address derivation against the signing device
type Service interface {
	// Derive derives the address at template/index. Each call reaches the device
	// (or, in local mode, the cached account key); caching is the caller's concern.
	Derive(ctx context.Context, template hdpath.DerivationPath, index uint32, profile coin.Profile) (*DerivedAddress, error)

	// Forget drops any account level key material fetched for local derivation
	Forget()
}

// Options tunes the deriver
type Options struct {
	// LocalDerivation fetches the template's extended public key once and derives
	// children locally instead of asking the device for every index.
	LocalDerivation bool
}
