package soft

import (
	"crypto/sha512"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"golang.org/x/crypto/pbkdf2"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
)

// ErrLocked is returned when the device is asked to derive keys before a seed is loaded
var ErrLocked = errors.New("device is locked")

// seedVault holds the BIP39 seed with thread-safe access
type seedVault struct {
	mu   sync.RWMutex
	seed []byte
}

// load converts a mnemonic to a seed using PBKDF2 (BIP39):
// seed = PBKDF2(mnemonic, "mnemonic" + passphrase, 2048, 64, SHA512)
func (v *seedVault) load(mnemonic string, passphrase string) error {
	const (
		pbkdf2Iterations = 2048
		pbkdf2KeyLength  = 64
	)

	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if mnemonic == "" {
		return errors.New("empty mnemonic")
	}

	seed := pbkdf2.Key(
		[]byte(mnemonic),
		[]byte("mnemonic"+passphrase),
		pbkdf2Iterations,
		pbkdf2KeyLength,
		sha512.New,
	)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.wipeLocked()
	v.seed = seed

	return nil
}

func (v *seedVault) loaded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.seed != nil
}

// derive walks path from the master key. Callers must not retain the private key.
func (v *seedVault) derive(path hdpath.DerivationPath) (*bip32.Key, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.seed == nil {
		return nil, ErrLocked
	}

	key, err := bip32.NewMasterKey(v.seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create master key")
	}

	for _, index := range path {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
	}

	return key, nil
}

func (v *seedVault) clear() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.wipeLocked()
}

func (v *seedVault) wipeLocked() {
	for i := range v.seed {
		v.seed[i] = 0
	}
	v.seed = nil
}
