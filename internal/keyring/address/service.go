package address

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tyler-smith/go-bip32"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/encoding"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
	"github/chapool/hw-keyring/internal/keyring/prompt"
	"github/chapool/hw-keyring/internal/metrics"
	"github/chapool/hw-keyring/internal/util"
)

type service struct {
	device  device.Service
	prompts prompt.Serializer
	metrics *metrics.Metrics
	opts    Options

	mu          sync.Mutex
	accountKeys map[string]*bip32.Key
}

// NewService creates a new AddressService
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(dev device.Service, prompts prompt.Serializer, m *metrics.Metrics, opts Options) Service {
	return &service{
		device:      dev,
		prompts:     prompts,
		metrics:     m,
		opts:        opts,
		accountKeys: make(map[string]*bip32.Key),
	}
}

// Derive derives the address at template/index
func (s *service) Derive(ctx context.Context, template hdpath.DerivationPath, index uint32, profile coin.Profile) (*DerivedAddress, error) {
	if index >= hdpath.HardenedOffset {
		return nil, errors.Errorf("account index %d out of range", index)
	}

	path := template.Child(index)
	log := util.LogFromContext(ctx).With().
		Str("coin", profile.ID).
		Str("path", path.String()).
		Logger()

	var (
		publicKey, chainCode []byte
		err                  error
	)
	if s.opts.LocalDerivation {
		publicKey, chainCode, err = s.deriveLocal(ctx, template, index, profile)
	} else {
		publicKey, chainCode, err = s.fetchPublicKey(ctx, path, profile)
	}
	if err != nil {
		return nil, err
	}

	address, err := s.encode(ctx, &log, path, publicKey, profile)
	if err != nil {
		return nil, err
	}

	s.metrics.Derived()
	log.Debug().Str("address", address).Msg("Derived address")

	return &DerivedAddress{
		Path:      path,
		Index:     index,
		Address:   address,
		PublicKey: publicKey,
		ChainCode: chainCode,
	}, nil
}

// Forget drops cached account keys
func (s *service) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accountKeys = make(map[string]*bip32.Key)
}

// fetchPublicKey asks the device for the key material at path. This is an interactive
// exchange and goes through the prompt serializer.
func (s *service) fetchPublicKey(ctx context.Context, path hdpath.DerivationPath, profile coin.Profile) ([]byte, []byte, error) {
	var resp *device.PublicKeyResponse
	err := s.prompts.Admit(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = s.device.GetPublicKey(ctx, device.PublicKeyRequest{
			Path: path,
			Coin: DeviceCoin(profile),
		})
		callErr = device.Check(device.OpGetPublicKey, resp, callErr)
		s.metrics.DeviceCall(device.OpGetPublicKey, callErr)
		return callErr
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to get public key at %s", path)
	}

	return resp.PublicKey, resp.ChainCode, nil
}

// encode turns a public key into the coin's address form. UTXO coins prefer the
// address reported by the device's account info and fall back to local encoding.
func (s *service) encode(ctx context.Context, log *zerolog.Logger, path hdpath.DerivationPath, publicKey []byte, profile coin.Profile) (string, error) {
	if profile.IsEVM() {
		address, err := encoding.EVMAddress(publicKey)
		if err != nil {
			return "", errors.Wrap(err, "failed to compute EVM address")
		}
		return address, nil
	}

	info, err := s.device.GetAccountInfo(ctx, device.AccountInfoRequest{
		Path: path,
		Coin: DeviceCoin(profile),
	})
	err = device.Check(device.OpGetAccountInfo, info, err)
	s.metrics.DeviceCall(device.OpGetAccountInfo, err)
	if err == nil && info.Address != "" {
		return info.Address, nil
	}
	if err != nil {
		log.Debug().Err(err).Msg("Account info unavailable, encoding address locally")
	}

	address, err := encoding.UTXOAddress(publicKey, profile, path.Purpose())
	if err != nil {
		return "", errors.Wrap(err, "failed to compute UTXO address")
	}
	return address, nil
}

// deriveLocal derives a non-hardened child from the template's extended public key,
// fetching that key from the device on first use.
func (s *service) deriveLocal(ctx context.Context, template hdpath.DerivationPath, index uint32, profile coin.Profile) ([]byte, []byte, error) {
	parent, err := s.accountKey(ctx, template, profile)
	if err != nil {
		return nil, nil, err
	}

	child, err := parent.NewChildKey(index)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
	}

	return child.Key, child.ChainCode, nil
}

func (s *service) accountKey(ctx context.Context, template hdpath.DerivationPath, profile coin.Profile) (*bip32.Key, error) {
	scope := template.String()

	s.mu.Lock()
	key, ok := s.accountKeys[scope]
	s.mu.Unlock()
	if ok {
		return key, nil
	}

	publicKey, chainCode, err := s.fetchPublicKey(ctx, template, profile)
	if err != nil {
		return nil, err
	}

	var childNumber uint32
	if len(template) > 0 {
		childNumber = template[len(template)-1]
	}
	key = &bip32.Key{
		Version:     bip32.PublicWalletVersion,
		Depth:       byte(len(template)),
		ChildNumber: uint32Bytes(childNumber),
		FingerPrint: []byte{0, 0, 0, 0},
		ChainCode:   chainCode,
		Key:         publicKey,
		IsPrivate:   false,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.accountKeys[scope]; ok {
		return existing, nil
	}
	s.accountKeys[scope] = key

	return key, nil
}

// DeviceCoin is the coin name the device expects: ETH for every EVM chain, the
// uppercase ticker otherwise.
func DeviceCoin(profile coin.Profile) string {
	if profile.IsEVM() {
		return "ETH"
	}
	return strings.ToUpper(profile.ID)
}

func uint32Bytes(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
