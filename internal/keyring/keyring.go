// Package keyring exposes a hardware wallet as a keyring: account discovery and paging,
// address lookups and signing, all serialized through a single device prompt queue.
package keyring

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github/chapool/hw-keyring/internal/config"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/keyring/address"
	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
	"github/chapool/hw-keyring/internal/keyring/pathcache"
	"github/chapool/hw-keyring/internal/keyring/prompt"
	"github/chapool/hw-keyring/internal/keyring/signer"
	"github/chapool/hw-keyring/internal/metrics"
	"github/chapool/hw-keyring/internal/util"
)

var (
	// ErrNotSupported is returned for operations a hardware wallet can not perform
	ErrNotSupported = errors.New("Not supported on this device") //nolint:stylecheck,revive // message surfaced to users verbatim

	// ErrUnknownAccount is returned when an address is not one of the keyring's accounts
	ErrUnknownAccount = errors.New("account not found in this keyring")

	// ErrUnsupportedHDPath is returned by SetHDPath for paths outside the allowed set
	ErrUnsupportedHDPath = errors.New("unsupported hd path")
)

// Allowed EVM derivation templates
//
//nolint:gochecknoglobals
var (
	DefaultHDPath = hdpath.MustParse("m/44'/60'/0'/0")
	TestnetHDPath = hdpath.MustParse("m/44'/1'/0'/0")
)

// Keyring composes the device, the path cache, the prompt queue and the signer
type Keyring struct {
	device   device.Service
	monitor  *device.Monitor
	coins    *coin.Registry
	prompts  *prompt.Queue
	deriver  address.Service
	cache    *pathcache.Cache
	signer   signer.Service
	metrics  *metrics.Metrics
	manifest device.Manifest

	defaultPerPage int

	mu              sync.RWMutex
	hdPath          hdpath.DerivationPath
	accounts        []string
	paths           map[string]uint32
	page            int
	perPage         int
	unlockedAccount uint32

	stopEvents func()
}

// New creates a keyring on top of an already constructed dependency graph
func New(
	cfg config.Keyring,
	dev device.Service,
	coins *coin.Registry,
	prompts *prompt.Queue,
	deriver address.Service,
	cache *pathcache.Cache,
	m *metrics.Metrics,
) (*Keyring, error) {
	hdPath := DefaultHDPath
	if cfg.HDPath != "" {
		parsed, err := parseAllowedHDPath(cfg.HDPath)
		if err != nil {
			return nil, err
		}
		hdPath = parsed
	}

	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 5 //nolint:mnd
	}

	k := &Keyring{
		device:  dev,
		monitor: device.NewMonitor(),
		coins:   coins,
		prompts: prompts,
		deriver: deriver,
		cache:   cache,
		metrics: m,
		manifest: device.Manifest{
			AppURL: cfg.ManifestAppURL,
			Email:  cfg.ManifestEmail,
		},
		defaultPerPage: perPage,
		hdPath:         hdPath,
		paths:          make(map[string]uint32),
		perPage:        perPage,
	}

	k.signer = signer.NewService(dev, prompts, cache, coins, m, signer.Options{
		Templates: k.Template,
		Model:     k.Model,
	})

	return k, nil
}

// Initialize sets up the device session, starts following device events and shows
// the first EVM address on the device
func (k *Keyring) Initialize(ctx context.Context) error {
	log := util.LogFromContext(ctx).With().Str("component", "keyring").Logger()

	if notifier, ok := k.device.(device.Notifier); ok && k.stopEvents == nil {
		events, unsubscribe := notifier.Subscribe()
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		go k.monitor.Run(runCtx, events)
		k.stopEvents = func() {
			cancel()
			unsubscribe()
		}
	}

	err := device.Check(device.OpInit, &device.OK, k.device.Init(ctx, k.manifest))
	k.metrics.DeviceCall(device.OpInit, err)
	if err != nil {
		return err
	}

	path := k.HDPath().Child(0)
	err = k.prompts.Admit(ctx, func(ctx context.Context) error {
		resp, callErr := k.device.GetAddress(ctx, device.AddressRequest{
			Path:         path,
			Coin:         "ETH",
			ShowOnDevice: true,
		})
		callErr = device.Check(device.OpGetAddress, resp, callErr)
		k.metrics.DeviceCall(device.OpGetAddress, callErr)
		if callErr == nil {
			log.Info().Str("address", resp.Address).Str("path", path.String()).Msg("Device initialized")
		}
		return callErr
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize device")
	}

	return nil
}

// Close stops following device events and disposes the device session
func (k *Keyring) Close() error {
	if k.stopEvents != nil {
		k.stopEvents()
		k.stopEvents = nil
	}

	err := k.device.Dispose()
	k.metrics.DeviceCall(device.OpDispose, err)
	if err != nil {
		return errors.Wrap(err, "failed to dispose device")
	}
	return nil
}

// Model returns the last observed device model
func (k *Keyring) Model() string {
	return k.monitor.Latest().Model
}

// Connected reports the last observed connection state
func (k *Keyring) Connected() bool {
	return k.monitor.Latest().Connected
}

// Monitor exposes the device state monitor for callers feeding their own event stream
func (k *Keyring) Monitor() *device.Monitor {
	return k.monitor
}

// Coins returns the coin registry
func (k *Keyring) Coins() *coin.Registry {
	return k.coins
}

// HDPath returns the current EVM derivation template
func (k *Keyring) HDPath() hdpath.DerivationPath {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.hdPath
}

// Template resolves the derivation template for a coin; EVM coins follow the selected HD path
func (k *Keyring) Template(profile coin.Profile) (hdpath.DerivationPath, error) {
	if profile.IsEVM() {
		return k.HDPath(), nil
	}
	return hdpath.ResolveTemplate(profile)
}

// Profile resolves a coin identifier
func (k *Keyring) Profile(coinID string, slip44 *uint32) (coin.Profile, error) {
	return k.coins.Resolve(coinID, slip44)
}

// AddressForIndex returns the address of an account
func (k *Keyring) AddressForIndex(ctx context.Context, coinID string, index uint32) (*address.DerivedAddress, error) {
	profile, template, err := k.resolve(coinID)
	if err != nil {
		return nil, err
	}
	return k.cache.AddressForIndex(ctx, template, index, profile)
}

// IndexForAddress finds the account index of an address, scanning when it was not seen before
func (k *Keyring) IndexForAddress(ctx context.Context, coinID string, addr string) (uint32, error) {
	profile, template, err := k.resolve(coinID)
	if err != nil {
		return 0, err
	}
	return k.cache.IndexForAddress(ctx, addr, template, profile)
}

// Sign signs a request on the device
func (k *Keyring) Sign(ctx context.Context, req signer.Request) (*signer.Signature, error) {
	return k.signer.Sign(ctx, req)
}

// ExportAccount is never possible on a hardware wallet
func (k *Keyring) ExportAccount(string) (string, error) {
	return "", ErrNotSupported
}

func (k *Keyring) resolve(coinID string) (coin.Profile, hdpath.DerivationPath, error) {
	profile, err := k.coins.Resolve(coinID, nil)
	if err != nil {
		return coin.Profile{}, nil, err
	}

	template, err := k.Template(profile)
	if err != nil {
		return coin.Profile{}, nil, err
	}
	return profile, template, nil
}

func parseAllowedHDPath(s string) (hdpath.DerivationPath, error) {
	path, err := hdpath.Parse(s)
	if err != nil {
		return nil, errors.Wrap(ErrUnsupportedHDPath, err.Error())
	}
	if !path.Equal(DefaultHDPath) && !path.Equal(TestnetHDPath) {
		return nil, errors.Wrapf(ErrUnsupportedHDPath, "%s", s)
	}
	return path, nil
}
