// Package soft implements a software signing device backed by a BIP39 mnemonic.
// It speaks the same request/response protocol as a hardware wallet and is used for
// local development and tests.
package soft

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/encoding"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
	"github/chapool/hw-keyring/internal/util"
)

// DefaultModel is reported when no model is configured
const DefaultModel = "T"

const reasonCancelled = "Action cancelled by user"

// ConfirmFunc is consulted before any operation a hardware device would show on screen.
// Returning an error rejects the operation.
type ConfirmFunc func(ctx context.Context, op string) error

// Options configures a Device
type Options struct {
	Model    string
	Registry *coin.Registry
	Confirm  ConfirmFunc
}

// Device is a device.Service holding its keys in memory
type Device struct {
	model    string
	registry *coin.Registry
	confirm  ConfirmFunc
	seed     seedVault

	mu          sync.Mutex
	manifest    *device.Manifest
	subscribers map[int]chan device.Event
	nextSub     int
}

var (
	_ device.Service  = (*Device)(nil)
	_ device.Notifier = (*Device)(nil)
)

// New creates a locked device
func New(opts Options) *Device {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Registry == nil {
		opts.Registry = coin.NewRegistry()
	}

	return &Device{
		model:       opts.Model,
		registry:    opts.Registry,
		confirm:     opts.Confirm,
		subscribers: make(map[int]chan device.Event),
	}
}

// LoadMnemonic unlocks the device with a mnemonic and optional BIP39 passphrase
func (d *Device) LoadMnemonic(mnemonic string, passphrase string) error {
	return d.seed.load(mnemonic, passphrase)
}

// Unlock opens a keystore and loads the mnemonic it seals
func (d *Device) Unlock(ks *Keystore, password string, passphrase string) error {
	mnemonic, err := ks.Open(password)
	if err != nil {
		return err
	}
	return d.seed.load(mnemonic, passphrase)
}

// Model returns the reported device model
func (d *Device) Model() string {
	return d.model
}

// Subscribe implements device.Notifier
func (d *Device) Subscribe() (<-chan device.Event, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextSub
	d.nextSub++
	ch := make(chan device.Event, 8) //nolint:mnd
	d.subscribers[id] = ch

	return ch, func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		if sub, ok := d.subscribers[id]; ok {
			delete(d.subscribers, id)
			close(sub)
		}
	}
}

func (d *Device) publish(ev device.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ch := range d.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Init records the manifest and announces the device
func (d *Device) Init(ctx context.Context, manifest device.Manifest) error {
	d.mu.Lock()
	d.manifest = &manifest
	d.mu.Unlock()

	util.LogFromContext(ctx).Debug().
		Str("component", "soft_device").
		Str("app_url", manifest.AppURL).
		Msg("Device session initialized")

	d.publish(device.Event{Type: device.EventConnect, Model: d.model, Initialized: d.seed.loaded()})
	return nil
}

// Dispose wipes the seed and announces the disconnect
func (d *Device) Dispose() error {
	d.seed.clear()

	d.mu.Lock()
	d.manifest = nil
	d.mu.Unlock()

	d.publish(device.Event{Type: device.EventDisconnect})
	return nil
}

// GetPublicKey returns the compressed public key and chain code at a path
func (d *Device) GetPublicKey(ctx context.Context, req device.PublicKeyRequest) (*device.PublicKeyResponse, error) {
	if req.ShowOnDevice {
		if status := d.ask(ctx, device.OpGetPublicKey); !status.Success {
			return &device.PublicKeyResponse{Status: status}, nil
		}
	}

	key, err := d.seed.derive(req.Path)
	if err != nil {
		return &device.PublicKeyResponse{Status: device.Failed(err.Error())}, nil
	}
	pub := key.PublicKey()

	return &device.PublicKeyResponse{
		Status:    device.OK,
		PublicKey: pub.Key,
		ChainCode: pub.ChainCode,
	}, nil
}

// GetAccountInfo returns the extended public key at a path and, for UTXO coins with a
// known encoding, the address for the path's purpose
func (d *Device) GetAccountInfo(_ context.Context, req device.AccountInfoRequest) (*device.AccountInfoResponse, error) {
	key, err := d.seed.derive(req.Path)
	if err != nil {
		return &device.AccountInfoResponse{Status: device.Failed(err.Error())}, nil
	}
	pub := key.PublicKey()

	resp := &device.AccountInfoResponse{
		Status:     device.OK,
		Descriptor: pub.String(),
	}

	if profile, ok := d.registry.Lookup(req.Coin); ok && profile.HasUTXOEncoding() {
		if address, err := encoding.UTXOAddress(pub.Key, profile, req.Path.Purpose()); err == nil {
			resp.Address = address
		}
	}

	return resp, nil
}

// GetAddress returns the address at a path
func (d *Device) GetAddress(ctx context.Context, req device.AddressRequest) (*device.AddressResponse, error) {
	if req.ShowOnDevice {
		if status := d.ask(ctx, device.OpGetAddress); !status.Success {
			return &device.AddressResponse{Status: status}, nil
		}
	}

	address, err := d.addressAt(req.Path, req.Coin)
	if err != nil {
		return &device.AddressResponse{Status: device.Failed(err.Error())}, nil
	}

	return &device.AddressResponse{Status: device.OK, Address: address}, nil
}

// SignUtxoTransaction is not available on the software device
func (d *Device) SignUtxoTransaction(_ context.Context, req device.UtxoTransactionRequest) (*device.SignedTransaction, error) {
	return &device.SignedTransaction{
		Status: device.Failed("UTXO transaction signing is not supported for " + strings.ToUpper(req.Coin)),
	}, nil
}

func (d *Device) ask(ctx context.Context, op string) device.Status {
	if d.confirm == nil {
		return device.OK
	}
	if err := d.confirm(ctx, op); err != nil {
		reason := err.Error()
		if reason == "" {
			reason = reasonCancelled
		}
		return device.Failed(reason)
	}
	return device.OK
}

func (d *Device) profile(coinID string) (coin.Profile, error) {
	profile, ok := d.registry.Lookup(coinID)
	if !ok {
		return coin.Profile{}, errors.Wrapf(coin.ErrUnsupportedCoin, "coin %q", coinID)
	}
	return profile, nil
}

func (d *Device) addressAt(path hdpath.DerivationPath, coinID string) (string, error) {
	profile, err := d.profile(coinID)
	if err != nil {
		return "", err
	}

	key, err := d.seed.derive(path)
	if err != nil {
		return "", err
	}
	pub := key.PublicKey().Key

	if profile.IsEVM() {
		return encoding.EVMAddress(pub)
	}
	return encoding.UTXOAddress(pub, profile, path.Purpose())
}
