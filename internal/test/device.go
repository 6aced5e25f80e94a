package test

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/stretchr/testify/require"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/device/soft"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
)

// Mnemonic is the well known BIP39 test vector
//
//nolint:dupword // Test mnemonic with repeated words
const Mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// FirstEthAddress is the address of Mnemonic at m/44'/60'/0'/0/0
const FirstEthAddress = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

// Call is one recorded device exchange
type Call struct {
	Op      string
	Path    hdpath.DerivationPath
	Started mclock.AbsTime
	Ended   mclock.AbsTime
}

// Device wraps a device.Service, records every exchange and lets tests inject
// failures or tamper with replies. Hooks must be set before the device is shared.
type Device struct {
	inner device.Service
	clock mclock.Clock

	// BeforeCall runs before the wrapped device is reached; an error becomes the transport error
	BeforeCall func(ctx context.Context, op string) error

	// Fail maps an operation to the failure reason the device should report
	Fail map[string]string

	// PublicKey replaces GetPublicKey replies
	PublicKey func(req device.PublicKeyRequest) (*device.PublicKeyResponse, error)

	// TamperMessage edits message signature replies
	TamperMessage func(op string, msg *device.SignedMessage)

	// TamperTransaction edits signed transaction replies
	TamperTransaction func(tx *device.SignedTransaction)

	mu    sync.Mutex
	calls []Call
}

var (
	_ device.Service  = (*Device)(nil)
	_ device.Notifier = (*Device)(nil)
)

// NewDevice wraps inner. A nil clock records against the system clock.
func NewDevice(inner device.Service, clock mclock.Clock) *Device {
	if clock == nil {
		clock = mclock.System{}
	}
	return &Device{
		inner: inner,
		clock: clock,
		Fail:  make(map[string]string),
	}
}

// NewSoftDevice returns a recording device around a software device loaded with Mnemonic
func NewSoftDevice(t *testing.T, clock mclock.Clock) (*Device, *soft.Device) {
	t.Helper()

	inner := soft.New(soft.Options{})
	require.NoError(t, inner.LoadMnemonic(Mnemonic, ""))

	return NewDevice(inner, clock), inner
}

// Calls returns a copy of the recorded exchanges
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// CallsTo returns the recorded exchanges for one operation
func (d *Device) CallsTo(op string) []Call {
	var out []Call
	for _, c := range d.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded exchanges
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = nil
}

// call wraps one exchange. Returning a non-nil status short-circuits the inner device.
func (d *Device) call(ctx context.Context, op string, path hdpath.DerivationPath) (func(), *device.Status, error) {
	started := d.clock.Now()
	done := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.calls = append(d.calls, Call{Op: op, Path: path, Started: started, Ended: d.clock.Now()})
	}

	if d.BeforeCall != nil {
		if err := d.BeforeCall(ctx, op); err != nil {
			done()
			return nil, nil, err
		}
	}
	if reason, ok := d.Fail[op]; ok {
		status := device.Failed(reason)
		done()
		return nil, &status, nil
	}

	return done, nil, nil
}

func (d *Device) Init(ctx context.Context, manifest device.Manifest) error {
	done, status, err := d.call(ctx, device.OpInit, nil)
	if err != nil {
		return err
	}
	if status != nil {
		return &device.DeviceError{Op: device.OpInit, Reason: status.Error}
	}
	defer done()
	return d.inner.Init(ctx, manifest)
}

func (d *Device) GetPublicKey(ctx context.Context, req device.PublicKeyRequest) (*device.PublicKeyResponse, error) {
	done, status, err := d.call(ctx, device.OpGetPublicKey, req.Path)
	if err != nil || status != nil {
		return statusReply[device.PublicKeyResponse](status), err
	}
	defer done()

	if d.PublicKey != nil {
		return d.PublicKey(req)
	}
	return d.inner.GetPublicKey(ctx, req)
}

func (d *Device) GetAccountInfo(ctx context.Context, req device.AccountInfoRequest) (*device.AccountInfoResponse, error) {
	done, status, err := d.call(ctx, device.OpGetAccountInfo, req.Path)
	if err != nil || status != nil {
		return statusReply[device.AccountInfoResponse](status), err
	}
	defer done()
	return d.inner.GetAccountInfo(ctx, req)
}

func (d *Device) SignMessage(ctx context.Context, req device.SignMessageRequest) (*device.SignedMessage, error) {
	done, status, err := d.call(ctx, device.OpSignMessage, req.Path)
	if err != nil || status != nil {
		return statusReply[device.SignedMessage](status), err
	}
	defer done()
	return d.tamperMessage(device.OpSignMessage)(d.inner.SignMessage(ctx, req))
}

func (d *Device) SignEthereumMessage(ctx context.Context, req device.EthereumMessageRequest) (*device.SignedMessage, error) {
	done, status, err := d.call(ctx, device.OpSignEthereumMessage, req.Path)
	if err != nil || status != nil {
		return statusReply[device.SignedMessage](status), err
	}
	defer done()
	return d.tamperMessage(device.OpSignEthereumMessage)(d.inner.SignEthereumMessage(ctx, req))
}

func (d *Device) SignTypedData(ctx context.Context, req device.TypedDataRequest) (*device.SignedMessage, error) {
	done, status, err := d.call(ctx, device.OpSignTypedData, req.Path)
	if err != nil || status != nil {
		return statusReply[device.SignedMessage](status), err
	}
	defer done()
	return d.tamperMessage(device.OpSignTypedData)(d.inner.SignTypedData(ctx, req))
}

func (d *Device) SignUtxoTransaction(ctx context.Context, req device.UtxoTransactionRequest) (*device.SignedTransaction, error) {
	done, status, err := d.call(ctx, device.OpSignUtxoTransaction, nil)
	if err != nil || status != nil {
		return statusReply[device.SignedTransaction](status), err
	}
	defer done()
	return d.tamperTransaction(d.inner.SignUtxoTransaction(ctx, req))
}

func (d *Device) SignEvmTransaction(ctx context.Context, req device.EvmTransactionRequest) (*device.SignedTransaction, error) {
	done, status, err := d.call(ctx, device.OpSignEvmTransaction, req.Path)
	if err != nil || status != nil {
		return statusReply[device.SignedTransaction](status), err
	}
	defer done()
	return d.tamperTransaction(d.inner.SignEvmTransaction(ctx, req))
}

func (d *Device) VerifyMessage(ctx context.Context, req device.VerifyMessageRequest) (*device.Status, error) {
	done, status, err := d.call(ctx, device.OpVerifyMessage, nil)
	if err != nil || status != nil {
		return status, err
	}
	defer done()
	return d.inner.VerifyMessage(ctx, req)
}

func (d *Device) GetAddress(ctx context.Context, req device.AddressRequest) (*device.AddressResponse, error) {
	done, status, err := d.call(ctx, device.OpGetAddress, req.Path)
	if err != nil || status != nil {
		return statusReply[device.AddressResponse](status), err
	}
	defer done()
	return d.inner.GetAddress(ctx, req)
}

func (d *Device) Dispose() error {
	done, _, _ := d.call(context.Background(), device.OpDispose, nil)
	if done != nil {
		defer done()
	}
	return d.inner.Dispose()
}

// Subscribe forwards to the wrapped device when it publishes events
func (d *Device) Subscribe() (<-chan device.Event, func()) {
	if n, ok := d.inner.(device.Notifier); ok {
		return n.Subscribe()
	}
	return make(chan device.Event), func() {}
}

func (d *Device) tamperMessage(op string) func(*device.SignedMessage, error) (*device.SignedMessage, error) {
	return func(msg *device.SignedMessage, err error) (*device.SignedMessage, error) {
		if err == nil && msg != nil && d.TamperMessage != nil {
			d.TamperMessage(op, msg)
		}
		return msg, err
	}
}

func (d *Device) tamperTransaction(tx *device.SignedTransaction, err error) (*device.SignedTransaction, error) {
	if err == nil && tx != nil && d.TamperTransaction != nil {
		d.TamperTransaction(tx)
	}
	return tx, err
}

type reply interface {
	device.PublicKeyResponse | device.AccountInfoResponse | device.SignedMessage |
		device.SignedTransaction | device.AddressResponse
}

// statusReply builds a failed reply of type T, or nil when there is no status
func statusReply[T reply](status *device.Status) *T {
	if status == nil {
		return nil
	}
	var out T
	setStatus(&out, *status)
	return &out
}

func setStatus(out any, status device.Status) {
	switch r := out.(type) {
	case *device.PublicKeyResponse:
		r.Status = status
	case *device.AccountInfoResponse:
		r.Status = status
	case *device.SignedMessage:
		r.Status = status
	case *device.SignedTransaction:
		r.Status = status
	case *device.AddressResponse:
		r.Status = status
	}
}
