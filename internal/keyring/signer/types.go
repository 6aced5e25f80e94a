package signer

import (
	"context"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/keyring/address"
	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
)

var (
	// ErrAddressMismatch means the device signed with a different key than the one
	// requested. It points at a device or firmware integrity problem and is never retried.
	ErrAddressMismatch = errors.New("signature does not match the requested address")

	// ErrInvalidRequest is returned for malformed signing requests
	ErrInvalidRequest = errors.New("invalid signing request")
)

// Kind names a signing request variant
type Kind string

const (
	KindPersonalMessage Kind = "personal_message"
	KindTypedData       Kind = "typed_data"
	KindUtxoTransaction Kind = "utxo_transaction"
	KindEvmTransaction  Kind = "evm_transaction"
)

// Request is one of PersonalMessage, TypedData, UtxoTransaction or EvmTransaction
type Request interface {
	Kind() Kind
}

// PersonalMessage signs Data with the account at AccountIndex. For EVM coins Data is
// either raw bytes or 0x-prefixed hex text.
type PersonalMessage struct {
	Coin         string
	Slip44       *uint32
	AccountIndex uint32
	Data         []byte
}

// TypedData signs an EIP-712 structure with the account owning Address
type TypedData struct {
	Coin        string
	Address     string
	Domain      apitypes.TypedDataDomain
	Types       apitypes.Types
	Message     apitypes.TypedDataMessage
	PrimaryType string
}

// UtxoTransaction forwards inputs and outputs to the device unchanged
type UtxoTransaction struct {
	Coin    string
	Slip44  *uint32
	Inputs  []device.UtxoInput
	Outputs []device.UtxoOutput
}

// EvmTransaction signs Tx with the account at AccountIndex
type EvmTransaction struct {
	Coin         string
	AccountIndex uint32
	Tx           device.EvmTx
}

func (PersonalMessage) Kind() Kind { return KindPersonalMessage }
func (TypedData) Kind() Kind       { return KindTypedData }
func (UtxoTransaction) Kind() Kind { return KindUtxoTransaction }
func (EvmTransaction) Kind() Kind  { return KindEvmTransaction }

// Signature is the result of a signing request. Message signatures fill Address and
// Signature, transactions fill SerializedTx.
type Signature struct {
	RequestID    string
	Kind         Kind
	Address      string
	Signature    string
	SerializedTx string
	TxHash       string
}

// Service signs requests on the device
type Service interface {
	Sign(ctx context.Context, req Request) (*Signature, error)
}

// AddressBook resolves accounts to addresses and back
type AddressBook interface {
	AddressForIndex(ctx context.Context, template hdpath.DerivationPath, index uint32, profile coin.Profile) (*address.DerivedAddress, error)
	IndexForAddress(ctx context.Context, addr string, template hdpath.DerivationPath, profile coin.Profile) (uint32, error)
	Cached(template hdpath.DerivationPath, index uint32) (*address.DerivedAddress, bool)
}

// Options tunes the signer
type Options struct {
	// Templates overrides path policy, e.g. to honour a user selected HD path.
	// Defaults to hdpath.ResolveTemplate.
	Templates hdpath.Resolver

	// Model reports the connected device model; may be nil
	Model func() string

	// Listener observes state transitions; may be nil
	Listener Listener
}
