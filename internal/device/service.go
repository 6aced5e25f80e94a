package device

import "context"

// Service is the boundary to the signing device. Every method is one request/response
// exchange; implementations own their transport and timeouts. Failures reported by the
// device come back as a Status with Success unset, transport problems as an error.
type Service interface {
	// Init performs one-time session setup
	Init(ctx context.Context, manifest Manifest) error

	// GetPublicKey returns public key material; prompts when ShowOnDevice is set or the device is locked
	GetPublicKey(ctx context.Context, req PublicKeyRequest) (*PublicKeyResponse, error)

	// GetAccountInfo returns account level data without prompting
	GetAccountInfo(ctx context.Context, req AccountInfoRequest) (*AccountInfoResponse, error)

	// SignMessage signs a UTXO style message (prompts)
	SignMessage(ctx context.Context, req SignMessageRequest) (*SignedMessage, error)

	// SignEthereumMessage signs an EVM personal message (prompts)
	SignEthereumMessage(ctx context.Context, req EthereumMessageRequest) (*SignedMessage, error)

	// SignTypedData signs EIP-712 typed data (prompts)
	SignTypedData(ctx context.Context, req TypedDataRequest) (*SignedMessage, error)

	// SignUtxoTransaction signs a UTXO transaction (prompts)
	SignUtxoTransaction(ctx context.Context, req UtxoTransactionRequest) (*SignedTransaction, error)

	// SignEvmTransaction signs an EVM transaction (prompts)
	SignEvmTransaction(ctx context.Context, req EvmTransactionRequest) (*SignedTransaction, error)

	// VerifyMessage verifies a UTXO message signature
	VerifyMessage(ctx context.Context, req VerifyMessageRequest) (*Status, error)

	// GetAddress returns the address at a path; prompts when ShowOnDevice is set
	GetAddress(ctx context.Context, req AddressRequest) (*AddressResponse, error)

	// Dispose releases device side session resources
	Dispose() error
}

// Notifier is implemented by devices that publish connection and model events.
// The returned function unsubscribes.
type Notifier interface {
	Subscribe() (<-chan Event, func())
}
