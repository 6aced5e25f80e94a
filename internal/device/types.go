package device

import (
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
)

// Manifest identifies the application to the device vendor on session setup
type Manifest struct {
	AppURL string `json:"appUrl"`
	Email  string `json:"email"`
}

// Status is the success envelope every device response carries
type Status struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PublicKeyRequest asks for the public key material at a path
type PublicKeyRequest struct {
	Path         hdpath.DerivationPath
	Coin         string
	ShowOnDevice bool
}

// PublicKeyResponse carries a compressed secp256k1 public key and its BIP32 chain code
type PublicKeyResponse struct {
	Status
	PublicKey []byte
	ChainCode []byte
}

// AccountInfoRequest asks for account level data at a path
type AccountInfoRequest struct {
	Path hdpath.DerivationPath
	Coin string
}

// AccountInfoResponse carries the account descriptor and, when the vendor reports one, its address
type AccountInfoResponse struct {
	Status
	Descriptor string
	Address    string
}

// SignMessageRequest is a UTXO style message signature request
type SignMessageRequest struct {
	Path    hdpath.DerivationPath
	Coin    string
	Message string
	Hex     bool
}

// EthereumMessageRequest is an EVM personal_sign request. Message is hex without 0x framing when Hex is set.
type EthereumMessageRequest struct {
	Path    hdpath.DerivationPath
	Message string
	Hex     bool
}

// TypedDataRequest is an EIP-712 signature request. The hashes are only needed by
// models that can not parse structured data and blind-sign the digests instead.
type TypedDataRequest struct {
	Path                hdpath.DerivationPath
	Data                apitypes.TypedData
	DomainSeparatorHash string
	MessageHash         string
	MetamaskV4Compat    bool
}

// SignedMessage is the reply to any message signature request
type SignedMessage struct {
	Status
	Address   string
	Signature string
}

// UtxoInput is forwarded verbatim to the device
type UtxoInput struct {
	AddressN   hdpath.DerivationPath `json:"addressN"`
	PrevHash   string                `json:"prevHash"`
	PrevIndex  uint32                `json:"prevIndex"`
	Amount     string                `json:"amount"`
	ScriptType string                `json:"scriptType"`
}

// UtxoOutput is forwarded verbatim to the device. Either Address or AddressN is set.
type UtxoOutput struct {
	Address    string                `json:"address,omitempty"`
	AddressN   hdpath.DerivationPath `json:"addressN,omitempty"`
	Amount     string                `json:"amount"`
	ScriptType string                `json:"scriptType"`
}

// UtxoTransactionRequest asks the device to sign a UTXO transaction
type UtxoTransactionRequest struct {
	Coin    string
	Inputs  []UtxoInput
	Outputs []UtxoOutput
}

// EvmTx holds the transaction fields sent to the device. Amounts are decimal strings.
// GasPrice selects a legacy transaction, otherwise the EIP-1559 fee fields are used.
type EvmTx struct {
	ChainID              int64  `json:"chainId"`
	Nonce                uint64 `json:"nonce"`
	To                   string `json:"to"`
	Value                string `json:"value"`
	GasLimit             uint64 `json:"gasLimit"`
	GasPrice             string `json:"gasPrice,omitempty"`
	MaxFeePerGas         string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas,omitempty"`
	Data                 []byte `json:"data,omitempty"`
}

// EvmTransactionRequest asks the device to sign an EVM transaction at a path
type EvmTransactionRequest struct {
	Path hdpath.DerivationPath
	Tx   EvmTx
}

// SignedTransaction carries the serialized signed transaction as hex
type SignedTransaction struct {
	Status
	SerializedTx string
}

// VerifyMessageRequest asks the device to verify a UTXO message signature
type VerifyMessageRequest struct {
	Coin      string
	Address   string
	Message   string
	Signature string
}

// AddressRequest asks for the address at a path, optionally displayed for confirmation
type AddressRequest struct {
	Path         hdpath.DerivationPath
	Coin         string
	ShowOnDevice bool
}

// AddressResponse carries a device reported address
type AddressResponse struct {
	Status
	Address string
}
