package device

// Operation names used in errors, logs and metrics
const (
	OpInit                = "init"
	OpGetPublicKey        = "getPublicKey"
	OpGetAccountInfo      = "getAccountInfo"
	OpSignMessage         = "signMessage"
	OpSignEthereumMessage = "signEthereumMessage"
	OpSignTypedData       = "signTypedData"
	OpSignUtxoTransaction = "signUtxoTransaction"
	OpSignEvmTransaction  = "signEvmTransaction"
	OpVerifyMessage       = "verifyMessage"
	OpGetAddress          = "getAddress"
	OpDispose             = "dispose"
)
