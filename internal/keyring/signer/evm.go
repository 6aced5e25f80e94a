package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/encoding"
	"github/chapool/hw-keyring/internal/util"
)

const eip712Domain = "EIP712Domain"

func (s *service) signPersonalMessage(ctx context.Context, c *call, req PersonalMessage) (*Signature, error) {
	if req.Coin == "" {
		req.Coin = defaultEVMCoin
	}

	c.enter(StateResolving, nil)
	profile, template, err := s.resolve(req.Coin, req.Slip44)
	if err != nil {
		return nil, err
	}
	if !profile.IsEVM() {
		return s.signUtxoMessage(ctx, c, req, profile, template)
	}

	derived, err := s.addresses.AddressForIndex(ctx, template, req.AccountIndex, profile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve account %d", req.AccountIndex)
	}

	var resp *device.SignedMessage
	err = s.admit(ctx, c, device.OpSignEthereumMessage, func(ctx context.Context) (any, error) {
		var callErr error
		resp, callErr = s.device.SignEthereumMessage(ctx, device.EthereumMessageRequest{
			Path:    derived.Path,
			Message: messageHex(req.Data),
			Hex:     true,
		})
		return resp, callErr
	})
	if err != nil {
		return nil, err
	}

	c.enter(StateValidating, nil)
	if err := checkSigner(resp.Address, derived.Address, profile); err != nil {
		return nil, err
	}

	return &Signature{Address: derived.Address, Signature: signatureHex(resp.Signature)}, nil
}

// messageHex renders a personal message as bare hex. 0x-prefixed hex input is passed
// through without its prefix, anything else is treated as raw bytes.
func messageHex(data []byte) string {
	text := string(bytes.TrimSpace(data))
	if has0xPrefix(text) {
		if _, err := hex.DecodeString(text[2:]); err == nil {
			return strings.ToLower(text[2:])
		}
	}
	return hex.EncodeToString(data)
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// signatureHex frames a device signature as 0x-prefixed hex. Signatures that are not
// hex are returned as sent.
func signatureHex(sig string) string {
	sig = strings.TrimSpace(sig)
	if has0xPrefix(sig) {
		sig = sig[2:]
	}
	raw, err := hex.DecodeString(sig)
	if err != nil {
		return sig
	}
	return hexutil.Encode(raw)
}

func (s *service) signTypedData(ctx context.Context, c *call, req TypedData) (*Signature, error) {
	if req.PrimaryType == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "typed data without primary type")
	}

	c.enter(StateResolving, nil)
	profile, template, err := s.resolveEVM(req.Coin)
	if err != nil {
		return nil, err
	}

	expected, err := encoding.Normalize(req.Address, profile)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidRequest, err.Error())
	}

	index, err := s.addresses.IndexForAddress(ctx, expected, template, profile)
	if err != nil {
		return nil, err
	}

	data := normalizeTypedData(req)
	var domainHash, messageHash string
	if s.blindSigns() {
		domainHash, messageHash = typedDataHashes(ctx, data)
	}

	derived, err := s.addresses.AddressForIndex(ctx, template, index, profile)
	if err != nil {
		return nil, err
	}

	var resp *device.SignedMessage
	err = s.admit(ctx, c, device.OpSignTypedData, func(ctx context.Context) (any, error) {
		var callErr error
		resp, callErr = s.device.SignTypedData(ctx, device.TypedDataRequest{
			Path:                derived.Path,
			Data:                data,
			DomainSeparatorHash: domainHash,
			MessageHash:         messageHash,
			MetamaskV4Compat:    true,
		})
		return resp, callErr
	})
	if err != nil {
		return nil, err
	}

	c.enter(StateValidating, nil)
	if err := checkSigner(resp.Address, expected, profile); err != nil {
		return nil, err
	}

	return &Signature{Address: expected, Signature: signatureHex(resp.Signature)}, nil
}

// normalizeTypedData copies the request into apitypes form. The device protocol needs
// an EIP712Domain type entry even when nothing references it.
func normalizeTypedData(req TypedData) apitypes.TypedData {
	schema := make(apitypes.Types, len(req.Types)+1)
	for name, fields := range req.Types {
		schema[name] = fields
	}
	if _, ok := schema[eip712Domain]; !ok {
		schema[eip712Domain] = []apitypes.Type{}
	}

	return apitypes.TypedData{
		Types:       schema,
		PrimaryType: req.PrimaryType,
		Domain:      req.Domain,
		Message:     req.Message,
	}
}

// typedDataHashes computes the domain separator and message hashes for models that
// blind-sign digests. Structures go-ethereum can not hash are sent without them.
func typedDataHashes(ctx context.Context, data apitypes.TypedData) (string, string) {
	log := util.LogFromContext(ctx)

	domainHash, err := data.HashStruct(eip712Domain, data.Domain.Map())
	if err != nil {
		log.Debug().Err(err).Msg("Failed to hash typed data domain")
		return "", ""
	}

	if data.PrimaryType == eip712Domain {
		return hex.EncodeToString(domainHash), ""
	}

	messageHash, err := data.HashStruct(data.PrimaryType, data.Message)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to hash typed data message")
		return hex.EncodeToString(domainHash), ""
	}

	return hex.EncodeToString(domainHash), hex.EncodeToString(messageHash)
}

func (s *service) signEvmTransaction(ctx context.Context, c *call, req EvmTransaction) (*Signature, error) {
	if req.Tx.ChainID <= 0 {
		return nil, errors.Wrap(ErrInvalidRequest, "transaction without chain id")
	}

	c.enter(StateResolving, nil)
	profile, template, err := s.resolveEVM(req.Coin)
	if err != nil {
		return nil, err
	}

	derived, err := s.addresses.AddressForIndex(ctx, template, req.AccountIndex, profile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve account %d", req.AccountIndex)
	}

	var resp *device.SignedTransaction
	err = s.admit(ctx, c, device.OpSignEvmTransaction, func(ctx context.Context) (any, error) {
		var callErr error
		resp, callErr = s.device.SignEvmTransaction(ctx, device.EvmTransactionRequest{
			Path: derived.Path,
			Tx:   req.Tx,
		})
		return resp, callErr
	})
	if err != nil {
		return nil, err
	}

	c.enter(StateValidating, nil)
	raw, err := hexutil.Decode(ensure0x(resp.SerializedTx))
	if err != nil {
		return nil, errors.Wrap(err, "device returned an undecodable transaction")
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, errors.Wrap(err, "device returned an undecodable transaction")
	}

	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to recover transaction sender")
	}
	if err := checkSigner(sender.Hex(), derived.Address, profile); err != nil {
		return nil, err
	}

	return &Signature{
		Address:      derived.Address,
		SerializedTx: hexutil.Encode(raw),
		TxHash:       tx.Hash().Hex(),
	}, nil
}

func ensure0x(s string) string {
	s = strings.TrimSpace(s)
	if has0xPrefix(s) {
		return s
	}
	return "0x" + s
}

// checkSigner compares the address the device reports against the one expected
func checkSigner(got string, want string, profile coin.Profile) error {
	if !encoding.SameAddress(got, want, profile) {
		return errors.Wrapf(ErrAddressMismatch, "device signed with %s, expected %s", got, want)
	}
	return nil
}
