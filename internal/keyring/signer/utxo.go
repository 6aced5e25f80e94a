package signer

import (
	"context"

	"github.com/pkg/errors"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/keyring/address"
	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
)

// signUtxoMessage signs by path; no address resolution takes place. When the account was
// derived earlier in the session the reported address is checked against it.
func (s *service) signUtxoMessage(ctx context.Context, c *call, req PersonalMessage, profile coin.Profile, template hdpath.DerivationPath) (*Signature, error) {
	if req.AccountIndex >= hdpath.HardenedOffset {
		return nil, errors.Wrapf(ErrInvalidRequest, "account index %d out of range", req.AccountIndex)
	}
	path := template.Child(req.AccountIndex)

	var resp *device.SignedMessage
	err := s.admit(ctx, c, device.OpSignMessage, func(ctx context.Context) (any, error) {
		var callErr error
		resp, callErr = s.device.SignMessage(ctx, device.SignMessageRequest{
			Path:    path,
			Coin:    address.DeviceCoin(profile),
			Message: string(req.Data),
		})
		return resp, callErr
	})
	if err != nil {
		return nil, err
	}

	c.enter(StateValidating, nil)
	if known, ok := s.addresses.Cached(template, req.AccountIndex); ok {
		if err := checkSigner(resp.Address, known.Address, profile); err != nil {
			return nil, err
		}
	}

	return &Signature{Address: resp.Address, Signature: resp.Signature}, nil
}

func (s *service) signUtxoTransaction(ctx context.Context, c *call, req UtxoTransaction) (*Signature, error) {
	if len(req.Inputs) == 0 || len(req.Outputs) == 0 {
		return nil, errors.Wrap(ErrInvalidRequest, "transaction needs inputs and outputs")
	}

	c.enter(StateResolving, nil)
	profile, _, err := s.resolve(req.Coin, req.Slip44)
	if err != nil {
		return nil, err
	}
	if profile.IsEVM() {
		return nil, errors.Wrapf(ErrInvalidRequest, "coin %q is not a UTXO coin", req.Coin)
	}

	var resp *device.SignedTransaction
	err = s.admit(ctx, c, device.OpSignUtxoTransaction, func(ctx context.Context) (any, error) {
		var callErr error
		resp, callErr = s.device.SignUtxoTransaction(ctx, device.UtxoTransactionRequest{
			Coin:    address.DeviceCoin(profile),
			Inputs:  req.Inputs,
			Outputs: req.Outputs,
		})
		return resp, callErr
	})
	if err != nil {
		return nil, err
	}

	return &Signature{SerializedTx: resp.SerializedTx}, nil
}
