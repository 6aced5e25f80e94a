package signer

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
	"github/chapool/hw-keyring/internal/keyring/prompt"
	"github/chapool/hw-keyring/internal/metrics"
	"github/chapool/hw-keyring/internal/util"
)

const defaultEVMCoin = "eth"

type service struct {
	device    device.Service
	prompts   prompt.Serializer
	addresses AddressBook
	coins     *coin.Registry
	metrics   *metrics.Metrics
	opts      Options
}

// NewService creates a new SignerService
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(
	dev device.Service,
	prompts prompt.Serializer,
	addresses AddressBook,
	coins *coin.Registry,
	m *metrics.Metrics,
	opts Options,
) Service {
	if opts.Templates == nil {
		opts.Templates = hdpath.ResolveTemplate
	}

	return &service{
		device:    dev,
		prompts:   prompts,
		addresses: addresses,
		coins:     coins,
		metrics:   m,
		opts:      opts,
	}
}

// call tracks one Sign invocation through its states
type call struct {
	id       string
	kind     Kind
	log      zerolog.Logger
	listener Listener
}

func (c *call) enter(state State, err error) {
	ev := c.log.Debug()
	if err != nil {
		ev = c.log.Warn().Err(err)
	}
	ev.Str("state", state.String()).Msg("Signing state changed")

	if c.listener != nil {
		c.listener(Transition{RequestID: c.id, Kind: c.kind, State: state, Err: err})
	}
}

// Sign routes req to its signing flow. A failure is final; callers resubmit a new request.
func (s *service) Sign(ctx context.Context, req Request) (*Signature, error) {
	if req == nil {
		return nil, errors.Wrap(ErrInvalidRequest, "nil request")
	}

	c := &call{
		id:       uuid.New().String(),
		kind:     req.Kind(),
		listener: s.opts.Listener,
	}
	c.log = util.LogFromContext(ctx).With().
		Str("component", "signer").
		Str("request_id", c.id).
		Str("kind", string(c.kind)).
		Logger()
	ctx = util.WithLogger(ctx, c.log)

	c.enter(StateIdle, nil)

	var (
		sig *Signature
		err error
	)
	switch r := req.(type) {
	case PersonalMessage:
		sig, err = s.signPersonalMessage(ctx, c, r)
	case *PersonalMessage:
		sig, err = s.signPersonalMessage(ctx, c, *r)
	case TypedData:
		sig, err = s.signTypedData(ctx, c, r)
	case *TypedData:
		sig, err = s.signTypedData(ctx, c, *r)
	case UtxoTransaction:
		sig, err = s.signUtxoTransaction(ctx, c, r)
	case *UtxoTransaction:
		sig, err = s.signUtxoTransaction(ctx, c, *r)
	case EvmTransaction:
		sig, err = s.signEvmTransaction(ctx, c, r)
	case *EvmTransaction:
		sig, err = s.signEvmTransaction(ctx, c, *r)
	default:
		err = errors.Wrapf(ErrInvalidRequest, "unsupported request %T", req)
	}

	s.metrics.SignRequest(string(c.kind), err)
	if err != nil {
		c.enter(StateFailed, err)
		return nil, err
	}

	sig.RequestID = c.id
	sig.Kind = c.kind
	c.enter(StateDone, nil)

	return sig, nil
}

// resolve returns the profile and path template for a coin
func (s *service) resolve(coinID string, slip44 *uint32) (coin.Profile, hdpath.DerivationPath, error) {
	profile, err := s.coins.Resolve(coinID, slip44)
	if err != nil {
		return coin.Profile{}, nil, err
	}

	template, err := s.opts.Templates(profile)
	if err != nil {
		return coin.Profile{}, nil, err
	}

	return profile, template, nil
}

func (s *service) resolveEVM(coinID string) (coin.Profile, hdpath.DerivationPath, error) {
	if coinID == "" {
		coinID = defaultEVMCoin
	}

	profile, template, err := s.resolve(coinID, nil)
	if err != nil {
		return coin.Profile{}, nil, err
	}
	if !profile.IsEVM() {
		return coin.Profile{}, nil, errors.Wrapf(ErrInvalidRequest, "coin %q is not an EVM coin", coinID)
	}

	return profile, template, nil
}

// admit runs one device exchange through the prompt serializer and folds the reply
// status into the error
func (s *service) admit(ctx context.Context, c *call, op string, exchange func(ctx context.Context) (any, error)) error {
	c.enter(StateQueued, nil)

	return s.prompts.Admit(ctx, func(ctx context.Context) error {
		c.enter(StateAwaitingDevice, nil)

		reply, err := exchange(ctx)
		err = device.Check(op, reply, err)
		s.metrics.DeviceCall(op, err)

		return err
	})
}

// blindSigns reports whether the device may need typed data digests. Model "1" can not
// parse EIP-712 structures; an unknown model gets the digests as well.
func (s *service) blindSigns() bool {
	if s.opts.Model == nil {
		return true
	}
	model := s.opts.Model()
	return model == "" || model == "1"
}
