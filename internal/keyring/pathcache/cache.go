package pathcache

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
	"github/chapool/hw-keyring/internal/keyring/address"
	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/encoding"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
	"github/chapool/hw-keyring/internal/keyring/prompt"
	"github/chapool/hw-keyring/internal/metrics"
	"github/chapool/hw-keyring/internal/util"
)

// DefaultMaxIndex bounds reverse lookups
const DefaultMaxIndex = 1000

var (
	// ErrUnknownAddress is returned when a reverse lookup exhausts the index bound
	ErrUnknownAddress = errors.New("unknown address")

	// ErrInvariantViolation signals non-deterministic derivation: one address under two
	// indices, or one index producing two addresses.
	ErrInvariantViolation = errors.New("path cache invariant violation")
)

// Deriver is the subset of the address service the cache needs
type Deriver interface {
	Derive(ctx context.Context, template hdpath.DerivationPath, index uint32, profile coin.Profile) (*address.DerivedAddress, error)
}

type scope struct {
	indexByAddress map[string]uint32
	byIndex        map[uint32]*address.DerivedAddress
}

// Cache maps derived addresses to the (template, index) that produced them.
// Entries are inserted once and never evicted or overwritten.
type Cache struct {
	deriver  Deriver
	maxIndex uint32
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	scopes map[string]*scope

	lookups singleflight.Group
}

// New creates a cache. maxIndex <= 0 selects DefaultMaxIndex; larger bounds are clamped
// to the non-hardened index range.
func New(deriver Deriver, maxIndex int, m *metrics.Metrics) *Cache {
	bound := uint32(DefaultMaxIndex)
	switch {
	case int64(maxIndex) > int64(hdpath.HardenedOffset):
		bound = hdpath.HardenedOffset
	case maxIndex > 0:
		bound = uint32(maxIndex)
	}
	return &Cache{
		deriver:  deriver,
		maxIndex: bound,
		metrics:  m,
		scopes:   make(map[string]*scope),
	}
}

// MaxIndex returns the reverse lookup bound
func (c *Cache) MaxIndex() uint32 {
	return c.maxIndex
}

// AddressForIndex returns the address at template/index, deriving it on first use
func (c *Cache) AddressForIndex(ctx context.Context, template hdpath.DerivationPath, index uint32, profile coin.Profile) (*address.DerivedAddress, error) {
	if derived, ok := c.derivedAt(template, index); ok {
		return derived, nil
	}

	derived, err := c.deriver.Derive(ctx, template, index, profile)
	if err != nil {
		return nil, err
	}

	return c.insert(template, derived, profile)
}

// IndexForAddress returns the index under template that produced address. Unknown
// addresses are searched for by deriving indices 0..MaxIndex-1 in order; every derived
// pair is cached on the way.
func (c *Cache) IndexForAddress(ctx context.Context, addr string, template hdpath.DerivationPath, profile coin.Profile) (uint32, error) {
	normalized, err := encoding.Normalize(addr, profile)
	if err != nil {
		return 0, err
	}

	if index, ok := c.indexOf(template, normalized); ok {
		c.metrics.CacheLookup("hit")
		return index, nil
	}

	// Lookups of one address share a scan. The scan runs under the context of the
	// caller that started it; when that caller withdraws, the others start over and
	// resume from the indices already cached.
	key := template.String() + "|" + normalized
	for {
		results := c.lookups.DoChan(key, func() (any, error) {
			return c.scan(ctx, normalized, template, profile)
		})

		select {
		case <-ctx.Done():
			return 0, prompt.Cancelled(ctx.Err())
		case res := <-results:
			if res.Err != nil {
				if cancelled(res.Err) && ctx.Err() == nil {
					continue
				}
				return 0, res.Err
			}
			return res.Val.(uint32), nil //nolint:forcetypeassert // scan only returns uint32
		}
	}
}

func cancelled(err error) bool {
	return errors.Is(err, prompt.ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Lookup returns a cached index without touching the device
func (c *Cache) Lookup(addr string, template hdpath.DerivationPath, profile coin.Profile) (uint32, bool) {
	normalized, err := encoding.Normalize(addr, profile)
	if err != nil {
		return 0, false
	}
	return c.indexOf(template, normalized)
}

// Cached returns a previously derived address without touching the device
func (c *Cache) Cached(template hdpath.DerivationPath, index uint32) (*address.DerivedAddress, bool) {
	return c.derivedAt(template, index)
}

// Len returns the number of cached entries under template
func (c *Cache) Len(template hdpath.DerivationPath) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.scopes[template.String()]
	if !ok {
		return 0
	}
	return len(s.byIndex)
}

// Reset drops every scope
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scopes = make(map[string]*scope)
}

func (c *Cache) scan(ctx context.Context, normalized string, template hdpath.DerivationPath, profile coin.Profile) (uint32, error) {
	log := util.LogFromContext(ctx).With().
		Str("component", "path_cache").
		Str("template", template.String()).
		Logger()

	// a concurrent scan may have inserted it while this one waited
	if index, ok := c.indexOf(template, normalized); ok {
		c.metrics.CacheLookup("hit")
		return index, nil
	}

	log.Debug().Str("address", normalized).Msg("Address not cached, scanning indices")

	for i := uint32(0); i < c.maxIndex; i++ {
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrap(prompt.Cancelled(err), "reverse lookup aborted")
		}

		derived, ok := c.derivedAt(template, i)
		if !ok {
			fresh, err := c.deriver.Derive(ctx, template, i, profile)
			if err != nil {
				return 0, errors.Wrapf(err, "failed to derive candidate %d", i)
			}
			c.metrics.ScanCandidate()

			derived, err = c.insert(template, fresh, profile)
			if err != nil {
				return 0, err
			}
		}

		if encoding.SameAddress(derived.Address, normalized, profile) {
			c.metrics.CacheLookup("scan_hit")
			log.Debug().Uint32("index", i).Msg("Address found")
			return i, nil
		}
	}

	c.metrics.CacheLookup("miss")
	return 0, errors.Wrapf(ErrUnknownAddress, "%s not found in the first %d indices of %s", normalized, c.maxIndex, template)
}

func (c *Cache) indexOf(template hdpath.DerivationPath, normalized string) (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.scopes[template.String()]
	if !ok {
		return 0, false
	}
	index, ok := s.indexByAddress[normalized]
	return index, ok
}

func (c *Cache) derivedAt(template hdpath.DerivationPath, index uint32) (*address.DerivedAddress, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.scopes[template.String()]
	if !ok {
		return nil, false
	}
	derived, ok := s.byIndex[index]
	return derived, ok
}

// insert adds a derived address if absent. Re-inserting an identical pair is a no-op and
// returns the cached entry; any disagreement fails with ErrInvariantViolation.
func (c *Cache) insert(template hdpath.DerivationPath, derived *address.DerivedAddress, profile coin.Profile) (*address.DerivedAddress, error) {
	normalized, err := encoding.Normalize(derived.Address, profile)
	if err != nil {
		return nil, errors.Wrap(err, "device returned an invalid address")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := template.String()
	s, ok := c.scopes[key]
	if !ok {
		s = &scope{
			indexByAddress: make(map[string]uint32),
			byIndex:        make(map[uint32]*address.DerivedAddress),
		}
		c.scopes[key] = s
	}

	if existing, ok := s.indexByAddress[normalized]; ok && existing != derived.Index {
		return nil, errors.Wrapf(ErrInvariantViolation,
			"address %s derived at index %d is already cached at index %d under %s",
			normalized, derived.Index, existing, key)
	}
	if cached, ok := s.byIndex[derived.Index]; ok {
		if !encoding.SameAddress(cached.Address, normalized, profile) {
			return nil, errors.Wrapf(ErrInvariantViolation,
				"index %d under %s derived %s, previously %s",
				derived.Index, key, normalized, cached.Address)
		}
		return cached, nil
	}

	stored := *derived
	stored.Address = normalized
	s.indexByAddress[normalized] = derived.Index
	s.byIndex[derived.Index] = &stored

	return &stored, nil
}
