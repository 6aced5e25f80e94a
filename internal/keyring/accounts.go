package keyring

import (
	"context"
	"slices"

	"github.com/pkg/errors"
	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/encoding"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
)

// accountCoin is the coin accounts and pages are derived for
const accountCoin = "eth"

var errHDPathChanged = errors.New("hd path changed while deriving accounts")

// PageAccount is one entry of an account page
type PageAccount struct {
	Address string `json:"address"`
	Index   uint32 `json:"index"`
}

// SetAccountToUnlock sets the index AddAccounts starts from
func (k *Keyring) SetAccountToUnlock(index uint32) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.unlockedAccount = index
}

// AddAccounts adds n accounts starting at the account to unlock and returns the ones
// that were not yet part of the keyring
func (k *Keyring) AddAccounts(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, errors.Errorf("invalid number of accounts %d", n)
	}

	profile, err := k.accountProfile()
	if err != nil {
		return nil, err
	}

	k.mu.RLock()
	from := k.unlockedAccount
	template := k.hdPath
	k.mu.RUnlock()

	derived := make([]PageAccount, 0, n)
	for i := from; i < from+uint32(n); i++ {
		d, err := k.cache.AddressForIndex(ctx, template, i, profile)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive account %d", i)
		}
		derived = append(derived, PageAccount{Address: d.Address, Index: i})
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.hdPath.Equal(template) {
		return nil, errHDPathChanged
	}

	added := make([]string, 0, n)
	for _, acc := range derived {
		if !slices.Contains(k.accounts, acc.Address) {
			k.accounts = append(k.accounts, acc.Address)
			added = append(added, acc.Address)
		}
		k.paths[acc.Address] = acc.Index
	}
	k.page = 0

	return added, nil
}

// Accounts returns the keyring's accounts in the order they were added
func (k *Keyring) Accounts() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return slices.Clone(k.accounts)
}

// RemoveAccount removes an account from the keyring. Cached derivations are kept.
func (k *Keyring) RemoveAccount(addr string) error {
	profile, err := k.accountProfile()
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	i := slices.IndexFunc(k.accounts, func(a string) bool {
		return encoding.SameAddress(a, addr, profile)
	})
	if i < 0 {
		return errors.Wrapf(ErrUnknownAccount, "address %s", addr)
	}

	delete(k.paths, k.accounts[i])
	k.accounts = slices.Delete(k.accounts, i, i+1)

	return nil
}

// FirstPage rewinds paging and returns the first page
func (k *Keyring) FirstPage(ctx context.Context) ([]PageAccount, error) {
	k.mu.Lock()
	k.page = 0
	k.mu.Unlock()

	return k.turnPage(ctx, 1)
}

// NextPage advances one page
func (k *Keyring) NextPage(ctx context.Context) ([]PageAccount, error) {
	return k.turnPage(ctx, 1)
}

// PreviousPage goes back one page, never before the first
func (k *Keyring) PreviousPage(ctx context.Context) ([]PageAccount, error) {
	return k.turnPage(ctx, -1)
}

func (k *Keyring) turnPage(ctx context.Context, increment int) ([]PageAccount, error) {
	profile, err := k.accountProfile()
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	page := k.page + increment
	if page <= 0 {
		page = 1
	}
	perPage := k.perPage
	template := k.hdPath
	k.mu.Unlock()

	from := uint32((page - 1) * perPage) //nolint:gosec // page and perPage are positive
	accounts := make([]PageAccount, 0, perPage)
	for i := from; i < from+uint32(perPage); i++ { //nolint:gosec
		d, err := k.cache.AddressForIndex(ctx, template, i, profile)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive account %d", i)
		}
		accounts = append(accounts, PageAccount{Address: d.Address, Index: i})
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.hdPath.Equal(template) {
		return nil, errHDPathChanged
	}
	k.page = page
	for _, acc := range accounts {
		k.paths[acc.Address] = acc.Index
	}

	return accounts, nil
}

// SetHDPath switches the EVM derivation template. Changing it resets accounts and paging.
func (k *Keyring) SetHDPath(path string) error {
	parsed, err := parseAllowedHDPath(path)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.hdPath.Equal(parsed) {
		return nil
	}
	k.resetLocked()
	k.hdPath = parsed

	return nil
}

// ForgetDevice drops accounts, paging and every cached derivation so another device
// can be paired
func (k *Keyring) ForgetDevice() {
	k.mu.Lock()
	k.resetLocked()
	k.mu.Unlock()

	k.cache.Reset()
	k.deriver.Forget()
}

func (k *Keyring) resetLocked() {
	k.accounts = nil
	k.paths = make(map[string]uint32)
	k.page = 0
	k.perPage = k.defaultPerPage
	k.unlockedAccount = 0
}

func (k *Keyring) accountProfile() (coin.Profile, error) {
	return k.coins.Resolve(accountCoin, nil)
}

// State is a point in time view of the keyring
type State struct {
	HDPath          hdpath.DerivationPath `json:"hdPath"`
	Accounts        []string              `json:"accounts"`
	Page            int                   `json:"page"`
	PerPage         int                   `json:"perPage"`
	UnlockedAccount uint32                `json:"unlockedAccount"`
	Paths           map[string]uint32     `json:"paths"`
}

// Snapshot returns the keyring state
func (k *Keyring) Snapshot() State {
	k.mu.RLock()
	defer k.mu.RUnlock()

	paths := make(map[string]uint32, len(k.paths))
	for a, i := range k.paths {
		paths[a] = i
	}

	return State{
		HDPath:          slices.Clone(k.hdPath),
		Accounts:        slices.Clone(k.accounts),
		Page:            k.page,
		PerPage:         k.perPage,
		UnlockedAccount: k.unlockedAccount,
		Paths:           paths,
	}
}

// Restore replaces the keyring state with a snapshot
func (k *Keyring) Restore(state State) error {
	hdPath := DefaultHDPath
	if len(state.HDPath) > 0 {
		parsed, err := parseAllowedHDPath(state.HDPath.String())
		if err != nil {
			return err
		}
		hdPath = parsed
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.hdPath = hdPath
	k.accounts = slices.Clone(state.Accounts)
	k.page = state.Page
	k.perPage = state.PerPage
	if k.perPage <= 0 {
		k.perPage = k.defaultPerPage
	}
	k.unlockedAccount = state.UnlockedAccount
	k.paths = make(map[string]uint32, len(state.Paths))
	for a, i := range state.Paths {
		k.paths[a] = i
	}

	return nil
}
