package coin

import (
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Registry resolves coin identifiers to profiles
type Registry struct {
	profiles map[string]Profile
	fallback map[string]uint32
}

// NewRegistry creates a registry backed by the built-in tables
func NewRegistry() *Registry {
	r := &Registry{
		profiles: make(map[string]Profile, len(profiles)),
		fallback: make(map[string]uint32, len(fallbackSlip44)),
	}
	for id, p := range profiles {
		r.profiles[id] = p
	}
	for id, s := range fallbackSlip44 {
		r.fallback[id] = s
	}
	return r
}

// Lookup returns the table profile for a coin, if any
func (r *Registry) Lookup(id string) (Profile, bool) {
	p, ok := r.profiles[strings.ToLower(id)]
	return p, ok
}

// Resolve returns the profile for a coin. Coins outside the table resolve to a fallback
// profile when their slip44 is given or listed in the fallback table.
func (r *Registry) Resolve(id string, slip44 *uint32) (Profile, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if p, ok := r.profiles[id]; ok {
		return p, nil
	}

	var s uint32
	switch known, ok := r.fallback[id]; {
	case slip44 != nil:
		s = *slip44
	case ok:
		s = known
	default:
		return Profile{}, errors.Wrapf(ErrUnsupportedCoin, "coin %q", id)
	}

	return Profile{
		ID:     id,
		Family: FamilyUTXO,
		Slip44: s,
		Role:   RoleFallback,
	}, nil
}

// List returns all table profiles ordered by id
func (r *Registry) List() []Profile {
	result := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

type tableFile struct {
	Coins []struct {
		ID               string `toml:"id"`
		Family           string `toml:"family"`
		Slip44           uint32 `toml:"slip44"`
		Role             string `toml:"role"`
		Bech32HRP        string `toml:"bech32_hrp"`
		PubKeyHashAddrID byte   `toml:"pubkey_hash_addr_id"`
		ScriptHashAddrID byte   `toml:"script_hash_addr_id"`
		MessageMagic     string `toml:"message_magic"`
	} `toml:"coin"`
	Fallback map[string]uint32 `toml:"fallback"`
}

// LoadFile extends the registry with profiles from a TOML file. Built-in profiles can not be replaced.
func (r *Registry) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read coin table")
	}

	var table tableFile
	if _, err := toml.Decode(string(raw), &table); err != nil {
		return errors.Wrap(err, "failed to decode coin table")
	}

	for _, c := range table.Coins {
		id := strings.ToLower(c.ID)
		if id == "" {
			return errors.New("coin table entry without id")
		}
		if _, exists := r.profiles[id]; exists {
			return errors.Errorf("coin %q is already defined", id)
		}

		p := Profile{
			ID:               id,
			Slip44:           c.Slip44,
			Bech32HRP:        c.Bech32HRP,
			PubKeyHashAddrID: c.PubKeyHashAddrID,
			ScriptHashAddrID: c.ScriptHashAddrID,
			MessageMagic:     c.MessageMagic,
		}
		switch strings.ToLower(c.Family) {
		case "evm":
			p.Family, p.Role = FamilyEVM, RoleEVM
		case "utxo", "":
			p.Family = FamilyUTXO
			switch strings.ToLower(c.Role) {
			case "legacy":
				p.Role = RoleLegacy
			case "primary", "":
				p.Role = RolePrimary
			default:
				return errors.Errorf("coin %q: unknown role %q", id, c.Role)
			}
		default:
			return errors.Errorf("coin %q: unknown family %q", id, c.Family)
		}
		r.profiles[id] = p
	}

	for id, s := range table.Fallback {
		r.fallback[strings.ToLower(id)] = s
	}

	return nil
}
