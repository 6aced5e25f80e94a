package hdpath

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// HardenedOffset is added to a segment index to mark it hardened
const HardenedOffset uint32 = 0x80000000

// DerivationPath is the computer friendly form of a hierarchical deterministic
// derivation path. Hardened segments carry HardenedOffset.
type DerivationPath []uint32

// Parse parses a path of the form m/44'/60'/0'/0. Both ' and h mark a hardened segment.
// Example: "m/44'/60'/0'/0/0" -> [2147483692, 2147483708, 2147483648, 0, 0]
func Parse(path string) (DerivationPath, error) {
	components := strings.Split(strings.TrimSpace(path), "/")
	if len(components) == 0 || strings.TrimSpace(components[0]) != "m" {
		return nil, errors.Errorf("invalid derivation path %q: must start with m/", path)
	}
	components = components[1:]

	result := make(DerivationPath, 0, len(components))
	for _, component := range components {
		component = strings.TrimSpace(component)

		var offset uint32
		if strings.HasSuffix(component, "'") || strings.HasSuffix(component, "h") {
			offset = HardenedOffset
			component = component[:len(component)-1]
		}

		value, err := strconv.ParseUint(component, 10, 32)
		if err != nil {
			return nil, errors.Errorf("invalid path segment %q", component)
		}
		if value > uint64(math.MaxUint32-offset) {
			return nil, errors.Errorf("path segment %d out of range", value)
		}

		result = append(result, uint32(value)+offset)
	}

	return result, nil
}

// MustParse is Parse for static paths
func MustParse(path string) DerivationPath {
	p, err := Parse(path)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the canonical form, e.g. m/44'/60'/0'/0
func (p DerivationPath) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, component := range p {
		if component >= HardenedOffset {
			fmt.Fprintf(&b, "/%d'", component-HardenedOffset)
			continue
		}
		fmt.Fprintf(&b, "/%d", component)
	}
	return b.String()
}

// Child returns a copy of the path with index appended
func (p DerivationPath) Child(index uint32) DerivationPath {
	child := make(DerivationPath, len(p), len(p)+1)
	copy(child, p)
	return append(child, index)
}

// Purpose returns the unhardened first segment (44, 49, 84), or 0 for an empty path
func (p DerivationPath) Purpose() uint32 {
	if len(p) == 0 {
		return 0
	}
	return p[0] &^ HardenedOffset
}

// Equal reports whether two paths have identical segments
func (p DerivationPath) Equal(other DerivationPath) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p starts with prefix
func (p DerivationPath) HasPrefix(prefix DerivationPath) bool {
	return len(p) >= len(prefix) && p[:len(prefix)].Equal(prefix)
}

func (p DerivationPath) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *DerivationPath) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
