package hdpath_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
)

func TestParse(t *testing.T) {
	path, err := hdpath.Parse("m/44'/60'/0'/0/0")
	require.NoError(t, err)
	assert.Equal(t, hdpath.DerivationPath{0x8000002c, 0x8000003c, 0x80000000, 0, 0}, path)
	assert.Equal(t, "m/44'/60'/0'/0/0", path.String())

	alt, err := hdpath.Parse(" m/44h/60h/0h/0 ")
	require.NoError(t, err)
	assert.Equal(t, "m/44'/60'/0'/0", alt.String())
	assert.Equal(t, uint32(44), alt.Purpose())
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "44'/60'", "m/x", "m/4294967296", "m/2147483648'"} {
		_, err := hdpath.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestChildDoesNotAlias(t *testing.T) {
	template := hdpath.MustParse("m/44'/60'/0'/0")
	a := template.Child(1)
	b := template.Child(2)

	assert.Equal(t, "m/44'/60'/0'/0/1", a.String())
	assert.Equal(t, "m/44'/60'/0'/0/2", b.String())
	assert.Equal(t, "m/44'/60'/0'/0", template.String())
	assert.True(t, a.HasPrefix(template))
	assert.False(t, template.HasPrefix(a))
}

func TestJSON(t *testing.T) {
	path := hdpath.MustParse("m/84'/57'/0'")
	raw, err := json.Marshal(path)
	require.NoError(t, err)
	assert.JSONEq(t, `"m/84'/57'/0'"`, string(raw))

	var back hdpath.DerivationPath
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Equal(path))
}

func TestResolveTemplate(t *testing.T) {
	r := coin.NewRegistry()
	slip44 := uint32(777)

	tests := []struct {
		coin   string
		slip44 *uint32
		want   string
	}{
		{coin: "sys", want: "m/84'/57'/0'"},
		{coin: "tsys", want: "m/84'/1'/0'"},
		{coin: "btc", want: "m/49'/0'/0'"},
		{coin: "eth", want: "m/44'/60'/0'/0"},
		{coin: "nevm", want: "m/44'/60'/0'/0"},
		{coin: "doge", want: "m/44'/3'/0'/0/0"},
		{coin: "other", slip44: &slip44, want: "m/44'/777'/0'/0/0"},
	}

	for _, tt := range tests {
		t.Run(tt.coin, func(t *testing.T) {
			profile, err := r.Resolve(tt.coin, tt.slip44)
			require.NoError(t, err)

			template, err := hdpath.ResolveTemplate(profile)
			require.NoError(t, err)
			assert.Equal(t, tt.want, template.String())
		})
	}
}

func TestResolveTemplateUnknownRole(t *testing.T) {
	_, err := hdpath.ResolveTemplate(coin.Profile{ID: "odd", Role: coin.Role(99)})
	require.ErrorIs(t, err, coin.ErrUnsupportedCoin)
}
