package coin

// profiles is the static profile table. Keys are lowercase coin identifiers.
//
//nolint:gochecknoglobals // static protocol table
var profiles = map[string]Profile{
	"sys": {
		ID:               "sys",
		Family:           FamilyUTXO,
		Slip44:           57,
		Role:             RolePrimary,
		Bech32HRP:        "sys",
		PubKeyHashAddrID: 0x3f,
		ScriptHashAddrID: 0x05,
		MessageMagic:     "Syscoin Signed Message:\n",
	},
	"tsys": {
		ID:               "tsys",
		Family:           FamilyUTXO,
		Slip44:           1,
		Role:             RolePrimary,
		Bech32HRP:        "tsys",
		PubKeyHashAddrID: 0x41,
		ScriptHashAddrID: 0xc4,
		MessageMagic:     "Syscoin Signed Message:\n",
	},
	"btc": {
		ID:               "btc",
		Family:           FamilyUTXO,
		Slip44:           0,
		Role:             RoleLegacy,
		Bech32HRP:        "bc",
		PubKeyHashAddrID: 0x00,
		ScriptHashAddrID: 0x05,
		MessageMagic:     "Bitcoin Signed Message:\n",
	},
	"eth": {
		ID:     "eth",
		Family: FamilyEVM,
		Slip44: 60,
		Role:   RoleEVM,
	},
	"nevm": {
		ID:     "nevm",
		Family: FamilyEVM,
		Slip44: 60,
		Role:   RoleEVM,
	},
	"rollux": {
		ID:     "rollux",
		Family: FamilyEVM,
		Slip44: 60,
		Role:   RoleEVM,
	},
}

// fallbackSlip44 lists registered SLIP-44 coin types for coins without a full profile.
//
//nolint:gochecknoglobals,mnd // SLIP-44 registry excerpt
var fallbackSlip44 = map[string]uint32{
	"ltc":  2,
	"doge": 3,
	"dash": 5,
	"dgb":  20,
	"zec":  133,
	"bch":  145,
	"rvn":  175,
}
