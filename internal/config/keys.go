package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	// CfgKeyringMaxIndex bounds reverse address lookups
	CfgKeyringMaxIndex = "keyring.max_index"
	// CfgKeyringPromptCooldown is the gap kept between two device prompts
	CfgKeyringPromptCooldown = "keyring.prompt_cooldown"
	// CfgKeyringPerPage is the number of accounts per page
	CfgKeyringPerPage = "keyring.per_page"
	// CfgKeyringHDPath is the EVM derivation template
	CfgKeyringHDPath = "keyring.hd_path"
	// CfgKeyringDefaultCoin is used by commands that take no coin flag
	CfgKeyringDefaultCoin = "keyring.default_coin"
	// CfgKeyringLocalDerivation derives children from the account xpub instead of asking the device per index
	CfgKeyringLocalDerivation = "keyring.local_derivation"
	// CfgKeyringCoinTable is an optional TOML file extending the built-in coin table
	CfgKeyringCoinTable = "keyring.coin_table"
	// CfgKeyringManifestAppURL identifies the application to the device vendor
	CfgKeyringManifestAppURL = "keyring.manifest.app_url"
	// CfgKeyringManifestEmail identifies the application maintainer to the device vendor
	CfgKeyringManifestEmail = "keyring.manifest.email"

	// CfgDeviceKeystore is the sealed mnemonic used by the software device
	CfgDeviceKeystore = "device.keystore"
	// CfgDeviceMnemonic loads the software device from a plain mnemonic; development only
	CfgDeviceMnemonic = "device.mnemonic"
	// CfgDevicePassphrase is the BIP39 passphrase
	CfgDevicePassphrase = "device.passphrase"
	// CfgDeviceModel is the model the software device reports
	CfgDeviceModel = "device.model"

	// CfgLoggerLevel sets the log level
	CfgLoggerLevel = "logger.level"
	// CfgLoggerPrettyPrintConsole enables human readable console output
	CfgLoggerPrettyPrintConsole = "logger.pretty_print_console"

	// CfgMetricsEnabled registers collectors on the default prometheus registry
	CfgMetricsEnabled = "metrics.enabled"
)

// EnvPrefix is prepended to every environment variable, e.g. KEYRING_KEYRING_MAX_INDEX
const EnvPrefix = "KEYRING"

func setDefaults(v *viper.Viper) {
	v.SetDefault(CfgKeyringMaxIndex, 1000) //nolint:mnd
	v.SetDefault(CfgKeyringPromptCooldown, 1000*time.Millisecond)
	v.SetDefault(CfgKeyringPerPage, 5) //nolint:mnd
	v.SetDefault(CfgKeyringHDPath, "m/44'/60'/0'/0")
	v.SetDefault(CfgKeyringDefaultCoin, "eth")
	v.SetDefault(CfgKeyringLocalDerivation, false)
	v.SetDefault(CfgKeyringCoinTable, "")
	v.SetDefault(CfgKeyringManifestAppURL, "https://github.com/chapool/hw-keyring")
	v.SetDefault(CfgKeyringManifestEmail, "dev@chapool.local")

	v.SetDefault(CfgDeviceKeystore, "")
	v.SetDefault(CfgDeviceMnemonic, "")
	v.SetDefault(CfgDevicePassphrase, "")
	v.SetDefault(CfgDeviceModel, "T")

	v.SetDefault(CfgLoggerLevel, "info")
	v.SetDefault(CfgLoggerPrettyPrintConsole, true)

	v.SetDefault(CfgMetricsEnabled, false)
}
