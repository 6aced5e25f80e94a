package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
)

// Keyring configures the keyring core
type Keyring struct {
	MaxIndex        int           `json:"maxIndex"`
	PromptCooldown  time.Duration `json:"promptCooldown"`
	PerPage         int           `json:"perPage"`
	HDPath          string        `json:"hdPath"`
	DefaultCoin     string        `json:"defaultCoin"`
	LocalDerivation bool          `json:"localDerivation"`
	CoinTablePath   string        `json:"coinTablePath"`
	ManifestAppURL  string        `json:"manifestAppUrl"`
	ManifestEmail   string        `json:"manifestEmail"`
}

// SoftDevice configures the software signing device
type SoftDevice struct {
	KeystorePath string `json:"keystorePath"`
	Mnemonic     string `json:"-"`
	Passphrase   string `json:"-"`
	Model        string `json:"model"`
}

// LoggerServer configures the global logger
type LoggerServer struct {
	Level              zerolog.Level `json:"level"`
	PrettyPrintConsole bool          `json:"prettyPrintConsole"`
}

// Metrics configures the prometheus collectors
type Metrics struct {
	Enabled bool `json:"enabled"`
}

// Service is the complete process configuration
type Service struct {
	Keyring Keyring      `json:"keyring"`
	Device  SoftDevice   `json:"device"`
	Logger  LoggerServer `json:"logger"`
	Metrics Metrics      `json:"metrics"`
}

// DefaultServiceConfigFromEnv returns the configuration built from defaults, an optional
// .env file in the working directory and KEYRING_ prefixed environment variables
func DefaultServiceConfigFromEnv() Service {
	cfg, err := Load("")
	if err != nil {
		log.Panic().Err(err).Msg("Failed to load configuration")
	}
	return cfg
}

// Load builds the configuration. A non-empty path names a config file (yaml, toml or
// json) read before environment variables are applied.
func Load(path string) (Service, error) {
	// .env is optional; variables already set in the environment win
	if err := gotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		log.Debug().Err(err).Msg("Failed to load .env file")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Service{}, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Service, error) {
	level, err := zerolog.ParseLevel(v.GetString(CfgLoggerLevel))
	if err != nil {
		return Service{}, errors.Wrap(err, "invalid log level")
	}

	cfg := Service{
		Keyring: Keyring{
			MaxIndex:        v.GetInt(CfgKeyringMaxIndex),
			PromptCooldown:  v.GetDuration(CfgKeyringPromptCooldown),
			PerPage:         v.GetInt(CfgKeyringPerPage),
			HDPath:          v.GetString(CfgKeyringHDPath),
			DefaultCoin:     v.GetString(CfgKeyringDefaultCoin),
			LocalDerivation: v.GetBool(CfgKeyringLocalDerivation),
			CoinTablePath:   v.GetString(CfgKeyringCoinTable),
			ManifestAppURL:  v.GetString(CfgKeyringManifestAppURL),
			ManifestEmail:   v.GetString(CfgKeyringManifestEmail),
		},
		Device: SoftDevice{
			KeystorePath: v.GetString(CfgDeviceKeystore),
			Mnemonic:     v.GetString(CfgDeviceMnemonic),
			Passphrase:   v.GetString(CfgDevicePassphrase),
			Model:        v.GetString(CfgDeviceModel),
		},
		Logger: LoggerServer{
			Level:              level,
			PrettyPrintConsole: v.GetBool(CfgLoggerPrettyPrintConsole),
		},
		Metrics: Metrics{
			Enabled: v.GetBool(CfgMetricsEnabled),
		},
	}

	if cfg.Keyring.MaxIndex <= 0 {
		return Service{}, errors.Errorf("%s must be positive", CfgKeyringMaxIndex)
	}
	if int64(cfg.Keyring.MaxIndex) > int64(hdpath.HardenedOffset) {
		return Service{}, errors.Errorf("%s must not exceed %d", CfgKeyringMaxIndex, hdpath.HardenedOffset)
	}
	if cfg.Keyring.PerPage <= 0 {
		return Service{}, errors.Errorf("%s must be positive", CfgKeyringPerPage)
	}
	if cfg.Keyring.PromptCooldown < 0 {
		return Service{}, errors.Errorf("%s must not be negative", CfgKeyringPromptCooldown)
	}

	return cfg, nil
}
