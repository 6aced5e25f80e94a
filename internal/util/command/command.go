package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"github/chapool/hw-keyring/internal/config"
	"github/chapool/hw-keyring/internal/device/soft"
	"github/chapool/hw-keyring/internal/keyring"
	"github/chapool/hw-keyring/internal/util"
)

// ConfigFlag names the persistent flag holding an optional config file path
const ConfigFlag = "config"

// PasswordFunc supplies the keystore password
type PasswordFunc func() (string, error)

// DeviceHooks are the interactive pieces of the software device
type DeviceHooks struct {
	Password PasswordFunc
	Confirm  soft.ConfirmFunc
}

func NewSubcommandGroup(name string, subCommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <subcommand>", name),
		Short: fmt.Sprintf("%s related subcommands", name),
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Error().Err(err).Msg("Failed to print help")
			}
		},
	}

	cmd.AddCommand(subCommands...)

	return cmd
}

// Config loads the service configuration, honouring the --config flag when present
func Config(cmd *cobra.Command) (config.Service, error) {
	var path string
	if f := cmd.Flags().Lookup(ConfigFlag); f != nil {
		path = f.Value.String()
	}
	return config.Load(path)
}

// OpenDevice creates the software device and unlocks it from the configured keystore
// or mnemonic
func OpenDevice(cfg config.Service, hooks DeviceHooks) (*soft.Device, error) {
	coins, err := keyring.NewCoinRegistry(cfg.Keyring)
	if err != nil {
		return nil, err
	}

	dev := soft.New(soft.Options{
		Model:    cfg.Device.Model,
		Registry: coins,
		Confirm:  hooks.Confirm,
	})

	switch {
	case cfg.Device.KeystorePath != "":
		ks, err := soft.LoadKeystore(cfg.Device.KeystorePath)
		if err != nil {
			return nil, err
		}
		if hooks.Password == nil {
			return nil, errors.New("keystore configured but no password source")
		}
		password, err := hooks.Password()
		if err != nil {
			return nil, errors.Wrap(err, "failed to read keystore password")
		}
		if err := dev.Unlock(ks, password, cfg.Device.Passphrase); err != nil {
			return nil, errors.Wrap(err, "failed to unlock keystore")
		}
	case cfg.Device.Mnemonic != "":
		if err := dev.LoadMnemonic(cfg.Device.Mnemonic, cfg.Device.Passphrase); err != nil {
			return nil, errors.Wrap(err, "failed to load mnemonic")
		}
	default:
		return nil, errors.Errorf("neither %s nor %s is configured", config.CfgDeviceKeystore, config.CfgDeviceMnemonic)
	}

	return dev, nil
}

// WithKeyring configures logging, opens the device, initializes a keyring on top of it
// and runs f. The keyring is closed once f returns.
func WithKeyring(ctx context.Context, cfg config.Service, hooks DeviceHooks, f func(ctx context.Context, k *keyring.Keyring) error) error {
	util.ConfigureLogger(util.LoggerOptions{
		Level:              cfg.Logger.Level,
		PrettyPrintConsole: cfg.Logger.PrettyPrintConsole,
	})

	dev, err := OpenDevice(cfg, hooks)
	if err != nil {
		return err
	}

	var reg prometheus.Registerer
	if cfg.Metrics.Enabled {
		reg = prometheus.DefaultRegisterer
	}

	k, err := keyring.InitNewKeyring(cfg.Keyring, dev, mclock.System{}, reg)
	if err != nil {
		return errors.Wrap(err, "failed to create keyring")
	}
	defer func() {
		if err := k.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close keyring")
		}
	}()

	if err := k.Initialize(ctx); err != nil {
		return err
	}

	return f(ctx, k)
}

// TerminalPassword prompts on stderr and reads a password from the terminal without echo
func TerminalPassword(prompt string) PasswordFunc {
	return func() (string, error) {
		fmt.Fprint(os.Stderr, prompt)
		defer fmt.Fprintln(os.Stderr)

		raw, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
		if err != nil {
			return "", errors.Wrap(err, "failed to read password")
		}
		return string(raw), nil
	}
}

// TerminalConfirm asks for a y/N answer on in before each on-device operation
func TerminalConfirm(in io.Reader) soft.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(_ context.Context, op string) error {
		fmt.Fprintf(os.Stderr, "Confirm %s on device? [y/N] ", op)

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return errors.Wrap(err, "failed to read confirmation")
		}
		if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
			return errors.New("Action cancelled by user") //nolint:stylecheck,revive // device style message
		}
		return nil
	}
}
