package keystore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/hw-keyring/internal/device/soft"
	"github/chapool/hw-keyring/internal/util/command"
)

const (
	outFlag   string = "out"
	lightFlag string = "light"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("keystore",
		newCreate(),
	)
}

func newCreate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Seals a mnemonic read from stdin into an encrypted keystore file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString(outFlag)
			light, _ := cmd.Flags().GetBool(lightFlag)

			fmt.Fprint(os.Stderr, "Mnemonic: ")
			mnemonic, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return errors.Wrap(err, "failed to read mnemonic")
			}
			mnemonic = strings.Join(strings.Fields(mnemonic), " ")

			password, err := command.TerminalPassword("Password: ")()
			if err != nil {
				return err
			}
			again, err := command.TerminalPassword("Repeat password: ")()
			if err != nil {
				return err
			}
			if password != again {
				return errors.New("passwords do not match")
			}

			params := soft.StandardScryptParams()
			if light {
				params = soft.LightScryptParams()
			}

			ks, err := soft.SealMnemonic(mnemonic, password, params)
			if err != nil {
				return err
			}
			if err := ks.Save(out); err != nil {
				return err
			}

			log.Info().Str("path", out).Str("id", ks.ID).Msg("Keystore created")
			return nil
		},
	}

	cmd.Flags().String(outFlag, "keystore.json", "Output path")
	cmd.Flags().Bool(lightFlag, false, "Use light scrypt parameters")

	return cmd
}
