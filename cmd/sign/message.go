package sign

import (
	"context"

	"github.com/spf13/cobra"
	"github/chapool/hw-keyring/internal/keyring"
	"github/chapool/hw-keyring/internal/keyring/signer"
	"github/chapool/hw-keyring/internal/util/command"
)

func newMessage() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message <text>",
		Short: "Signs a personal message with an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := command.Config(cmd)
			if err != nil {
				return err
			}
			coinID, _ := cmd.Flags().GetString(coinFlag)
			if coinID == "" {
				coinID = cfg.Keyring.DefaultCoin
			}
			index, _ := cmd.Flags().GetUint32(indexFlag)

			return command.WithKeyring(cmd.Context(), cfg, hooks(cmd), func(ctx context.Context, k *keyring.Keyring) error {
				sig, err := k.Sign(ctx, signer.PersonalMessage{
					Coin:         coinID,
					AccountIndex: index,
					Data:         []byte(args[0]),
				})
				if err != nil {
					return err
				}
				return printJSON(sig)
			})
		},
	}

	cmd.Flags().String(coinFlag, "", "Coin identifier (defaults to keyring.default_coin)")
	cmd.Flags().Uint32(indexFlag, 0, "Account index")
	cmd.Flags().Bool(confirmFlag, false, "Ask before every on-device prompt")

	return cmd
}
