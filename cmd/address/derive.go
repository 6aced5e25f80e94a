package address

import (
	"context"

	"github.com/spf13/cobra"
	"github/chapool/hw-keyring/internal/keyring"
	"github/chapool/hw-keyring/internal/util/command"
)

func newDerive() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derives the address of an account index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
				derived, err := k.AddressForIndex(ctx, coinID, index)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{
					"coin":    coinID,
					"index":   derived.Index,
					"path":    derived.Path.String(),
					"address": derived.Address,
				})
			})
		},
	}

	cmd.Flags().String(coinFlag, "", "Coin identifier (defaults to keyring.default_coin)")
	cmd.Flags().Uint32(indexFlag, 0, "Account index")
	cmd.Flags().Bool(confirmFlag, false, "Ask before every on-device prompt")

	return cmd
}
