package address

import (
	"context"

	"github.com/spf13/cobra"
	"github/chapool/hw-keyring/internal/keyring"
	"github/chapool/hw-keyring/internal/util/command"
)

func newLookup() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Finds the account index of an address",
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
			addr, _ := cmd.Flags().GetString(addressFlag)

			return command.WithKeyring(cmd.Context(), cfg, hooks(cmd), func(ctx context.Context, k *keyring.Keyring) error {
				index, err := k.IndexForAddress(ctx, coinID, addr)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"coin": coinID, "address": addr, "index": index})
			})
		},
	}

	cmd.Flags().String(coinFlag, "", "Coin identifier (defaults to keyring.default_coin)")
	cmd.Flags().String(addressFlag, "", "Address to look up")
	cmd.Flags().Bool(confirmFlag, false, "Ask before every on-device prompt")
	_ = cmd.MarkFlagRequired(addressFlag)

	return cmd
}
