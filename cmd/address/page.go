package address

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/hw-keyring/internal/keyring"
	"github/chapool/hw-keyring/internal/util/command"
)

func newPage() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Lists one page of EVM accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.Config(cmd)
			if err != nil {
				return err
			}
			page, _ := cmd.Flags().GetInt(pageFlag)
			if page < 1 {
				return errors.Errorf("--%s must be at least 1", pageFlag)
			}

			return command.WithKeyring(cmd.Context(), cfg, hooks(cmd), func(ctx context.Context, k *keyring.Keyring) error {
				accounts, err := k.FirstPage(ctx)
				for i := 1; err == nil && i < page; i++ {
					accounts, err = k.NextPage(ctx)
				}
				if err != nil {
					return err
				}
				return printJSON(accounts)
			})
		},
	}

	cmd.Flags().Int(pageFlag, 1, "Page number, starting at 1")
	cmd.Flags().Bool(confirmFlag, false, "Ask before every on-device prompt")

	return cmd
}
