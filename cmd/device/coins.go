package device

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github/chapool/hw-keyring/internal/keyring"
	"github/chapool/hw-keyring/internal/keyring/hdpath"
	"github/chapool/hw-keyring/internal/util/command"
)

func newCoins() *cobra.Command {
	return &cobra.Command{
		Use:   "coins",
		Short: "Lists the coin profiles and their derivation templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.Config(cmd)
			if err != nil {
				return err
			}
			coins, err := keyring.NewCoinRegistry(cfg.Keyring)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0) //nolint:mnd
			fmt.Fprintln(w, "COIN\tFAMILY\tROLE\tSLIP44\tTEMPLATE")
			for _, p := range coins.List() {
				template, err := hdpath.ResolveTemplate(p)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Family, p.Role, p.Slip44, template)
			}
			return w.Flush()
		},
	}
}
