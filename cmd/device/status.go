package device

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github/chapool/hw-keyring/internal/keyring"
	"github/chapool/hw-keyring/internal/util/command"
)

func newStatus() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Connects to the device and prints its state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.Config(cmd)
			if err != nil {
				return err
			}

			hooks := command.DeviceHooks{Password: command.TerminalPassword("Keystore password: ")}
			return command.WithKeyring(cmd.Context(), cfg, hooks, func(_ context.Context, k *keyring.Keyring) error {
				out, err := json.MarshalIndent(struct {
					State  any    `json:"state"`
					HDPath string `json:"hdPath"`
				}{
					State:  k.Monitor().Latest(),
					HDPath: k.HDPath().String(),
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			})
		},
	}
}
