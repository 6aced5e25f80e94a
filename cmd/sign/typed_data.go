package sign

import (
	"context"
	"encoding/json"
	"os"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/hw-keyring/internal/keyring"
	"github/chapool/hw-keyring/internal/keyring/signer"
	"github/chapool/hw-keyring/internal/util/command"
)

const (
	addressFlag string = "address"
	fileFlag    string = "file"
)

func newTypedData() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "typed-data",
		Short: "Signs EIP-712 typed data read from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.Config(cmd)
			if err != nil {
				return err
			}
			addr, _ := cmd.Flags().GetString(addressFlag)
			file, _ := cmd.Flags().GetString(fileFlag)

			raw, err := os.ReadFile(file)
			if err != nil {
				return errors.Wrap(err, "failed to read typed data")
			}
			var data apitypes.TypedData
			if err := json.Unmarshal(raw, &data); err != nil {
				return errors.Wrap(err, "failed to decode typed data")
			}

			coinID, _ := cmd.Flags().GetString(coinFlag)

			return command.WithKeyring(cmd.Context(), cfg, hooks(cmd), func(ctx context.Context, k *keyring.Keyring) error {
				sig, err := k.Sign(ctx, signer.TypedData{
					Coin:        coinID,
					Address:     addr,
					Domain:      data.Domain,
					Types:       data.Types,
					Message:     data.Message,
					PrimaryType: data.PrimaryType,
				})
				if err != nil {
					return err
				}
				return printJSON(sig)
			})
		},
	}

	cmd.Flags().String(coinFlag, "", "EVM coin identifier (defaults to eth)")
	cmd.Flags().String(addressFlag, "", "Signing address")
	cmd.Flags().String(fileFlag, "", "Path to the typed data JSON")
	cmd.Flags().Bool(confirmFlag, false, "Ask before every on-device prompt")
	_ = cmd.MarkFlagRequired(addressFlag)
	_ = cmd.MarkFlagRequired(fileFlag)

	return cmd
}
