package sign

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/keyring"
	"github/chapool/hw-keyring/internal/keyring/signer"
	"github/chapool/hw-keyring/internal/util/command"
)

func newEvmTx() *cobra.Command {
	var tx device.EvmTx
	var data string

	cmd := &cobra.Command{
		Use:   "evm-tx",
		Short: "Signs an EVM transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.Config(cmd)
			if err != nil {
				return err
			}
			coinID, _ := cmd.Flags().GetString(coinFlag)
			index, _ := cmd.Flags().GetUint32(indexFlag)

			if data != "" {
				tx.Data, err = hexutil.Decode(data)
				if err != nil {
					return errors.Wrap(err, "invalid --data")
				}
			}

			return command.WithKeyring(cmd.Context(), cfg, hooks(cmd), func(ctx context.Context, k *keyring.Keyring) error {
				sig, err := k.Sign(ctx, signer.EvmTransaction{
					Coin:         coinID,
					AccountIndex: index,
					Tx:           tx,
				})
				if err != nil {
					return err
				}
				return printJSON(sig)
			})
		},
	}

	cmd.Flags().String(coinFlag, "", "EVM coin identifier (defaults to eth)")
	cmd.Flags().Uint32(indexFlag, 0, "Account index")
	cmd.Flags().Bool(confirmFlag, false, "Ask before every on-device prompt")
	cmd.Flags().Int64Var(&tx.ChainID, "chain-id", 0, "Chain id")
	cmd.Flags().Uint64Var(&tx.Nonce, "nonce", 0, "Sender nonce")
	cmd.Flags().StringVar(&tx.To, "to", "", "Recipient, empty for contract creation")
	cmd.Flags().StringVar(&tx.Value, "value", "0", "Value in wei")
	cmd.Flags().Uint64Var(&tx.GasLimit, "gas-limit", 21000, "Gas limit") //nolint:mnd
	cmd.Flags().StringVar(&tx.GasPrice, "gas-price", "", "Legacy gas price in wei")
	cmd.Flags().StringVar(&tx.MaxFeePerGas, "max-fee", "", "EIP-1559 max fee per gas in wei")
	cmd.Flags().StringVar(&tx.MaxPriorityFeePerGas, "priority-fee", "", "EIP-1559 max priority fee per gas in wei")
	cmd.Flags().StringVar(&data, "data", "", "0x-prefixed call data")
	_ = cmd.MarkFlagRequired("chain-id")

	return cmd
}
