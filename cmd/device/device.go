package device

import (
	"github.com/spf13/cobra"
	"github/chapool/hw-keyring/internal/util/command"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("device",
		newStatus(),
		newCoins(),
	)
}
