package sign

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github/chapool/hw-keyring/internal/util/command"
)

const (
	coinFlag    string = "coin"
	indexFlag   string = "index"
	confirmFlag string = "confirm"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("sign",
		newMessage(),
		newTypedData(),
		newEvmTx(),
	)
}

func hooks(cmd *cobra.Command) command.DeviceHooks {
	h := command.DeviceHooks{Password: command.TerminalPassword("Keystore password: ")}
	if confirm, _ := cmd.Flags().GetBool(confirmFlag); confirm {
		h.Confirm = command.TerminalConfirm(os.Stdin)
	}
	return h
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
