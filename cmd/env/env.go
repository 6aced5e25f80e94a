package env

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/hw-keyring/internal/util/command"
)

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Prints the resolved configuration as JSON (secrets omitted)",
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, err := command.Config(cmd)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to load config")
			}

			c, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to marshal the env")
			}

			fmt.Println(string(c))
		},
	}
}
