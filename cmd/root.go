package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/hw-keyring/cmd/address"
	"github/chapool/hw-keyring/cmd/device"
	"github/chapool/hw-keyring/cmd/env"
	"github/chapool/hw-keyring/cmd/keystore"
	"github/chapool/hw-keyring/cmd/sign"
	"github/chapool/hw-keyring/internal/config"
	"github/chapool/hw-keyring/internal/util/command"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "keyring",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

A hardware wallet keyring: account paging, address lookups and signing
through a single serialized device prompt queue.
Requires configuration through ENV or --config.`, config.ModuleName),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.PersistentFlags().String(command.ConfigFlag, "", "Path to a config file (yaml, toml or json)")

	// attach the subcommands
	rootCmd.AddCommand(
		address.New(),
		device.New(),
		env.New(),
		keystore.New(),
		sign.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
