package cmd

import (
	"fmt"
	"os"

	// Subcommands
	apiKey "github.com/cozy-creator/bg-remover/cmd/bgremover/apikey"
	configCmd "github.com/cozy-creator/bg-remover/cmd/bgremover/configcmd"
	db "github.com/cozy-creator/bg-remover/cmd/bgremover/db"
	run "github.com/cozy-creator/bg-remover/cmd/bgremover/run"
	"github.com/cozy-creator/bg-remover/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Cmd = &cobra.Command{
	Use:   "bgremover",
	Short: "Background removal service",
	Long:  "An HTTP service that removes or replaces image backgrounds using a segmentation backend",

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Flags are bound to their config keys in each command's init, so
		// this only has to load env and config files.
		if err := config.LoadEnvAndConfigFiles(); err != nil {
			return err
		}

		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pflags := Cmd.PersistentFlags()

	pflags.String("config-file", "", "Path to a yaml config file")
	pflags.String("env-file", "", "Path to the env file; ./.env is loaded when present")

	// Bind flags to viper
	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))

	// Add subcommands
	Cmd.AddCommand(run.Cmd, db.Cmd, apiKey.Cmd, configCmd.Cmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}
