package cmd

import (
	"fmt"

	"github.com/cozy-creator/bg-remover/internal/templates"
	"github.com/cozy-creator/bg-remover/internal/utils/pathutil"
	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

func init() {
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with every key set to its default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "./config.yaml"
			if len(args) == 1 {
				path = args[0]
			}

			path, err := pathutil.ExpandPath(path)
			if err != nil {
				return err
			}

			force, _ := cmd.Flags().GetBool("force")
			if err := templates.WriteConfig(path, force); err != nil {
				return err
			}

			fmt.Printf("config written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")

	Cmd.AddCommand(initCmd)
}
