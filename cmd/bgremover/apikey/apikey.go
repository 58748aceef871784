package cmd

import (
	"fmt"

	"github.com/cozy-creator/bg-remover/internal/config"
	"github.com/cozy-creator/bg-remover/internal/db"
	"github.com/cozy-creator/bg-remover/internal/db/models"
	"github.com/cozy-creator/bg-remover/internal/db/repository"
	"github.com/cozy-creator/bg-remover/internal/utils/hashutil"
	"github.com/cozy-creator/bg-remover/internal/utils/randutil"
	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "api-key",
	Short: "Manage API keys",
}

func init() {
	setupAPIKeyCmd(Cmd)
}

// withRepository opens the database and makes sure the api_keys table exists.
func withRepository(cmd *cobra.Command, f func(repo *repository.APIKeyRepository) error) error {
	driver, err := db.NewConnection(cmd.Context(), config.MustGetConfig())
	if err != nil {
		return err
	}
	defer driver.Close()

	if err := db.CreateTables(cmd.Context(), driver.GetDB()); err != nil {
		return err
	}

	return f(repository.NewAPIKeyRepository(driver.GetDB()))
}

func setupAPIKeyCmd(cmd *cobra.Command) {
	newAPIKeyCmd := &cobra.Command{
		Use:   "new",
		Short: "Creates a new API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd, func(repo *repository.APIKeyRepository) error {
				key, err := randutil.NewAPIKey()
				if err != nil {
					return err
				}

				mask := randutil.MaskString(key, len(randutil.APIKeyPrefix)+4, 4)
				apiKey := models.NewAPIKey(hashutil.Sha3256Hash([]byte(key)), mask)
				if _, err := repo.Create(cmd.Context(), apiKey); err != nil {
					return err
				}

				fmt.Printf("API key created: %s\n", key)
				fmt.Println("Store it now, it cannot be shown again.")
				return nil
			})
		},
	}

	revokeAPIKeyCmd := &cobra.Command{
		Use:   "revoke <key>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			return withRepository(cmd, func(repo *repository.APIKeyRepository) error {
				if err := repo.RevokeByHash(cmd.Context(), hashutil.Sha3256Hash([]byte(key))); err != nil {
					return err
				}

				fmt.Printf("API key revoked: %s\n", randutil.MaskString(key, len(randutil.APIKeyPrefix)+4, 4))
				return nil
			})
		},
	}

	listAPIKeysCmd := &cobra.Command{
		Use:   "list",
		Short: "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd, func(repo *repository.APIKeyRepository) error {
				apiKeys, err := repo.List(cmd.Context())
				if err != nil {
					return err
				}

				if len(apiKeys) == 0 {
					fmt.Println("No API keys found")
					return nil
				}

				fmt.Println("API keys:")
				for _, apiKey := range apiKeys {
					fmt.Printf("%s (Revoked: %t, Created: %s)\n", apiKey.KeyMask, apiKey.IsRevoked, apiKey.CreatedAt.Format("2006-01-02"))
				}

				return nil
			})
		},
	}

	cmd.AddCommand(newAPIKeyCmd, revokeAPIKeyCmd, listAPIKeysCmd)
}
