package cmd

import (
	"fmt"

	"github.com/cozy-creator/bg-remover/internal/config"
	"github.com/cozy-creator/bg-remover/internal/db"
	"github.com/cozy-creator/bg-remover/internal/db/drivers"
	"github.com/cozy-creator/bg-remover/internal/db/migrations"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"
)

var Cmd = &cobra.Command{
	Use:   "db",
	Short: "Utility for database management",
}

func init() {
	setupMigrationCmd(Cmd)
}

// withMigrator opens the database named by BGR_DB_DRIVER and BGR_DB_DSN (or
// the config file) for the duration of one command.
func withMigrator(cmd *cobra.Command, f func(migrator *migrate.Migrator) error) error {
	driver, err := db.NewConnection(cmd.Context(), config.MustGetConfig())
	if err != nil {
		return err
	}
	defer closeDriver(driver)

	return f(migrate.NewMigrator(driver.GetDB(), migrations.Migrations))
}

func closeDriver(driver drivers.Driver) {
	if err := driver.Close(); err != nil {
		fmt.Println("failed to close database:", err)
	}
}

func setupMigrationCmd(cmd *cobra.Command) {
	migrationCmd := &cobra.Command{
		Use:   "migration",
		Short: "Utility for handling database migrations",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "create migration tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(migrator *migrate.Migrator) error {
				return migrator.Init(cmd.Context())
			})
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "migrate database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(migrator *migrate.Migrator) error {
				if err := migrator.Lock(cmd.Context()); err != nil {
					return err
				}
				defer migrator.Unlock(cmd.Context()) //nolint:errcheck

				group, err := migrator.Migrate(cmd.Context())
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Printf("there are no new migrations to run (database is up to date)\n")
					return nil
				}
				fmt.Printf("migrated to %s\n", group)
				return nil
			})
		},
	}

	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "rollback the last migration group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(migrator *migrate.Migrator) error {
				if err := migrator.Lock(cmd.Context()); err != nil {
					return err
				}
				defer migrator.Unlock(cmd.Context()) //nolint:errcheck

				group, err := migrator.Rollback(cmd.Context())
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Printf("there are no groups to roll back\n")
					return nil
				}
				fmt.Printf("rolled back %s\n", group)
				return nil
			})
		},
	}

	lockCmd := &cobra.Command{
		Use:   "lock",
		Short: "Lock the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(migrator *migrate.Migrator) error {
				if err := migrator.Lock(cmd.Context()); err != nil {
					return err
				}
				fmt.Printf("locked\n")
				return nil
			})
		},
	}

	unlockCmd := &cobra.Command{
		Use:   "unlock",
		Short: "Unlock the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(migrator *migrate.Migrator) error {
				if err := migrator.Unlock(cmd.Context()); err != nil {
					return err
				}
				fmt.Printf("unlocked\n")
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the status of the migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(migrator *migrate.Migrator) error {
				status, err := migrator.MigrationsWithStatus(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("migrations: %s\n", status)
				fmt.Printf("unapplied migrations: %s\n", status.Unapplied())
				fmt.Printf("last migration group: %s\n", status.LastGroup())
				return nil
			})
		},
	}

	markAppliedCmd := &cobra.Command{
		Use:   "mark-applied",
		Short: "Mark all migrations as applied without actually running them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(migrator *migrate.Migrator) error {
				group, err := migrator.Migrate(cmd.Context(), migrate.WithNopMigration())
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Printf("there are no new migrations to mark as applied\n")
					return nil
				}
				fmt.Printf("marked as applied %s\n", group)
				return nil
			})
		},
	}

	migrationCmd.AddCommand(
		initCmd,
		migrateCmd,
		rollbackCmd,
		lockCmd,
		unlockCmd,
		statusCmd,
		markAppliedCmd,
	)

	cmd.AddCommand(migrationCmd)
}
