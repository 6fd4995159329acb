package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pepu-name-service/internal/storage/migrations"
	pgstore "pepu-name-service/internal/storage/postgres"
)

var migrateList bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateList {
			files, err := migrations.PostgresFiles()
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		}

		dsn := cfg.Store.PostgresDSN
		if dsn == "" {
			return errors.New("store.postgres_dsn is required (--postgres-dsn or PNS_STORE_POSTGRES_DSN)")
		}

		ctx := context.Background()
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Strings("files", applied))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateList, "list", false, "print embedded migrations and exit")

	rootCmd.AddCommand(migrateCmd)
}
