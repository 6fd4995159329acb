package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pepu-name-service/internal/naming"
	"pepu-name-service/internal/registry"
)

var checkCmd = &cobra.Command{
	Use:   "check <name>",
	Short: "Validate a name and report whether it is registered",
	Long: `Validates a name against the format rules. When the configured store is
PostgreSQL the name is also looked up.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		res := naming.IsRegistrable(args[0])
		fmt.Fprintf(out, "name:      %s\n", res.Name)
		fmt.Fprintf(out, "namehash:  %s\n", naming.NameHash(res.Name).Hex())
		if !res.OK {
			fmt.Fprintf(out, "valid:     no (%s)\n", res.Reason)
			return nil
		}
		fmt.Fprintln(out, "valid:     yes")

		if cfg.Store.Driver != "postgres" {
			return nil
		}
		ctx := context.Background()
		svc := &services{}
		defer svc.close()
		store, err := openStore(ctx, cfg.Store, logger, svc)
		if err != nil {
			return err
		}

		avail, err := registry.NewRegistrar(store, nil, logger).Availability(ctx, res.Name)
		if err != nil {
			return err
		}
		if avail.Available {
			fmt.Fprintln(out, "available: yes")
		} else {
			fmt.Fprintf(out, "available: no (%s)\n", avail.Reason)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
