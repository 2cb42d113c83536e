package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgeflare/restable/pkg/catalog/sakila"
	"github.com/edgeflare/restable/pkg/pgx/schema"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare the catalog with the database",
	Long:  `Reports catalog entities whose tables, columns, keys or join tables are missing from the database. Exits non-zero when a problem is not just a warning.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return errors.New("configuration not loaded")
		}
		cmd.SilenceUsage = true
		applyFlags(cmd)

		ctx := context.Background()
		pool, closePool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer closePool()

		cat, err := sakila.New()
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		problems, err := verify(ctx, pool, cat)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, p := range problems {
			fmt.Fprintln(out, p)
		}
		if err := schema.Err(problems); err != nil {
			return err
		}
		fmt.Fprintf(out, "%d entities match the database\n", len(cat.Entities()))
		return nil
	},
}

func init() {
	checkCmd.Flags().StringP("db.connString", "c", "", "PostgreSQL connection string")
}
