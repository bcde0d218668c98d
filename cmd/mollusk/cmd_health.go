package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := newStore(ctx)
			if err != nil {
				fmt.Printf("Store (%s): FAIL (%v)\n", cfg.Store.Backend, err)
				return fmt.Errorf("health check failed")
			}
			defer func() { _ = st.Close(ctx) }()

			if _, err := st.CountNodes(ctx); err != nil {
				fmt.Printf("Store (%s): FAIL (%v)\n", cfg.Store.Backend, err)
				return fmt.Errorf("health check failed")
			}
			fmt.Printf("Store (%s): OK\n", cfg.Store.Backend)
			return nil
		},
	}
}
