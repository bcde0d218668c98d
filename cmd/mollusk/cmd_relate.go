package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func relateCmd() *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "relate [source-id] [label] [target-id]",
		Short: "Add or remove a relationship edge",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(cmd.Context(), newLogger())
			if err != nil {
				return fmt.Errorf("relate: %w", err)
			}
			defer cleanup()

			r := svc.Repository()
			if remove {
				if err := r.RemoveRelation(cmd.Context(), args[0], args[1], args[2]); err != nil {
					return fmt.Errorf("relate: %w", err)
				}
				return nil
			}
			if err := r.AddRelation(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return fmt.Errorf("relate: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "remove the edge instead of adding it")
	return cmd
}
