package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/henondesigns/mollusk/internal/models"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-variant entity counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(cmd.Context(), newLogger())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer cleanup()

			counts, err := svc.Repository().Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			variants := make([]string, 0, len(counts))
			var total int64
			for v, n := range counts {
				variants = append(variants, string(v))
				total += n
			}
			sort.Strings(variants)
			for _, v := range variants {
				fmt.Printf("%-12s %d\n", v, counts[models.Variant(v)])
			}
			fmt.Printf("%-12s %d\n", "total", total)
			return nil
		},
	}
}
