package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henondesigns/mollusk/internal/models"
	"github.com/henondesigns/mollusk/internal/repo"
)

func itemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage items",
	}
	cmd.AddCommand(itemCreateCmd(), itemGetCmd(), itemListCmd(), itemRenameCmd())
	return cmd
}

func itemCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create [title]",
		Short: "Create a new item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(cmd.Context(), newLogger())
			if err != nil {
				return fmt.Errorf("item create: %w", err)
			}
			defer cleanup()

			item, err := svc.CreateItem(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("item create: %w", err)
			}
			fmt.Println(item.ID())
			return nil
		},
	}
}

func itemGetCmd() *cobra.Command {
	var outputJSON bool
	var withFiles bool

	cmd := &cobra.Command{
		Use:   "get [item-id]",
		Short: "Retrieve an item by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, cleanup, err := newService(ctx, newLogger())
			if err != nil {
				return fmt.Errorf("item get: %w", err)
			}
			defer cleanup()

			item, err := svc.GetItem(ctx, args[0])
			if err != nil {
				return fmt.Errorf("item get: %w", err)
			}

			if outputJSON {
				out, err := json.MarshalIndent(entityView(item), "", "  ")
				if err != nil {
					return fmt.Errorf("item get: marshaling JSON: %w", err)
				}
				fmt.Println(string(out))
				return nil
			}

			fmt.Printf("ID:    %s\n", item.ID())
			fmt.Printf("Title: %s\n", item.StringAttr("title"))
			if withFiles {
				files, err := item.Relation(ctx, models.RelationFiles)
				if err != nil {
					return fmt.Errorf("item get: %w", err)
				}
				fmt.Printf("Files: %d\n", len(files))
				for _, f := range files {
					fmt.Printf("  %s  %s (%s)\n", f.ID(), f.StringAttr("filename"), f.StringAttr("mimetype"))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&withFiles, "files", false, "also list related files")
	return cmd
}

func itemListCmd() *cobra.Command {
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(cmd.Context(), newLogger())
			if err != nil {
				return fmt.Errorf("item list: %w", err)
			}
			defer cleanup()

			items, err := svc.Repository().List(cmd.Context(), models.VariantItem, offset, limit)
			if err != nil {
				return fmt.Errorf("item list: %w", err)
			}
			for _, item := range items {
				fmt.Printf("%s  %s\n", item.ID(), item.StringAttr("title"))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "number of items to skip")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum items to return")
	return cmd
}

func itemRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename [item-id] [title]",
		Short: "Rename an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(cmd.Context(), newLogger())
			if err != nil {
				return fmt.Errorf("item rename: %w", err)
			}
			defer cleanup()

			if err := svc.RenameItem(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("item rename: %w", err)
			}
			return nil
		},
	}
}

// entityView flattens an entity for JSON output.
func entityView(e *repo.Entity) map[string]any {
	view := map[string]any{
		"id":      e.ID(),
		"variant": string(e.Variant()),
	}
	for k, v := range e.Attributes() {
		view[k] = v
	}
	return view
}
