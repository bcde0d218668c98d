package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func fileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Manage files",
	}
	cmd.AddCommand(fileAddCmd(), fileListCmd())
	return cmd
}

func fileAddCmd() *cobra.Command {
	var mimetype string

	cmd := &cobra.Command{
		Use:   "add [item-id] [filename]",
		Short: "Add a file to an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(cmd.Context(), newLogger())
			if err != nil {
				return fmt.Errorf("file add: %w", err)
			}
			defer cleanup()

			file, err := svc.AddFile(cmd.Context(), args[0], args[1], mimetype)
			if err != nil {
				return fmt.Errorf("file add: %w", err)
			}
			fmt.Println(file.ID())
			return nil
		},
	}

	cmd.Flags().StringVar(&mimetype, "mimetype", "", "mimetype (guessed from extension when omitted)")
	return cmd
}

func fileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [item-id]",
		Short: "List an item's files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(cmd.Context(), newLogger())
			if err != nil {
				return fmt.Errorf("file list: %w", err)
			}
			defer cleanup()

			files, err := svc.Files(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("file list: %w", err)
			}
			for _, f := range files {
				fmt.Printf("%s  %s (%s)\n", f.ID(), f.StringAttr("filename"), f.StringAttr("mimetype"))
			}
			return nil
		},
	}
}
