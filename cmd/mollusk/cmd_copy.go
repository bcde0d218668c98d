package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/henondesigns/mollusk/internal/storage"
)

func copyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Manage file copies",
	}
	cmd.AddCommand(copyAddCmd(), copyListCmd(), copyWriteCmd(), copyVerifyCmd())
	return cmd
}

func copyAddCmd() *cobra.Command {
	var class string

	cmd := &cobra.Command{
		Use:   "add [file-id] [uri]",
		Short: "Add a storage copy to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(cmd.Context(), newLogger())
			if err != nil {
				return fmt.Errorf("copy add: %w", err)
			}
			defer cleanup()

			cp, err := svc.AddCopy(cmd.Context(), args[0], class, args[1])
			if err != nil {
				return fmt.Errorf("copy add: %w", err)
			}
			fmt.Println(cp.ID())
			return nil
		},
	}

	cmd.Flags().StringVar(&class, "class", storage.ClassPOSIX, "storage class (posix, memory)")
	return cmd
}

func copyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [file-id]",
		Short: "List a file's copies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(cmd.Context(), newLogger())
			if err != nil {
				return fmt.Errorf("copy list: %w", err)
			}
			defer cleanup()

			copies, err := svc.Copies(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("copy list: %w", err)
			}
			for _, cp := range copies {
				fmt.Printf("%s  %s (%s)\n", cp.ID(), cp.StringAttr("uri"), cp.StringAttr("storage_class"))
			}
			return nil
		},
	}
}

func copyWriteCmd() *cobra.Command {
	var fromFile string

	cmd := &cobra.Command{
		Use:   "write [copy-id]",
		Short: "Write content to a copy's storage location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(fromFile)
			if err != nil {
				return fmt.Errorf("copy write: reading %s: %w", fromFile, err)
			}

			svc, cleanup, err := newService(cmd.Context(), newLogger())
			if err != nil {
				return fmt.Errorf("copy write: %w", err)
			}
			defer cleanup()

			if err := svc.WriteContent(cmd.Context(), args[0], data); err != nil {
				return fmt.Errorf("copy write: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fromFile, "from", "", "path of the content to write")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func copyVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [copy-id]",
		Short: "Verify a copy's content against its recorded checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(cmd.Context(), newLogger())
			if err != nil {
				return fmt.Errorf("copy verify: %w", err)
			}
			defer cleanup()

			ok, err := svc.VerifyCopy(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("copy verify: %w", err)
			}
			if !ok {
				return fmt.Errorf("copy verify: checksum mismatch for %s", args[0])
			}
			fmt.Println("OK")
			return nil
		},
	}
}
