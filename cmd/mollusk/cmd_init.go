package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henondesigns/mollusk/internal/project"
)

func initCmd() *cobra.Command {
	var location string
	var name string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new mollusk repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := project.Init(location, name); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			fmt.Printf("New mollusk repository created at: %s\n", location)
			return nil
		},
	}

	cmd.Flags().StringVarP(&location, "location", "l", ".", "repository creation location")
	cmd.Flags().StringVar(&name, "name", "A Mollusk Repository", "repository name")
	return cmd
}
