package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Ping pong",
		RunE: func(cmd *cobra.Command, args []string) error {
			newLogger().Debug("pong, from mollusk")
			fmt.Println("pong, from mollusk")
			return nil
		},
	}
}
