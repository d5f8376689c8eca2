package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/flippy-sync/flippy/internal/project"
)

func newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <path> <name>",
		Short: "Create a new project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, name := args[0], args[1]
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			p, err := project.New(path, name)
			if err != nil {
				return err
			}
			return p.Save()
		},
	}
}
