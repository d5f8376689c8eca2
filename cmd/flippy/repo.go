package main

import (
	"github.com/spf13/cobra"

	"github.com/flippy-sync/flippy/internal/project"
)

func newRepoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage project repositories",
	}
	cmd.AddCommand(newRepoAddCmd(), newRepoRemoveCmd())
	return cmd
}

func newRepoAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <url> <name>",
		Short: "Register a repository in the project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, name := args[0], args[1]
			p, err := project.Load(projectRoot)
			if err != nil {
				return err
			}
			if _, err := p.AddRepository(name, url); err != nil {
				return err
			}
			return p.Save()
		},
	}
}

func newRepoRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a repository from the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			p, err := project.Load(projectRoot)
			if err != nil {
				return err
			}
			if err := p.RemoveRepository(name); err != nil {
				return err
			}
			return p.Save()
		},
	}
}
