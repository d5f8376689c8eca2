package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/flippy-sync/flippy/internal/project"
)

func newMapCmd() *cobra.Command {
	var excludes []string
	cmd := &cobra.Command{
		Use:   "map <domain> <repo> <pathspec>...",
		Short: "Set a repository's include/exclude pathspec for a domain",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain := project.Domain(args[0])
			repoName := args[1]
			include := args[2:]

			if _, ok := domain.Destination(); !ok {
				return errors.Errorf("unknown domain %q", domain)
			}

			p, err := project.Load(projectRoot)
			if err != nil {
				return err
			}
			repo, ok := p.Repositories[repoName]
			if !ok {
				return errors.Wrapf(project.ErrNotFound, "repository %q", repoName)
			}
			if repo.Mappings == nil {
				repo.Mappings = project.Mappings{}
			}
			repo.Mappings[domain] = project.Mapping{Include: include, Exclude: excludes}
			return p.Save()
		},
	}
	cmd.Flags().StringSliceVar(&excludes, "excludes", nil, "exclude pathspec patterns")
	return cmd
}
