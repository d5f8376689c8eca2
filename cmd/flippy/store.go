package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/flippy-sync/flippy/internal/gitfacade"
	"github.com/flippy-sync/flippy/internal/project"
	"github.com/flippy-sync/flippy/internal/store"
)

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the project's local clone and firmware cache",
	}
	cmd.AddCommand(newStoreFetchCmd(), newStoreCleanCmd())
	return cmd
}

func newStoreFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Clone or fetch every configured repository into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := project.Load(projectRoot)
			if err != nil {
				return err
			}
			st, err := store.New(p.StoreDir())
			if err != nil {
				return err
			}
			for name, repo := range p.Repositories {
				dst := st.RepoClonePath(repo.UUID)
				if st.HasRepoClone(repo.UUID) {
					r, err := gitfacade.Open(dst)
					if err != nil {
						return err
					}
					log.Infof("fetching %s", name)
					if err := r.Fetch(cmd.OutOrStdout()); err != nil {
						return err
					}
					continue
				}
				log.Infof("cloning %s", name)
				if _, err := gitfacade.Clone(repo.URL, dst, cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newStoreCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove store directories no longer referenced by the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := project.Load(projectRoot)
			if err != nil {
				return err
			}
			st, err := store.New(p.StoreDir())
			if err != nil {
				return err
			}

			// Firmware cache dirs are not kept: identifying which one the
			// current firmware selection resolves to requires a manifest
			// fetch, which clean shouldn't need network for, so every
			// firmware cache dir is removed along with stale clones.
			keep := map[string]bool{}
			for _, repo := range p.Repositories {
				keep[repo.UUID.String()] = true
			}

			entries, err := os.ReadDir(st.Root())
			if err != nil {
				return err
			}
			for _, e := range entries {
				if !e.IsDir() || keep[e.Name()] {
					continue
				}
				log.Infof("removing unreferenced store dir %s", e.Name())
				if err := os.RemoveAll(st.Root() + "/" + e.Name()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
