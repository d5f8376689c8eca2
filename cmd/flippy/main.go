// Command flippy is the operator-facing companion tool of spec.md: it
// drives project state, repository sync, and firmware installs against
// a Flipper Zero device. Argument parsing and interactive prompting are
// explicitly out of scope for the design this rewrites (spec.md §1), so
// this file and its siblings are thin cobra wiring over the internal
// packages that hold the actual logic.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	projectRoot string
	log         = logrus.New()
)

func main() {
	root := &cobra.Command{
		Use:   "flippy",
		Short: "Keep a Flipper Zero's on-device directories in sync with upstream repositories",
	}
	root.PersistentFlags().StringVar(&projectRoot, "project", ".", "project root directory")

	root.AddCommand(
		newNewCmd(),
		newRepoCmd(),
		newMapCmd(),
		newStoreCmd(),
		newFirmwareCmd(),
		newUploadCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
