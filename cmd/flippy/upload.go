package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flippy-sync/flippy/internal/orchestrator"
	"github.com/flippy-sync/flippy/internal/project"
)

func newUploadCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Sync configured repositories onto the connected device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := project.Load(projectRoot)
			if err != nil {
				return err
			}
			st, err := newStore(p)
			if err != nil {
				return err
			}
			t, closeT, err := openTransport(port)
			if err != nil {
				return err
			}
			defer closeT()

			tree := newProgressTree(cmd)
			defer tree.Shutdown()

			orch := orchestrator.New(p, st, t)
			orch.Progress = tree
			return orch.Run(func(ops []orchestrator.Op) bool {
				changes := 0
				for _, op := range ops {
					switch op.Kind {
					case orchestrator.OpCreateDir, orchestrator.OpCopy, orchestrator.OpRemove:
						changes++
					}
				}
				return confirmPrompt(cmd, fmt.Sprintf("Apply %d change(s) to the device?", changes))
			})
		},
	}
	cmd.Flags().StringVar(&port, "port", "/dev/ttyACM0", "serial device the Flipper Zero is attached to")
	return cmd
}
