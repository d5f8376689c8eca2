package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flippy-sync/flippy/internal/download"
	"github.com/flippy-sync/flippy/internal/fwmanifest"
	"github.com/flippy-sync/flippy/internal/project"
)

func newFirmwareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "firmware",
		Short: "View or change the project's firmware selection",
	}
	cmd.AddCommand(newFirmwareSetCmd(), newFirmwareUpdateCmd())
	return cmd
}

func newFirmwareSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <source@channel|url>",
		Short: "Set the firmware this project installs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := fwmanifest.Parse(args[0]); err != nil {
				return err
			}
			p, err := project.Load(projectRoot)
			if err != nil {
				return err
			}
			p.Firmware = args[0]
			return p.Save()
		},
	}
}

func newFirmwareUpdateCmd() *cobra.Command {
	var port, cookieJar string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Install the project's selected firmware onto the connected device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := project.Load(projectRoot)
			if err != nil {
				return err
			}
			f, err := fwmanifest.Parse(p.Firmware)
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
			dlItem := tree.Init("download", 1, "bytes")
			stage := tree.Init("stage", 1, "bytes")

			installer := fwinstaller(st, t)
			if cookieJar != "" {
				dl, err := download.NewClientWithCookieJar(cookieJar)
				if err != nil {
					return err
				}
				installer.Download = dl
			}
			return installer.Install(
				f,
				func(dir string) { cmd.Println("reusing cached firmware at", dir) },
				func(written int64) { dlItem.Set(written) },
				func(path string, written, total int64) {
					stage.Info(path)
					stage.Set(written)
				},
				func() bool { return confirmPrompt(cmd, fmt.Sprintf("Install firmware %s and reboot the device?", f)) },
			)
		},
	}
	cmd.Flags().StringVar(&port, "port", "/dev/ttyACM0", "serial device the Flipper Zero is attached to")
	cmd.Flags().StringVar(&cookieJar, "cookie-jar", "", "curl-format cookie jar for authenticating to a private firmware mirror")
	return cmd
}
