package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flippy-sync/flippy/internal/firmware"
	"github.com/flippy-sync/flippy/internal/progress"
	"github.com/flippy-sync/flippy/internal/project"
	"github.com/flippy-sync/flippy/internal/rpctransport"
	"github.com/flippy-sync/flippy/internal/store"
)

// newStore opens p's store directory, creating it on first use.
func newStore(p *project.Project) (*store.Store, error) {
	return store.New(p.StoreDir())
}

// openTransport dials the Flipper Zero's serial RPC interface over the
// device file at port (e.g. "/dev/ttyACM0"). There is no serial-port
// library anywhere in the reference corpus, so this opens the device
// node directly: on Linux, a CDC-ACM serial device is a plain character
// file and *os.File already satisfies io.ReadWriteCloser.
func openTransport(port string) (rpctransport.Transport, func(), error) {
	f, err := os.OpenFile(port, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}
	t := rpctransport.NewFramedTransport(f)
	return t, func() { t.Close() }, nil
}

// fwinstaller returns a firmware.Installer wired to st and t.
func fwinstaller(st *store.Store, t rpctransport.Transport) *firmware.Installer {
	return firmware.New(st, t)
}

// newProgressTree returns a progress.Tree writing to cmd's stderr.
func newProgressTree(cmd *cobra.Command) *progress.Tree {
	return progress.New(cmd.ErrOrStderr())
}

// confirmPrompt asks a yes/no question on cmd's stdin/stdout, defaulting
// to "no" on anything but an explicit "y"/"yes".
func confirmPrompt(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
