// Command filterit removes rows from a contact list whose address starts
// with a PO box style prefix or whose email ends with an institutional
// suffix, writing the kept and removed rows to separate CSV files.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/filterit/internal/core"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitSession = 2
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code. Session failures
// exit 2 with the user-facing explanation; anything else exits 1.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitOK
	}

	fmt.Fprintln(stderr, "Error:", err)
	var se *core.Error
	if errors.As(err, &se) {
		fmt.Fprintln(stderr, core.FormatUserError(err))
		return exitSession
	}
	return exitFailure
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "filterit",
		Short:         "Filter PO box addresses and institutional emails out of contact lists",
		Long:          `Load a .csv, .xls or .xlsx contact list, remove rows matching an address or email rule, and save the kept and removed rows as CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	root.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")

	root.AddCommand(newRunCmd())
	root.AddCommand(newHeadersCmd())
	return root
}
