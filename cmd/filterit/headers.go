package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/JonMunkholm/filterit/internal/core"
	"github.com/spf13/cobra"
)

func newHeadersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "headers <file>",
		Short: "List a file's column indexes and names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)

			sess := core.NewSession(core.MatchLists{})
			if _, st := sess.LoadFile(args[0]); st.Failed() {
				return st.Err()
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tNAME")
			for i, h := range sess.Headers() {
				fmt.Fprintf(tw, "%d\t%s\n", i, h)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records\n", sess.RowCount())
			return nil
		},
	}
}
