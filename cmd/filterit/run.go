package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/filterit/internal/config"
	"github.com/JonMunkholm/filterit/internal/core"
	"github.com/JonMunkholm/filterit/internal/logging"
	"github.com/JonMunkholm/filterit/internal/record"
	"github.com/spf13/cobra"
)

type runOptions struct {
	rule       string
	column     int
	columnName string
	rulesFile  string
	outDir     string
	dryRun     bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Filter a file and save the kept and removed rows",
		Long: `Load <file>, remove the rows whose selected column matches the rule, and
write two CSV files next to it (or into --out-dir):

  <file>_removed_<timestamp>.csv   rows the rule removed
  <file>_filtered_<timestamp>.csv  rows that were kept

Match terms come from FILTER_ADDRESS_PREFIXES and FILTER_EMAIL_SUFFIXES, or
from a YAML file given with --rules.`,
		Example: `  filterit run contacts.xlsx --rule address --column 2
  filterit run contacts.csv --rule email --column-name Email --out-dir out/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			return runFilter(cmd.OutOrStdout(), args[0], opts, time.Now())
		},
	}

	cmd.Flags().StringVar(&opts.rule, "rule", "", "filter rule: address or email")
	cmd.Flags().IntVar(&opts.column, "column", -1, "zero-based column index to test")
	cmd.Flags().StringVar(&opts.columnName, "column-name", "", "column header to test (case-insensitive)")
	cmd.Flags().StringVar(&opts.rulesFile, "rules", "", "YAML file with address_prefixes and email_suffixes")
	cmd.Flags().StringVar(&opts.outDir, "out-dir", "", "directory for output files (default: next to the input)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the rows that would be removed without writing files")
	_ = cmd.MarkFlagRequired("rule")
	cmd.MarkFlagsMutuallyExclusive("column", "column-name")

	return cmd
}

func runFilter(out io.Writer, path string, opts *runOptions, now time.Time) error {
	lists, err := matchLists(opts.rulesFile)
	if err != nil {
		return err
	}

	sess := core.NewSession(lists)

	if _, st := sess.LoadFile(path); st.Failed() {
		return st.Err()
	}
	fmt.Fprintln(out, sess.LastStatus().Message)

	column := opts.column
	if opts.columnName != "" {
		column, _ = sess.ColumnIndex(opts.columnName)
	}

	// An unknown rule name is left for the session to reject.
	kind, _ := core.ParseRuleKind(opts.rule)
	removed, st := sess.Filter(kind, column)
	if st.Failed() {
		return st.Err()
	}
	fmt.Fprintln(out, st.Message)

	if opts.dryRun {
		if err := record.Write(out, sess.WithHeader(removed)); err != nil {
			return fmt.Errorf("print removed rows: %w", err)
		}
		sess.Discard()
		fmt.Fprintln(out, "Dry run, no files written.")
		return nil
	}

	base := path
	if opts.outDir != "" {
		base = filepath.Join(opts.outDir, filepath.Base(path))
	}

	removedPath := core.OutputPath(base, "removed", now)
	if _, st := sess.Export(removedPath, removed); st.Failed() {
		return st.Err()
	}

	_, st = sess.ConfirmFilter()
	if st.Failed() {
		return st.Err()
	}
	fmt.Fprintln(out, st.Message)

	filteredPath := core.OutputPath(base, "filtered", now)
	if _, st := sess.SaveCommitted(filteredPath); st.Failed() {
		return st.Err()
	}

	fmt.Fprintf(out, "Removed rows: %s\n", removedPath)
	fmt.Fprintf(out, "Kept rows:    %s\n", filteredPath)
	return nil
}

// matchLists reads the configured lists, replaced by the rules file when
// one is given.
func matchLists(rulesFile string) (core.MatchLists, error) {
	cfg, err := config.Load()
	if err != nil {
		return core.MatchLists{}, err
	}
	if rulesFile != "" {
		rules, err := config.LoadRules(rulesFile)
		if err != nil {
			return core.MatchLists{}, err
		}
		rules.Apply(&cfg.Filter)
	}
	return cfg.Filter.MatchLists(), nil
}

func setupLogging(cmd *cobra.Command) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	logging.SetupWriter(cmd.ErrOrStderr(), level, format)
}
