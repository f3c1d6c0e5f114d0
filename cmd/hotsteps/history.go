package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/hotsteps/internal/config"
	"github.com/dshills/hotsteps/steps/store"
)

func historyCmd(a *app) *cobra.Command {
	var clearRun bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs, or the transitions of one run (--run-id)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch a.cfg.Journal.Driver {
			case config.JournalSQLite, config.JournalMySQL:
			default:
				return fmt.Errorf("history needs a persistent journal (sqlite or mysql), got %q", a.cfg.Journal.Driver)
			}

			journal, err := openJournal(a.cfg.Journal)
			if err != nil {
				return err
			}
			defer func() { _ = journal.Close() }()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			runID := a.cfg.Engine.RunID

			if runID == "" {
				if clearRun {
					return errors.New("--clear needs --run-id")
				}
				runs, err := journal.Runs(ctx)
				if err != nil {
					return err
				}
				for _, id := range runs {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			if clearRun {
				if err := journal.Clear(ctx, runID); err != nil {
					return err
				}
				fmt.Fprintf(out, "cleared %s\n", runID)
				return nil
			}

			history, err := journal.History(ctx, runID)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no transitions recorded for run %q", runID)
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SEQ\tTIME\t#\tSTEP\tSTATE\tCURSOR")
			for _, t := range history {
				index, step := "-", t.StepID
				if t.Index >= 0 {
					index = fmt.Sprint(t.Index)
				}
				if step == "" {
					step = "-"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
					t.Seq, t.At.Format(time.RFC3339), index, step, t.State, t.Cursor)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&clearRun, "clear", false, "Delete the journal of --run-id")
	return cmd
}
