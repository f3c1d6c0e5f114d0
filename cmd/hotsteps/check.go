package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/hotsteps/steps/action"
	"github.com/dshills/hotsteps/steps/script"
)

func checkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <script>",
		Short: "Validate a step script without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := script.LoadDefinitionFile(args[0])
			if err != nil {
				return err
			}
			if _, err := script.Build(def, action.Builtin(a.logger, nil)); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tSTEP\tACTION\tTIMEOUT")
			for i, st := range def.Steps {
				timeout := st.Timeout
				if timeout == "" {
					timeout = "-"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, st.ID, st.Action, timeout)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			name := def.Name
			if name == "" {
				name = args[0]
			}
			fmt.Fprintf(out, "%s: %d steps ok\n", name, len(def.Steps))
			return nil
		},
	}
}
