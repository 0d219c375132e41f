package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// calls: print the call history, newest last.
func callsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "calls",
		Short: "Show call history",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := wire.History.ListCallRecords(limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no calls")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tPEER\tDIRECTION\tOUTCOME\tREASON\tDURATION")
			for _, r := range recs {
				dur := "-"
				if !r.ConnectedAt.IsZero() {
					dur = r.EndedAt.Sub(r.ConnectedAt).Round(time.Second).String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.StartedAt.Format("2006-01-02 15:04:05"), r.Peer, r.Direction, r.Outcome, r.Reason, dur)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of most recent calls (0 = all)")
	return cmd
}
