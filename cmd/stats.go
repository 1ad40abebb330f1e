package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/safeplate/safescan/internal/monitoring"
)

var (
	statsHours int
	statsJSON  bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize scan activity from the scan log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st).Collect(ctx, statsHours)
		if err != nil {
			return eris.Wrap(err, "collect stats")
		}

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		if snap.ScansTotal == 0 {
			fmt.Fprintf(os.Stderr, "No scans in the last %dh.\n", statsHours)
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Scans (last %dh)\t%d\n", snap.LookbackHours, snap.ScansTotal)
		fmt.Fprintf(tw, "  safe\t%d\n", snap.SafeCount)
		fmt.Fprintf(tw, "  caution\t%d\n", snap.CautionCount)
		fmt.Fprintf(tw, "  warning\t%d\n", snap.WarningCount)
		fmt.Fprintf(tw, "  danger\t%d\n", snap.DangerCount)
		fmt.Fprintf(tw, "Subjects\t%d\n", snap.SubjectsSeen)
		fmt.Fprintf(tw, "Unique barcodes\t%d\n", snap.UniqueBarcode)
		fmt.Fprintf(tw, "Blocking rate\t%.1f%%\n", snap.BlockingRate*100)
		fmt.Fprintf(tw, "Avg confidence\t%.1f\n", snap.AvgConfidence)
		tw.Flush()
		return nil
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsHours, "hours", 24, "lookback window in hours")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "emit JSON")
	rootCmd.AddCommand(statsCmd)
}
