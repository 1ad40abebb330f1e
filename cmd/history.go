package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/safeplate/safescan/internal/model"
	"github.com/safeplate/safescan/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the persistent scan log",
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded scans, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		subject, _ := cmd.Flags().GetString("subject")
		levelStr, _ := cmd.Flags().GetString("level")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		filter := store.ScanFilter{SubjectID: subject, Limit: limit}
		if levelStr != "" {
			level, err := model.ParseRiskLevel(levelStr)
			if err != nil {
				return err
			}
			filter.Level = &level
		}

		scans, err := st.ListScans(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "history list")
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(scans)
		}
		if len(scans) == 0 {
			fmt.Fprintln(os.Stderr, "No scans recorded.")
			return nil
		}
		formatScanList(os.Stdout, scans)
		return nil
	},
}

func formatScanList(w io.Writer, scans []store.ScanRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCANNED\tSUBJECT\tBARCODE\tPRODUCT\tVERDICT\tCONF")
	for _, s := range scans {
		name := s.ProductName
		if name == "" {
			name = "(unknown)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			s.ScannedAt.Local().Format(time.DateTime),
			s.SubjectID, s.Barcode, name, s.OverallLevel, s.ConfidenceScore)
	}
	tw.Flush()
}

// -- history clear --

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete recorded scans",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		subject, _ := cmd.Flags().GetString("subject")
		n, err := st.ClearScans(ctx, subject)
		if err != nil {
			return eris.Wrap(err, "history clear")
		}
		fmt.Printf("Deleted %d scan(s).\n", n)
		return nil
	},
}

// -- history export --

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the scan log to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		subject, _ := cmd.Flags().GetString("subject")
		out, _ := cmd.Flags().GetString("out")
		limit, _ := cmd.Flags().GetInt("limit")

		scans, err := st.ListScans(ctx, store.ScanFilter{SubjectID: subject, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "history export")
		}

		if err := writeScanWorkbook(out, scans); err != nil {
			return err
		}
		fmt.Printf("Wrote %d scan(s) to %s\n", len(scans), out)
		return nil
	},
}

func writeScanWorkbook(path string, scans []store.ScanRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Scans")
	if err != nil {
		return eris.Wrap(err, "add sheet")
	}

	header := sheet.AddRow()
	for _, col := range []string{"Scanned At", "Subject", "Barcode", "Symbology", "Product", "Verdict", "Confidence", "Risk Factors"} {
		header.AddCell().SetString(col)
	}

	for _, s := range scans {
		row := sheet.AddRow()
		row.AddCell().SetString(s.ScannedAt.UTC().Format(time.RFC3339))
		row.AddCell().SetString(s.SubjectID)
		row.AddCell().SetString(s.Barcode)
		row.AddCell().SetString(s.Symbology.DisplayName())
		row.AddCell().SetString(s.ProductName)
		row.AddCell().SetString(s.OverallLevel.String())
		row.AddCell().SetString(strconv.Itoa(s.ConfidenceScore))

		factors := ""
		for i, fct := range s.RiskFactors {
			if i > 0 {
				factors += "; "
			}
			factors += fmt.Sprintf("%s->%s (%s)", fct.Ingredient, fct.RestrictionID, fct.Level)
		}
		row.AddCell().SetString(factors)
	}

	return eris.Wrapf(f.Save(path), "save %s", path)
}

// openStore opens and migrates the store for read/write commands.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func init() {
	historyListCmd.Flags().String("subject", "", "filter by subject")
	historyListCmd.Flags().String("level", "", "filter by verdict level (safe|caution|warning|danger)")
	historyListCmd.Flags().Int("limit", 50, "max scans to list")
	historyListCmd.Flags().Bool("json", false, "emit JSON")

	historyClearCmd.Flags().String("subject", "", "only clear this subject's scans")

	historyExportCmd.Flags().String("subject", "", "filter by subject")
	historyExportCmd.Flags().String("out", "scans.xlsx", "output workbook path")
	historyExportCmd.Flags().Int("limit", 1000, "max scans to export")

	historyCmd.AddCommand(historyListCmd, historyClearCmd, historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
