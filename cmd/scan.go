package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/safeplate/safescan/internal/model"
	"github.com/safeplate/safescan/internal/scan"
)

var (
	scanSubject   string
	scanSymbology string
	scanJSON      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <barcode>",
	Short: "Run one barcode through the safety pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "scan")
		if err != nil {
			return err
		}
		defer env.Close()
		if err := env.Store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		out, err := env.Pipeline.Process(ctx, scanSubject, args[0], model.Symbology(scanSymbology))
		if err != nil {
			return eris.Wrap(err, "scan")
		}

		if scanJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		printOutcome(out)
		return nil
	},
}

func printOutcome(out *scan.Outcome) {
	name := out.Product.Name
	if !out.Found {
		name = "(unknown product)"
	}
	fmt.Printf("%-10s %s  [%s %s]\n", verdictBadge(out.Assessment.OverallLevel), name,
		out.Reading.Symbology.DisplayName(), out.Reading.Canonical)
	fmt.Printf("confidence: %d/100\n", out.Assessment.ConfidenceScore)
	for _, f := range out.Assessment.RiskFactors {
		suffix := ""
		if f.ViaCrossContaminationOnly {
			suffix = " (cross-contamination)"
		}
		fmt.Printf("  %-8s %s -> %s [%s]%s\n",
			f.Level, f.Ingredient, f.RestrictionID, f.Severity, suffix)
	}
	if out.Assessment.Blocking() {
		fmt.Println("DO NOT CONSUME without checking the label yourself.")
	}
}

func verdictBadge(level model.RiskLevel) string {
	switch level {
	case model.RiskSafe:
		return "SAFE"
	case model.RiskCaution:
		return "CAUTION"
	case model.RiskWarning:
		return "WARNING"
	case model.RiskDanger:
		return "DANGER"
	default:
		return "UNKNOWN"
	}
}

func init() {
	scanCmd.Flags().StringVar(&scanSubject, "subject", "default", "subject whose restrictions apply")
	scanCmd.Flags().StringVar(&scanSymbology, "symbology", string(model.SymbologyEAN13), "barcode symbology tag")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "emit the full outcome as JSON")
	rootCmd.AddCommand(scanCmd)
}
