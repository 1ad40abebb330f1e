package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/safeplate/safescan/internal/model"
	"github.com/safeplate/safescan/internal/restriction"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "Manage subjects and their dietary restrictions",
}

// -- subjects list --

var subjectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known subjects",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		subjects, err := st.ListSubjects(ctx)
		if err != nil {
			return eris.Wrap(err, "subjects list")
		}
		if len(subjects) == 0 {
			fmt.Fprintln(os.Stderr, "No subjects configured.")
			return nil
		}
		for _, s := range subjects {
			fmt.Println(s)
		}
		return nil
	},
}

// -- subjects show --

var subjectsShowCmd = &cobra.Command{
	Use:   "show <subject>",
	Short: "Show a subject's restriction bindings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		registry, err := restriction.SeedRegistry()
		if err != nil {
			return err
		}

		bindings, err := st.ListSubjectRestrictions(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "subjects show")
		}
		if len(bindings) == 0 {
			fmt.Fprintf(os.Stderr, "No restrictions configured for %s.\n", args[0])
			return nil
		}
		formatRestrictionList(os.Stdout, bindings, registry)
		return nil
	},
}

func formatRestrictionList(w io.Writer, bindings []model.SubjectRestriction, registry *restriction.Registry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RESTRICTION\tNAME\tSEVERITY\tACTIVE\tVERIFIED\tCC-SENSITIVE")
	for _, b := range bindings {
		name := "(unknown)"
		if def := registry.ByID(b.RestrictionID); def != nil {
			name = def.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%t\n",
			b.RestrictionID, name, b.Severity, b.Active, b.DoctorVerified, b.CrossContaminationSensitive)
	}
	tw.Flush()
}

// -- subjects set --

var subjectsSetCmd = &cobra.Command{
	Use:   "set <subject> <restriction-id>",
	Short: "Add or update a subject's restriction binding",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		registry, err := restriction.SeedRegistry()
		if err != nil {
			return err
		}
		def := registry.ByID(args[1])
		if def == nil {
			return eris.Errorf("unknown restriction %q; see the restriction registry for valid IDs", args[1])
		}

		severityStr, _ := cmd.Flags().GetString("severity")
		severity := def.DefaultSeverity
		if severityStr != "" {
			severity, err = model.ParseSeverity(severityStr)
			if err != nil {
				return err
			}
		}

		verified, _ := cmd.Flags().GetBool("doctor-verified")
		ccSensitive, _ := cmd.Flags().GetBool("cc-sensitive")
		inactive, _ := cmd.Flags().GetBool("inactive")

		binding := model.SubjectRestriction{
			SubjectID:                   args[0],
			RestrictionID:               args[1],
			Severity:                    severity,
			DoctorVerified:              verified,
			CrossContaminationSensitive: ccSensitive,
			Active:                      !inactive,
		}
		if err := st.UpsertSubjectRestriction(ctx, binding); err != nil {
			return eris.Wrap(err, "subjects set")
		}
		fmt.Printf("Set %s for %s (severity %s, active %t).\n", args[1], args[0], severity, !inactive)
		return nil
	},
}

func init() {
	subjectsSetCmd.Flags().String("severity", "", "mild|moderate|severe|life_threatening (default: registry default)")
	subjectsSetCmd.Flags().Bool("doctor-verified", false, "mark the binding doctor-verified")
	subjectsSetCmd.Flags().Bool("cc-sensitive", false, "treat 'may contain' warnings at full severity")
	subjectsSetCmd.Flags().Bool("inactive", false, "store the binding disabled")

	subjectsCmd.AddCommand(subjectsListCmd, subjectsShowCmd, subjectsSetCmd)
	rootCmd.AddCommand(subjectsCmd)
}
