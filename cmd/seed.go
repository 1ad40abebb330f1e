package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/safeplate/safescan/internal/model"
	"github.com/safeplate/safescan/internal/restriction"
)

// seedProfile is the on-disk shape accepted by `safescan seed`.
type seedProfile struct {
	Subjects []struct {
		SubjectID    string `yaml:"subject_id"`
		Restrictions []struct {
			RestrictionID               string `yaml:"restriction_id"`
			Severity                    string `yaml:"severity"`
			DoctorVerified              bool   `yaml:"doctor_verified"`
			CrossContaminationSensitive bool   `yaml:"cross_contamination_sensitive"`
			Inactive                    bool   `yaml:"inactive"`
		} `yaml:"restrictions"`
	} `yaml:"subjects"`
	Products []struct {
		Barcode           string   `yaml:"barcode"`
		Name              string   `yaml:"name"`
		Brand             string   `yaml:"brand"`
		IngredientsText   string   `yaml:"ingredients_text"`
		DeclaredAllergens []string `yaml:"declared_allergens"`
		DataQualityScore  int      `yaml:"data_quality_score"`
		VerificationCount int      `yaml:"verification_count"`
	} `yaml:"products"`
}

var seedCmd = &cobra.Command{
	Use:   "seed <profile.yaml>",
	Short: "Load subject restriction profiles (and optional products) into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read profile %s", args[0])
		}
		var profile seedProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return eris.Wrapf(err, "parse profile %s", args[0])
		}

		registry, err := restriction.SeedRegistry()
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var bindings, products int
		for _, subject := range profile.Subjects {
			if subject.SubjectID == "" {
				return eris.New("profile entry missing subject_id")
			}
			for _, r := range subject.Restrictions {
				def := registry.ByID(r.RestrictionID)
				if def == nil {
					return eris.Errorf("subject %s: unknown restriction %q", subject.SubjectID, r.RestrictionID)
				}
				severity := def.DefaultSeverity
				if r.Severity != "" {
					severity, err = model.ParseSeverity(r.Severity)
					if err != nil {
						return eris.Wrapf(err, "subject %s restriction %s", subject.SubjectID, r.RestrictionID)
					}
				}
				binding := model.SubjectRestriction{
					SubjectID:                   subject.SubjectID,
					RestrictionID:               r.RestrictionID,
					Severity:                    severity,
					DoctorVerified:              r.DoctorVerified,
					CrossContaminationSensitive: r.CrossContaminationSensitive,
					Active:                      !r.Inactive,
				}
				if err := st.UpsertSubjectRestriction(ctx, binding); err != nil {
					return eris.Wrapf(err, "seed %s/%s", subject.SubjectID, r.RestrictionID)
				}
				bindings++
			}
		}

		for _, p := range profile.Products {
			if p.Barcode == "" {
				return eris.New("profile product missing barcode")
			}
			product := model.Product{
				ID:                p.Barcode,
				Barcode:           p.Barcode,
				Name:              p.Name,
				Brand:             p.Brand,
				IngredientsText:   p.IngredientsText,
				DeclaredAllergens: p.DeclaredAllergens,
				DataQualityScore:  p.DataQualityScore,
				VerificationCount: p.VerificationCount,
			}
			if err := st.UpsertProduct(ctx, product); err != nil {
				return eris.Wrapf(err, "seed product %s", p.Barcode)
			}
			products++
		}

		fmt.Printf("Seeded %d restriction binding(s) and %d product(s).\n", bindings, products)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
