package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"drugscreen/internal/screening"
)

func newClassifyCommand() *cobra.Command {
	var (
		detected        []string
		expected        []string
		critical        []string
		panelSubstances []string
		bac             float64
		asJSON          bool
	)

	cmd := &cobra.Command{
		Use:         "classify",
		Short:       "Classify a screen without touching the database",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Example: `  drugscreen classify --detected amphetamines,thc --expected amphetamines
  drugscreen classify --critical buprenorphine --bac 0.03`,
		RunE: func(cmd *cobra.Command, args []string) error {
			meds := make([]screening.Medication, 0, len(expected)+len(critical))
			for _, s := range expected {
				meds = append(meds, screening.Medication{Name: s, DetectedAs: []string{s}})
			}
			for _, s := range critical {
				meds = append(meds, screening.Medication{Name: s, DetectedAs: []string{s}, Critical: true})
			}
			input := screening.Input{
				Detected:    detected,
				Medications: meds,
			}
			if len(panelSubstances) > 0 {
				input.Panel = &screening.Panel{Kind: screening.PanelInstant, Substances: panelSubstances}
			}
			if cmd.Flags().Changed("bac") {
				input.Breathalyzer = screening.Breathalyzer{Taken: true, BAC: bac}
			}

			outcome, err := screening.Compute(input)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, outcome)
			}
			rows := [][]string{
				{"Screen result", string(outcome.Status)},
				{"Auto-accept", yesNo(outcome.AutoAccept)},
				{"Rule", orDash(outcome.Rule)},
				{"Breathalyzer override", yesNo(outcome.BreathalyzerOverride)},
				{"Expected positives", joinOrDash(outcome.ExpectedPositives)},
				{"Unexpected positives", joinOrDash(outcome.UnexpectedPositives)},
				{"Unexpected negatives", joinOrDash(outcome.UnexpectedNegatives)},
				{"Critical negatives", joinOrDash(outcome.CriticalNegatives)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), []string{"Field", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&detected, "detected", nil, "Substances detected by the screen")
	cmd.Flags().StringSliceVar(&expected, "expected", nil, "Substances expected from medications")
	cmd.Flags().StringSliceVar(&critical, "critical", nil, "Expected substances whose absence is critical")
	cmd.Flags().StringSliceVar(&panelSubstances, "panel-substances", nil, "Limit classification to substances the panel detects")
	cmd.Flags().Float64Var(&bac, "bac", 0, "Breathalyzer BAC reading (marks the breathalyzer as taken)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
