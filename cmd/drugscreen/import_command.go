package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"drugscreen/internal/screening"
	"drugscreen/internal/store"
)

// fixtureFile is the TOML layout accepted by "drugscreen import".
type fixtureFile struct {
	Presets []fixturePreset   `toml:"presets"`
	Panels  []screening.Panel `toml:"panels"`
	Clients []fixtureClient   `toml:"clients"`
}

type fixturePreset struct {
	ID           string          `toml:"id"`
	Name         string          `toml:"name"`
	ReferralType string          `toml:"referral_type"`
	Contacts     []store.Contact `toml:"contacts"`
}

type fixtureClient struct {
	ID                   string                 `toml:"id"`
	FirstName            string                 `toml:"first_name"`
	LastName             string                 `toml:"last_name"`
	Email                string                 `toml:"email"`
	DOB                  string                 `toml:"dob"`
	ReferralType         string                 `toml:"referral_type"`
	PresetID             string                 `toml:"preset_id"`
	AdditionalRecipients []store.Contact        `toml:"additional_recipients"`
	Medications          []screening.Medication `toml:"medications"`
}

type importSummary struct {
	Presets int `json:"presets"`
	Panels  int `json:"panels"`
	Clients int `json:"clients"`
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "import <fixtures.toml>",
		Short: "Import referral presets, panels, and clients from a TOML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read fixtures: %w", err)
			}
			var fixtures fixtureFile
			if err := toml.Unmarshal(raw, &fixtures); err != nil {
				return fmt.Errorf("parse fixtures: %w", err)
			}

			var summary importSummary
			err = ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				summary, err = importFixtures(cmd.Context(), rt.store, fixtures)
				return err
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, summary)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d presets, %d panels, %d clients\n",
				summary.Presets, summary.Panels, summary.Clients)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

// importFixtures upserts presets first so client preset references resolve.
func importFixtures(ctx context.Context, st *store.Store, fixtures fixtureFile) (importSummary, error) {
	var summary importSummary
	for _, p := range fixtures.Presets {
		preset := &store.ReferralPreset{
			ID:       p.ID,
			Name:     p.Name,
			Type:     store.ReferralType(p.ReferralType),
			Contacts: p.Contacts,
		}
		if err := st.UpsertPreset(ctx, preset); err != nil {
			return summary, fmt.Errorf("preset %q: %w", p.Name, err)
		}
		summary.Presets++
	}
	for i := range fixtures.Panels {
		if err := st.UpsertPanel(ctx, &fixtures.Panels[i]); err != nil {
			return summary, fmt.Errorf("panel %q: %w", fixtures.Panels[i].ID, err)
		}
		summary.Panels++
	}
	for _, c := range fixtures.Clients {
		client := &store.Client{
			ID:                   c.ID,
			FirstName:            c.FirstName,
			LastName:             c.LastName,
			Email:                c.Email,
			DOB:                  c.DOB,
			ReferralType:         store.ReferralType(c.ReferralType),
			PresetID:             c.PresetID,
			AdditionalRecipients: c.AdditionalRecipients,
			Medications:          c.Medications,
		}
		if err := st.UpsertClient(ctx, client); err != nil {
			return summary, fmt.Errorf("client %q %q: %w", c.FirstName, c.LastName, err)
		}
		summary.Clients++
	}
	return summary, nil
}
