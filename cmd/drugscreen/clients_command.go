package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type clientView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	ReferralType string `json:"referralType"`
	PresetID     string `json:"presetId,omitempty"`
	Medications  int    `json:"medications"`
}

func newClientsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "clients",
		Short: "List clients and their referral setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				clients, err := rt.store.ListClients(cmd.Context())
				if err != nil {
					return err
				}
				views := make([]clientView, 0, len(clients))
				for _, c := range clients {
					views = append(views, clientView{
						ID:           c.ID,
						Name:         c.FullName(),
						Email:        c.Email,
						ReferralType: string(c.ReferralType),
						PresetID:     c.PresetID,
						Medications:  len(c.Medications),
					})
				}
				if asJSON {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No clients")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{v.ID, v.Name, orDash(v.Email), v.ReferralType, orDash(v.PresetID), strconv.Itoa(v.Medications)})
				}
				fmt.Fprintln(out, renderTable(out, []string{"ID", "Name", "Email", "Referral", "Preset", "Meds"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
