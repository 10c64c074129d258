package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"drugscreen/internal/notify"
)

type recipientView struct {
	Audience string `json:"audience"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
}

func newRecipientsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "recipients <client-id>",
		Short: "Show who receives notifications for a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				set := rt.resolver.Resolve(cmd.Context(), args[0])
				views := recipientViews(set)
				if asJSON {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No recipients resolved")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{v.Audience, orDash(v.Name), v.Email})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Audience", "Name", "Email"}, rows, nil))
				if set.HasReferral(set.ClientEmail) {
					fmt.Fprintln(out, "Client is also a referral recipient; the client copy is not sent separately")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func recipientViews(set notify.RecipientSet) []recipientView {
	views := make([]recipientView, 0, len(set.Referrals)+1)
	if set.ClientEmail != "" {
		views = append(views, recipientView{Audience: string(notify.AudienceClient), Name: set.ClientName, Email: set.ClientEmail})
	}
	for _, c := range set.Referrals {
		views = append(views, recipientView{Audience: string(notify.AudienceReferral), Name: c.Name, Email: c.Email})
	}
	return views
}
