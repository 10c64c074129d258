package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"drugscreen/internal/api"
	"drugscreen/internal/notify"
	"drugscreen/internal/store"
	"drugscreen/internal/workflow"
)

func newTestCommand(ctx *commandContext) *cobra.Command {
	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Inspect and drive test records",
	}
	testCmd.AddCommand(newTestListCommand(ctx))
	testCmd.AddCommand(newTestShowCommand(ctx))
	testCmd.AddCommand(newTestEvaluateCommand(ctx))
	testCmd.AddCommand(newTestCollectCommand(ctx))
	return testCmd
}

func newTestListCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently updated tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				tests, err := rt.store.ListTests(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					views := make([]api.Test, 0, len(tests))
					for _, test := range tests {
						views = append(views, api.FromTest(test))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(tests) == 0 {
					fmt.Fprintln(out, "No tests")
					return nil
				}
				rows := make([][]string, 0, len(tests))
				for _, test := range tests {
					rows = append(rows, []string{
						test.ID,
						test.ClientID,
						orDash(test.PanelID),
						string(test.ScreeningStatus),
						orDash(string(test.FinalStatus)),
						test.UpdatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(out, []string{"ID", "Client", "Panel", "Status", "Final", "Updated"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of tests")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newTestShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <test-id>",
		Short: "Show a test record and its notification history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				test, err := rt.store.FindTest(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.FromTest(test))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, testRows(test), nil))
				if len(test.NotificationsSent) == 0 {
					fmt.Fprintln(out, "No notifications sent")
					return nil
				}
				fmt.Fprintln(out, renderTable(out, []string{"Stage", "Sent at", "Sent to", "Failed"}, historyRows(test), nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func testRows(test *store.Test) [][]string {
	collected := "-"
	if !test.CollectedAt.IsZero() {
		collected = test.CollectedAt.Local().Format(time.DateTime)
	}
	bac := "-"
	if test.Breathalyzer.Taken {
		bac = strconv.FormatFloat(test.Breathalyzer.BAC, 'f', 3, 64)
	}
	return [][]string{
		{"ID", test.ID},
		{"Client", test.ClientID},
		{"Panel", orDash(test.PanelID)},
		{"Collected", collected},
		{"Status", string(test.ScreeningStatus)},
		{"Detected", joinOrDash(test.Detected)},
		{"Screen result", orDash(string(test.InitialScreenResult))},
		{"Auto-accept", yesNo(test.AutoAccept)},
		{"Decision", string(test.ConfirmationDecision)},
		{"Confirmation", joinOrDash(test.ConfirmationSubstances)},
		{"Final status", orDash(string(test.FinalStatus))},
		{"Inconclusive", yesNo(test.IsInconclusive)},
		{"Breathalyzer BAC", bac},
		{"Notifications", yesNo(test.NotificationsEnabled)},
		{"Screen document", orDash(test.TestDocumentID)},
		{"Confirmation document", orDash(test.ConfirmationDocumentID)},
	}
}

func historyRows(test *store.Test) [][]string {
	rows := make([][]string, 0, len(test.NotificationsSent))
	for _, rec := range test.NotificationsSent {
		rows = append(rows, []string{
			string(rec.Stage),
			rec.SentAt.Local().Format(time.DateTime),
			joinOrDash(rec.SentTo),
			joinOrDash(rec.Failed),
		})
	}
	return rows
}

func newTestEvaluateCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "evaluate <test-id>",
		Short: "Run the notification pipeline for a test now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				if _, err := rt.store.FindTest(cmd.Context(), args[0]); err != nil {
					return err
				}
				result, err := rt.manager.Evaluate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.FromResult(result))
				}
				printResult(cmd, result)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func printResult(cmd *cobra.Command, result notify.Result) {
	out := cmd.OutOrStdout()
	rows := [][]string{
		{"Outcome", string(result.Outcome)},
		{"Stage", orDash(string(result.Stage))},
		{"Sent to", joinOrDash(result.SentTo)},
		{"Failed", joinOrDash(result.Failed)},
	}
	if result.Err != nil {
		rows = append(rows, []string{"Error", result.Err.Error()})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, rows, nil))
}

func newTestCollectCommand(ctx *commandContext) *cobra.Command {
	var (
		clientID string
		panelID  string
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Record a specimen collection for a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				test, err := rt.manager.Collect(cmd.Context(), workflow.CollectInput{
					ClientID:             clientID,
					PanelID:              panelID,
					DisableNotifications: quiet,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), test.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "Client id")
	cmd.Flags().StringVar(&panelID, "panel", "", "Panel id")
	cmd.Flags().BoolVar(&quiet, "no-notify", false, "Disable notifications for this test")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}
