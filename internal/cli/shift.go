package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fuelstation/backend/internal/app"
	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/reconcile"
)

func shiftCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shift",
		Short: "Inspect shifts",
	}
	cmd.AddCommand(shiftActiveCmd(open))
	cmd.AddCommand(shiftListCmd(open))
	cmd.AddCommand(shiftCloseSummaryCmd(open))
	return cmd
}

func shiftActiveCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "Show the open shift for the acting employee's scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				shift, err := a.Service.GetActiveShift(ctx)
				if err != nil {
					return err
				}
				printShift(cmd, shift)
				return nil
			})
		},
	}
}

func shiftListCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent shifts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				shifts, err := a.Service.ListShifts(ctx, status, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, s := range shifts {
					fmt.Fprintf(out, "%s  %-6s  %s  sales %s\n",
						s.ID, statusLabel(s.Status), s.StartTime.Format("2006-01-02 15:04"), s.SalesTotal.StringFixed(2))
				}
				return nil
			})
		},
	}
	cmd.Flags().String("status", "", "OPEN or CLOSED")
	cmd.Flags().Int("limit", 20, "maximum shifts to list")
	return cmd
}

func shiftCloseSummaryCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "close-summary <shift-id>",
		Short: "Show the reconciliation of a closed shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				shift, err := a.Service.GetShift(ctx, args[0])
				if err != nil {
					return err
				}
				printShift(cmd, shift)
				if shift.IsOpen() || shift.ClosingCash == nil {
					fmt.Fprintln(cmd.OutOrStdout(), neutral.Sprint("shift is still open"))
					return nil
				}

				rows, err := a.Service.GetShiftPaymentMethods(ctx, shift.ID)
				if err != nil {
					return err
				}
				v := reconcile.ComputeVariance(shift.OpeningCash, shift.SalesTotal, *shift.ClosingCash)

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "  closing cash    %12s\n", shift.ClosingCash.StringFixed(2))
				fmt.Fprintf(out, "  expected cash   %12s\n", v.ExpectedCash.StringFixed(2))
				fmt.Fprintf(out, "  difference      %12s  %s\n", signed(v.CashDifference), varianceLabel(v.Kind))
				fmt.Fprintf(out, "  payments        %s\n", reconcile.Summary(reconcile.MethodTotals(rows)))
				for _, row := range rows {
					ref := ""
					if row.Reference != "" {
						ref = "  ref " + row.Reference
					}
					fmt.Fprintf(out, "    %-15s %12s%s\n", row.PaymentMethod, row.Amount.StringFixed(2), ref)
				}
				return nil
			})
		},
	}
}

func printShift(cmd *cobra.Command, shift domain.Shift) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s  %s\n", heading.Sprint("shift"), shift.ID, statusLabel(shift.Status))
	fmt.Fprintf(out, "  employee        %s\n", shift.EmployeeID)
	fmt.Fprintf(out, "  started         %s\n", shift.StartTime.Format("2006-01-02 15:04"))
	if shift.EndTime != nil {
		fmt.Fprintf(out, "  ended           %s\n", shift.EndTime.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(out, "  opening cash    %12s\n", shift.OpeningCash.StringFixed(2))
	fmt.Fprintf(out, "  sales total     %12s\n", shift.SalesTotal.StringFixed(2))
}
