package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fuelstation/backend/internal/app"
	"fuelstation/backend/internal/domain"
)

func reportCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Profit/loss reports and saved snapshots",
	}
	cmd.AddCommand(reportProfitLossCmd(open))
	cmd.AddCommand(reportSnapshotCmd(open))
	cmd.AddCommand(reportSummariesCmd(open))
	return cmd
}

func addPeriodFlags(cmd *cobra.Command) {
	cmd.Flags().String("period", "month", "day, week, month, quarter, year or custom")
	cmd.Flags().String("start", "", "custom period start (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "custom period end (YYYY-MM-DD)")
}

func periodQuery(cmd *cobra.Command) domain.PeriodQuery {
	periodType, _ := cmd.Flags().GetString("period")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	return domain.PeriodQuery{PeriodType: periodType, StartDate: start, EndDate: end}
}

func reportProfitLossCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profit-loss",
		Short: "Compute profit/loss for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			details, _ := cmd.Flags().GetBool("details")
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				report, err := a.Service.CalculateProfitLoss(ctx, periodQuery(cmd), details)
				if err != nil {
					return err
				}
				printReport(cmd, report)
				return nil
			})
		},
	}
	addPeriodFlags(cmd)
	cmd.Flags().Bool("details", false, "list the sales, expenses and supplies behind the totals")
	return cmd
}

func printReport(cmd *cobra.Command, report domain.ProfitLossReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s .. %s\n", heading.Sprint(report.Period),
		report.StartDate.Format("2006-01-02"), report.EndDate.Format("2006-01-02"))
	fmt.Fprintf(out, "  sales      %12s\n", report.TotalSales.StringFixed(2))
	fmt.Fprintf(out, "  expenses   %12s\n", report.TotalExpenses.StringFixed(2))
	fmt.Fprintf(out, "  fuel cost  %12s\n", report.TotalFuelCost.StringFixed(2))
	fmt.Fprintf(out, "  profit     %12s\n", signed(report.Profit))
	fmt.Fprintf(out, "  margin     %11s%%\n", report.ProfitMargin.StringFixed(2))

	if report.Details == nil {
		return
	}
	fmt.Fprintf(out, "\n%s (%d)\n", heading.Sprint("sales"), len(report.Details.Sales))
	for _, s := range report.Details.Sales {
		fmt.Fprintf(out, "  %s  %-10s %10s  %s\n", s.SaleDate.Format("2006-01-02 15:04"), s.FillingSystemID, s.TotalSales.StringFixed(2), s.PaymentMethod)
	}
	fmt.Fprintf(out, "%s (%d)\n", heading.Sprint("expenses"), len(report.Details.Expenses))
	for _, e := range report.Details.Expenses {
		fmt.Fprintf(out, "  %s  %-10s %10s  %s\n", e.Date.Format("2006-01-02 15:04"), e.Category, e.Amount.StringFixed(2), e.PaymentStatus)
	}
	fmt.Fprintf(out, "%s (%d)\n", heading.Sprint("fuel supplies"), len(report.Details.FuelSupplies))
	for _, f := range report.Details.FuelSupplies {
		fmt.Fprintf(out, "  %s  %-10s %10s  %s\n", f.DeliveryDate.Format("2006-01-02 15:04"), f.FuelType, f.TotalCost.StringFixed(2), f.PaymentStatus)
	}
}

func reportSnapshotCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Compute profit/loss for a period and save it as a summary",
		Long: `Compute profit/loss for a period and save it as a summary.

Every run stores a new row, even for a period that already has one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, _ := cmd.Flags().GetString("notes")
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				summary, err := a.Service.GenerateAndSaveProfitLoss(ctx, domain.GenerateProfitLossRequest{
					PeriodQuery: periodQuery(cmd),
					Notes:       notes,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s  %s  sales %s  expenses %s  profit %s\n",
					summary.ID, summary.Period,
					summary.TotalSales.StringFixed(2), summary.TotalExpenses.StringFixed(2), signed(summary.Profit))
				return nil
			})
		},
	}
	addPeriodFlags(cmd)
	cmd.Flags().String("notes", "", "free-text note stored with the summary")
	return cmd
}

func reportSummariesCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summaries",
		Short: "List saved summaries inside a period, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				summaries, err := a.Service.GetProfitLossSummary(ctx, periodQuery(cmd))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(summaries) == 0 {
					fmt.Fprintln(out, neutral.Sprint("no summaries"))
					return nil
				}
				for _, s := range summaries {
					fmt.Fprintf(out, "%s  %-24s profit %12s  %s\n",
						s.CreatedAt.Format("2006-01-02 15:04"), s.Period, signed(s.Profit), s.Notes)
				}
				return nil
			})
		},
	}
	addPeriodFlags(cmd)
	return cmd
}
