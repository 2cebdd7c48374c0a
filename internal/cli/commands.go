package cli

import (
	"github.com/okian/b24stats/internal/domain/model"
	"github.com/spf13/cobra"
)

func (a *app) checkCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the webhook by listing the employees it can see",
		Long: `Fetch every employee visible to the configured webhook and print them.

A successful run means the webhook URL is reachable and has the user scope.
Companies and deals are not fetched.

Examples:
  b24stats check --webhook https://example.bitrix24.ru/rest/1/secret/
  b24stats check --output json`,
		Args: cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validOutput(output)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			employees, err := a.svc.Employees(cmd.Context())
			if err != nil {
				return err
			}
			return WriteEmployees(cmd.OutOrStdout(), employees, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", TableOut, "Output format: table, json or csv")
	return cmd
}

func (a *app) reportCommand() *cobra.Command {
	var (
		from, to string
		compare  bool
		output   string
		noColor  bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print per-employee company and deal statistics for a period",
		Long: `Compute, per employee, the companies they own, the deals on those companies
and the companies without deals, created within the period.

--from and --to default to the first day of the current month and today.
With --compare the equal-length period ending the day before --from is
computed too and every value shows its change against it.

Examples:
  b24stats report --from 2024-03-01 --to 2024-03-31 --compare
  b24stats report --output csv > march.csv`,
		Args: cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validOutput(output)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			month := a.svc.CurrentMonth()
			if from == "" {
				from = model.FormatDate(month.Start)
			}
			if to == "" {
				to = model.FormatDate(month.End)
			}
			period, err := model.ParsePeriod(from, to)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("compare") {
				compare = a.cfg.CompareByDefault
			}

			report, err := a.svc.Statistics(cmd.Context(), period, compare)
			if err != nil {
				return err
			}
			return WriteReport(cmd.OutOrStdout(), report, output, !noColor)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day, YYYY-MM-DD (default: first day of the current month)")
	cmd.Flags().StringVar(&to, "to", "", "Last day, YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&compare, "compare", false, "Compare with the previous period (default from compare_by_default)")
	cmd.Flags().StringVarP(&output, "output", "o", TableOut, "Output format: table, json or csv")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored diff arrows")
	return cmd
}
