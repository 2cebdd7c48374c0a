package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/okian/b24stats/internal/domain/types"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Output formats accepted by --output.
const (
	TableOut = "table"
	JSONOut  = "json"
	CSVOut   = "csv"
)

func validOutput(format string) error {
	switch format {
	case TableOut, JSONOut, CSVOut:
		return nil
	default:
		return fmt.Errorf("%w: %q (want table, json or csv)", ErrUnknownOutput, format)
	}
}

// WriteReport renders a statistics report in the requested format.
func WriteReport(w io.Writer, report types.Report, format string, useColors bool) error {
	switch format {
	case JSONOut:
		if err := writeJSON(w, report); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case CSVOut:
		csvWriter := csv.NewWriter(w)
		if err := writeReportCSV(csvWriter, report); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
		csvWriter.Flush()
		return csvWriter.Error()
	default:
		return writeReportTable(w, report, useColors)
	}
	return nil
}

// WriteEmployees renders the employee list in the requested format.
func WriteEmployees(w io.Writer, employees []types.EmployeeView, format string) error {
	switch format {
	case JSONOut:
		return writeJSON(w, employees)
	case CSVOut:
		csvWriter := csv.NewWriter(w)
		if err := csvWriter.Write([]string{"id", "name", "email"}); err != nil {
			return err
		}
		for _, e := range employees {
			if err := csvWriter.Write([]string{e.ID, e.Name, e.Email}); err != nil {
				return err
			}
		}
		csvWriter.Flush()
		return csvWriter.Error()
	}

	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()
	table.Header([]string{"ID", "Name", "Email"})

	data := make([][]string, 0, len(employees))
	for _, e := range employees {
		data = append(data, []string{e.ID, e.Name, e.Email})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d employees visible to the webhook\n", len(employees))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// diffFormatter renders a value with its change against the previous period.
type diffFormatter struct {
	compare   bool
	up, down  func(...any) string
	unchanged func(...any) string
}

func newDiffFormatter(compare, useColors bool) diffFormatter {
	f := diffFormatter{compare: compare}
	if useColors {
		f.up = color.New(color.FgGreen).SprintFunc()
		f.down = color.New(color.FgRed).SprintFunc()
		f.unchanged = color.New(color.FgHiBlack).SprintFunc()
	} else {
		f.up = fmt.Sprint
		f.down = fmt.Sprint
		f.unchanged = fmt.Sprint
	}
	return f
}

func (f diffFormatter) cell(value, diff int) string {
	v := strconv.Itoa(value)
	if !f.compare {
		return v
	}
	switch {
	case diff > 0:
		return v + " " + f.up(fmt.Sprintf("+%d ▲", diff))
	case diff < 0:
		// keeps the sign
		return v + " " + f.down(fmt.Sprintf("%d ▼", diff))
	default:
		return v + " " + f.unchanged("0")
	}
}

func writeReportTable(w io.Writer, report types.Report, useColors bool) error {
	if _, err := fmt.Fprintf(w, "Period: %s\n", report.Current); err != nil {
		return err
	}
	if report.Previous != nil {
		if _, err := fmt.Fprintf(w, "Compared with: %s\n", *report.Previous); err != nil {
			return err
		}
	}
	for _, warning := range report.Warnings {
		if warning == types.WarningEmptyEmployees {
			if _, err := fmt.Fprintln(w, "Warning: the portal returned no employees for this webhook"); err != nil {
				return err
			}
		}
	}
	if len(report.Employees) == 0 {
		_, err := fmt.Fprintln(w, "No data for this period")
		return err
	}

	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()
	table.Header([]string{"Employee", "Companies", "Deals", "Without deals"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	f := newDiffFormatter(report.Previous != nil, useColors)
	data := make([][]string, 0, len(report.Employees)+1)
	for _, s := range report.Employees {
		data = append(data, []string{
			s.UserName,
			f.cell(s.CompanyCount, s.CompanyCountDiff),
			f.cell(s.DealCount, s.DealCountDiff),
			f.cell(s.CompaniesWithoutDeals, s.CompaniesWithoutDealsDiff),
		})
	}
	if t := report.Totals; t != nil {
		data = append(data, []string{
			"Total",
			f.cell(t.CompanyCount, t.CompanyCountDiff),
			f.cell(t.DealCount, t.DealCountDiff),
			f.cell(t.CompaniesWithoutDeals, t.CompaniesWithoutDealsDiff),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func writeReportCSV(w *csv.Writer, report types.Report) error {
	header := []string{
		"user_id",
		"user_name",
		"company_count",
		"deal_count",
		"companies_without_deals",
		"company_count_diff",
		"deal_count_diff",
		"companies_without_deals_diff",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, s := range report.Employees {
		row := []string{
			s.UserID,
			s.UserName,
			strconv.Itoa(s.CompanyCount),
			strconv.Itoa(s.DealCount),
			strconv.Itoa(s.CompaniesWithoutDeals),
			strconv.Itoa(s.CompanyCountDiff),
			strconv.Itoa(s.DealCountDiff),
			strconv.Itoa(s.CompaniesWithoutDealsDiff),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	if t := report.Totals; t != nil {
		return w.Write([]string{
			"",
			"Total",
			strconv.Itoa(t.CompanyCount),
			strconv.Itoa(t.DealCount),
			strconv.Itoa(t.CompaniesWithoutDeals),
			strconv.Itoa(t.CompanyCountDiff),
			strconv.Itoa(t.DealCountDiff),
			strconv.Itoa(t.CompaniesWithoutDealsDiff),
		})
	}
	return nil
}
