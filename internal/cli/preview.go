package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nordbok/nordbok/internal/domain/import/mapper"
	"github.com/nordbok/nordbok/internal/domain/import/service"
	"github.com/nordbok/nordbok/internal/domain/import/sniffer"
	"github.com/nordbok/nordbok/internal/domain/sie"
)

var (
	dateColFlag    int
	amountColFlag  int
	refColFlag     int
	balanceColFlag int
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Validate a file and show what a commit would import",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func init() {
	addMappingFlags(previewCmd)
	rootCmd.AddCommand(previewCmd)
}

func addMappingFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&dateColFlag, "date-col", -1, "override the accounting date column")
	cmd.Flags().IntVar(&amountColFlag, "amount-col", -1, "override the amount column")
	cmd.Flags().IntVar(&refColFlag, "reference-col", -1, "override the reference column")
	cmd.Flags().IntVar(&balanceColFlag, "balance-col", -1, "override the booked balance column")
}

// applyMappingFlags overlays explicit column flags on the seeded mapping.
func applyMappingFlags(m *mapper.FieldMapping) {
	if dateColFlag >= 0 {
		m.Set(mapper.FieldAccountingDate, dateColFlag)
	}
	if amountColFlag >= 0 {
		m.Set(mapper.FieldAmount, amountColFlag)
	}
	if refColFlag >= 0 {
		m.Set(mapper.FieldReference, refColFlag)
	}
	if balanceColFlag >= 0 {
		m.Set(mapper.FieldBookedBalance, balanceColFlag)
	}
}

func runPreview(cmd *cobra.Command, args []string) error {
	ws, err := workspaceID()
	if err != nil {
		return err
	}
	data, err := readFile(args[0])
	if err != nil {
		return err
	}

	deps, err := InitDependencies(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	if sniffer.Detect(data).Kind == sniffer.KindSIE {
		preview, err := deps.ImportService.PreviewSIE(data)
		if err != nil {
			return err
		}
		printSIEPreview(preview)
		return nil
	}

	analysis, err := deps.ImportService.Analyze(cmd.Context(), ws, data)
	if err != nil {
		return err
	}
	applyMappingFlags(&analysis.Mapping)

	preview := deps.ImportService.Preview(analysis.Table, analysis.Mapping, analysis.DecimalSeparator)
	printPreview(preview)
	return nil
}

func printPreview(p *service.Preview) {
	fmt.Printf("rows: %d  valid: %d  invalid: %d  duplicates: %d  selected: %d\n\n",
		p.Stats.Total, p.Stats.Valid, p.Stats.Invalid, p.Stats.Duplicates, p.Stats.Selected)

	for i := range p.Candidates {
		c := &p.Candidates[i]
		switch {
		case len(c.Errors) > 0:
			fmt.Printf("  row %d: INVALID (%s)\n", c.RowIndex, strings.Join(c.Errors, "; "))
		case c.IsDuplicate:
			fmt.Printf("  row %d: duplicate of row %d\n", c.RowIndex, c.FirstOccurrenceRow)
		default:
			fmt.Printf("  row %d: %s  %s  %q\n", c.RowIndex, c.AccountingDate, c.Amount.StringFixed(2), c.Reference)
		}
	}
}

func printSIEPreview(p *sie.Preview) {
	fmt.Printf("company: %s", p.CompanyName)
	if p.OrgNumber != "" {
		fmt.Printf(" (%s)", p.OrgNumber)
	}
	fmt.Println()
	if p.FiscalYear != nil {
		fmt.Printf("fiscal year: %s .. %s\n", p.FiscalYear.Start, p.FiscalYear.End)
	}
	fmt.Printf("verifications: %d  selected: %d\n\n", len(p.Candidates), p.SelectedCount())

	for i := range p.Candidates {
		c := &p.Candidates[i]
		if c.Balanced {
			fmt.Printf("  %s %s %q (%d lines)\n", c.SourceID(), c.Date, c.Description, len(c.Lines))
		} else {
			fmt.Printf("  %s %s %q UNBALANCED by %s, excluded\n",
				c.SourceID(), c.Date, c.Description, c.Imbalance.StringFixed(2))
		}
	}

	for _, e := range p.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	for _, w := range p.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}
