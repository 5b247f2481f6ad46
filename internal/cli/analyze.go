package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nordbok/nordbok/internal/domain/import/mapper"
	"github.com/nordbok/nordbok/internal/domain/import/service"
	"github.com/nordbok/nordbok/internal/domain/import/sniffer"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Detect a file's format and suggest a column mapping",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
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

	analysis, err := deps.ImportService.Analyze(cmd.Context(), ws, data)
	if err != nil {
		return err
	}

	if analysis.Format.Kind == sniffer.KindSIE {
		fmt.Println("format: SIE accounting file")
		fmt.Println("run 'nordbok preview' to inspect its verifications")
		return nil
	}

	fmt.Printf("format: delimited (%s, separator %q)\n",
		analysis.Format.Encoding, string(analysis.Format.Separator))
	fmt.Printf("decimal separator: %q\n", rune(analysis.DecimalSeparator))
	fmt.Printf("rows: %d\n", len(analysis.Table.Rows))
	fmt.Printf("mapping source: %s\n", analysis.Source)
	fmt.Println()

	printMapping(analysis)
	return nil
}

func printMapping(analysis *service.Analysis) {
	for _, field := range mapper.Fields {
		col := analysis.Mapping.Column(field)
		if col < 0 {
			fmt.Printf("  %-16s (unmapped)\n", field)
			continue
		}
		header := ""
		if col < len(analysis.Table.Headers) {
			header = analysis.Table.Headers[col]
		}
		if guess, ok := analysis.Suggestion.Fields[field]; ok && guess.Column == col {
			fmt.Printf("  %-16s column %d %q (confidence %.2f)\n", field, col, header, guess.Confidence)
		} else {
			fmt.Printf("  %-16s column %d %q\n", field, col, header)
		}
	}
}
