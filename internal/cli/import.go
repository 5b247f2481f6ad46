package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nordbok/nordbok/internal/domain/import/service"
	"github.com/nordbok/nordbok/internal/domain/import/sniffer"
)

var (
	includeDuplicatesFlag bool
	rememberMappingFlag   bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Commit a file's valid rows to the ledger",
	Long: `import runs the full pipeline: analyze, validate, deduplicate and
commit. Only valid rows are committed; rows already stored in the workspace
are skipped by the database.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	addMappingFlags(importCmd)
	importCmd.Flags().BoolVar(&includeDuplicatesFlag, "include-duplicates", false,
		"also submit rows flagged as duplicates within the file")
	importCmd.Flags().BoolVar(&rememberMappingFlag, "remember", false,
		"store the confirmed column mapping for this header set")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ws, err := workspaceID()
	if err != nil {
		return err
	}
	data, err := readFile(args[0])
	if err != nil {
		return err
	}
	filename := filepath.Base(args[0])

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
		summary, err := deps.ImportService.CommitSIE(cmd.Context(), ws, filename, preview, nil)
		if err != nil {
			return err
		}
		fmt.Printf("batch %s: %d verifications imported, %d skipped, %d rejected\n",
			summary.BatchID, summary.Imported, summary.Skipped, summary.Rejected)
		if summary.Rejected > 0 {
			fmt.Println("rejected verifications do not balance and can never be imported")
		}
		return nil
	}

	analysis, err := deps.ImportService.Analyze(cmd.Context(), ws, data)
	if err != nil {
		return err
	}
	applyMappingFlags(&analysis.Mapping)

	preview := deps.ImportService.Preview(analysis.Table, analysis.Mapping, analysis.DecimalSeparator)
	summary, err := deps.ImportService.Commit(cmd.Context(), ws, filename, preview, service.CommitOptions{
		IncludeDuplicates: includeDuplicatesFlag,
	})
	if err != nil {
		return err
	}

	if rememberMappingFlag {
		if err := deps.ImportService.ConfirmMapping(cmd.Context(), ws, analysis.HeaderFingerprint, analysis.Mapping); err != nil {
			return fmt.Errorf("import succeeded but saving the mapping failed: %w", err)
		}
		fmt.Println("column mapping remembered for this header set")
	}

	fmt.Printf("batch %s: %d rows imported, %d skipped, %d rejected\n",
		summary.BatchID, summary.Imported, summary.Skipped, summary.Rejected)
	return nil
}
