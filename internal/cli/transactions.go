package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nordbok/nordbok/internal/domain/import/repository"
	"github.com/nordbok/nordbok/pkg/money"
)

var (
	fromFlag   string
	toFlag     string
	searchFlag string
	limitFlag  int
)

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "List committed transactions",
	RunE:  runTransactions,
}

func init() {
	transactionsCmd.Flags().StringVar(&fromFlag, "from", "", "earliest accounting date (YYYY-MM-DD)")
	transactionsCmd.Flags().StringVar(&toFlag, "to", "", "latest accounting date (YYYY-MM-DD)")
	transactionsCmd.Flags().StringVar(&searchFlag, "search", "", "match against the reference")
	transactionsCmd.Flags().IntVar(&limitFlag, "limit", 50, "maximum rows to show")
	rootCmd.AddCommand(transactionsCmd)
}

func runTransactions(cmd *cobra.Command, args []string) error {
	ws, err := workspaceID()
	if err != nil {
		return err
	}

	filter := repository.TransactionFilter{
		Search: searchFlag,
		Limit:  limitFlag,
	}
	if fromFlag != "" {
		from, err := time.Parse("2006-01-02", fromFlag)
		if err != nil {
			return fmt.Errorf("invalid --from date %q", fromFlag)
		}
		filter.From = &from
	}
	if toFlag != "" {
		to, err := time.Parse("2006-01-02", toFlag)
		if err != nil {
			return fmt.Errorf("invalid --to date %q", toFlag)
		}
		filter.To = &to
	}

	deps, err := InitDependencies(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	txs, err := deps.ImportService.ListTransactions(cmd.Context(), ws, filter)
	if err != nil {
		return err
	}

	for _, t := range txs {
		amount := money.DecimalFromMinor(t.AmountMinor, t.CurrencyCode)
		fmt.Printf("%s  %12s %s  %s\n",
			t.AccountingDate.Format("2006-01-02"), amount.StringFixed(2), t.CurrencyCode, t.Reference)
	}
	fmt.Printf("%d transactions\n", len(txs))
	return nil
}
