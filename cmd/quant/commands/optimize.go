package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// optimizeCmd represents the optimize command
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Sweep (top_k, voting_days) for the best final equity",
	Long: `Runs the full optimization pipeline end to end.

Stages: fetch universe, download history, generate missing prediction
sets, build the realized-returns table, then simulate every
(top_k, voting_days) combination and report the best one. Ties resolve
to the smallest top_k, then the smallest voting_days.

Flags:
  --params   YAML file with per-instrument window overrides

Example:
  go run ./cmd/quant optimize
  go run ./cmd/quant optimize --params params.yaml`,
	RunE: runOptimize,
}

var optimizeParams string

func init() {
	rootCmd.AddCommand(optimizeCmd)

	// Flags
	optimizeCmd.Flags().StringVar(&optimizeParams, "params", "", "per-instrument window overrides (YAML)")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	app, err := initApp(true)
	if err != nil {
		return err
	}
	defer app.close()

	windows, err := loadWindows(app, optimizeParams)
	if err != nil {
		return err
	}

	t := app.cfg.Trading
	fmt.Printf("Sweeping top_k [%d..%d] x voting_days [%d..%d], %d workers\n\n",
		t.TopKMin, t.TopKMax, t.VotingMin, t.VotingMax, t.Workers)

	sweep := app.newSweep(windows)
	result, err := sweep.Run(cmd.Context(), func(done, total int) {
		PrintProgress("Optimize", "grid cell evaluated", done, total)
	})
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	fmt.Println()
	PrintSuccess("Optimization completed")
	PrintDoubleSeparator()
	fmt.Println()

	PrintKeyValue("Combinations", fmt.Sprintf("%d", result.Cells), 14)
	PrintKeyValue("Best top_k", fmt.Sprintf("%d", result.Best.TopK), 14)
	PrintKeyValue("Best voting", fmt.Sprintf("%d days", result.Best.VotingDays), 14)
	PrintKeyValue("Final Equity", fmt.Sprintf("%.2f", result.Best.FinalEquity), 14)
	fmt.Println()

	// Final equity grid, top_k down the rows
	header := []string{"top_k"}
	widths := []int{6}
	for _, v := range result.VotingValues {
		header = append(header, fmt.Sprintf("v=%d", v))
		widths = append(widths, 8)
	}
	PrintTableHeader(header, widths)
	for i, topK := range result.TopKValues {
		row := []string{fmt.Sprintf("%d", topK)}
		for j := range result.VotingValues {
			row = append(row, fmt.Sprintf("%.2f", result.Grid[i][j]))
		}
		PrintTableRow(row, widths)
	}
	fmt.Println()

	return nil
}
