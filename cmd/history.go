package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View past deployment batches",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			pterm.Error.Println(err)
			os.Exit(1)
		}
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			pterm.Error.Println("Failed to open history:", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		if runID, _ := cmd.Flags().GetString("run"); runID != "" {
			showRun(ctx, cmd, store, runID)
			return
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := store.Runs(ctx, limit)
		if err != nil {
			pterm.Error.Println("Failed to load history:", err)
			return
		}
		if len(runs) == 0 {
			pterm.Info.Println("No history found.")
			return
		}

		pterm.DefaultHeader.Println("Deployment History")

		tableData := [][]string{{"ID", "Date", "State", "Devices", "Succeeded"}}
		for _, r := range runs {
			stateStyle := pterm.NewStyle(pterm.FgGreen)
			if r.State == "interrupted" {
				stateStyle = pterm.NewStyle(pterm.FgYellow)
			} else if r.Succeeded < r.Total {
				stateStyle = pterm.NewStyle(pterm.FgRed)
			}
			tableData = append(tableData, []string{
				r.ID,
				r.Started.Format(time.DateTime),
				stateStyle.Sprint(r.State),
				fmt.Sprintf("%d", r.Total),
				fmt.Sprintf("%d", r.Succeeded),
			})
		}
		pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	},
}

func showRun(ctx context.Context, cmd *cobra.Command, store *history.Store, runID string) {
	outcomes, err := store.Outcomes(ctx, runID)
	if err != nil {
		pterm.Error.Println(err)
		return
	}
	pterm.DefaultHeader.Printf("Run %s\n", runID)

	tableData := [][]string{{"Device", "Status", "Duration", "Error"}}
	for _, o := range outcomes {
		style := pterm.NewStyle(pterm.FgGreen)
		if o.Status != core.StatusSucceeded {
			style = pterm.NewStyle(pterm.FgRed)
		}
		tableData = append(tableData, []string{
			o.Device,
			style.Sprint(o.Status),
			o.Finished.Sub(o.Started).Round(time.Second).String(),
			o.Error,
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()

	if verbose, _ := cmd.Flags().GetBool("log"); verbose {
		for _, o := range outcomes {
			prefix := pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprintf("[%s] ", o.Device)
			for _, line := range o.Lines {
				pterm.Println(prefix + line)
			}
		}
	}
}

func init() {
	historyCmd.Flags().String("run", "", "show the device outcomes of one run")
	historyCmd.Flags().IntP("limit", "n", 20, "number of runs to list")
	historyCmd.Flags().Bool("log", false, "with --run, print the recorded device log")
	rootCmd.AddCommand(historyCmd)
}
