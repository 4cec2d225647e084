package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/driver"
	"github.com/melih-ucgun/integra/internal/fleet"
	"github.com/melih-ucgun/integra/internal/history"
	"github.com/melih-ucgun/integra/internal/logsink"
	"github.com/melih-ucgun/integra/internal/transport"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the newest package to the selected devices",
	Run: func(cmd *cobra.Command, args []string) {
		if !runDeploy(cmd) {
			os.Exit(1)
		}
	},
}

// runDeploy runs one batch and reports whether every device succeeded.
func runDeploy(cmd *cobra.Command) bool {
	cfg, err := loadConfig()
	if err != nil {
		pterm.Error.Println(err)
		return false
	}
	reg, err := loadDevices(cmd, cfg)
	if err != nil {
		pterm.Error.Printf("Failed to load devices: %v\n", err)
		return false
	}
	for _, r := range reg.Rejected {
		pterm.Warning.Printf("device #%d %q skipped: %s\n", r.Index+1, r.Name, r.Reason)
	}

	// Device lines reach slog only at --log-level info or lower.
	sink := logsink.New(logsink.Console(os.Stdout), logsink.Slog(slog.Default()))
	if logFile, _ := cmd.Flags().GetString("log-file"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			pterm.Error.Printf("Failed to open log file: %v\n", err)
			return false
		}
		defer f.Close()
		sink.Add(logsink.File(f))
	}

	var recorder fleet.Recorder
	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			pterm.Warning.Printf("History disabled: %v\n", err)
		} else {
			defer store.Close()
			recorder = store
		}
	}

	secrets := secretStore(cfg)
	worker := &fleet.Worker{
		Catalog: newCatalog(cfg, secrets),
		Drivers: driver.NewRegistry(cfg),
		Config:  cfg,
		Secrets: secrets,
		Runner:  transport.NewLocalRunner(),
		Dial:    driver.DefaultDialers(),
		Sink:    sink,
	}
	foreman := fleet.NewForeman(worker, sink, fleet.Options{
		PoolSize:       cfg.Concurrency,
		ShutdownWindow: time.Duration(cfg.ShutdownWindow),
		Recorder:       recorder,
	})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			pterm.Warning.Println("Interrupt received, stopping the batch ...")
			foreman.StopBatch()
		case <-done:
		}
	}()

	report, err := foreman.StartBatch(context.Background(), reg.Devices)
	close(done)
	if err != nil {
		pterm.Error.Println(err)
		return false
	}
	if len(report.Outcomes) == 0 {
		pterm.Info.Println("No devices selected.")
		return true
	}

	printReport(report)
	return report.OK()
}

func printReport(report fleet.Report) {
	pterm.DefaultSection.Printf("Batch %s %s", report.ID, report.State)

	tableData := [][]string{{"Device", "Status", "Duration", "Error"}}
	for _, o := range report.Outcomes {
		style := pterm.NewStyle(pterm.FgGreen)
		switch o.Status {
		case core.StatusFailed:
			style = pterm.NewStyle(pterm.FgRed)
		case core.StatusCancelled, core.StatusTerminated:
			style = pterm.NewStyle(pterm.FgYellow)
		}
		msg := ""
		if o.Err != nil {
			msg = o.Err.Error()
		}
		tableData = append(tableData, []string{
			o.Device,
			style.Sprint(o.Status),
			o.Finished.Sub(o.Started).Round(time.Second).String(),
			msg,
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()

	summary := fmt.Sprintf("%d succeeded, %d failed, %d cancelled, %d terminated",
		report.Count(core.StatusSucceeded), report.Count(core.StatusFailed),
		report.Count(core.StatusCancelled), report.Count(core.StatusTerminated))
	if report.OK() {
		pterm.Success.Println(summary)
	} else {
		pterm.Error.Println(summary)
	}
}

func init() {
	addDeviceFlags(deployCmd)
	deployCmd.Flags().StringSlice("device", nil, "deploy only these devices (repeatable)")
	deployCmd.Flags().String("log-file", "", "append device log lines to this file")
	rootCmd.AddCommand(deployCmd)
}
