package cmd

import (
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices and their resolved driver family",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			pterm.Error.Println(err)
			os.Exit(1)
		}
		reg, err := loadDevices(cmd, cfg)
		if err != nil {
			pterm.Error.Printf("Failed to load devices: %v\n", err)
			os.Exit(1)
		}

		if len(reg.Devices) == 0 {
			pterm.Info.Println("No devices found.")
		} else {
			tableData := [][]string{{"Name", "PType", "Family", "Edition", "Address", "Cleanup", "Selected"}}
			for _, d := range reg.Devices {
				selected := ""
				if d.Selected {
					selected = pterm.Green("yes")
				}
				tableData = append(tableData, []string{
					d.Name,
					d.PType,
					reg.Family(d.Name),
					d.Edition,
					d.Addr(),
					strconv.FormatBool(d.Cleanup),
					selected,
				})
			}
			pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
		}

		for _, r := range reg.Rejected {
			pterm.Warning.Printf("device #%d %q rejected: %s\n", r.Index+1, r.Name, r.Reason)
		}
	},
}

func init() {
	addDeviceFlags(devicesCmd)
	rootCmd.AddCommand(devicesCmd)
}
