package cmd

import (
	"context"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var packagesCmd = &cobra.Command{
	Use:   "packages <device>",
	Short: "Show the catalog candidates for a device, best first",
	Args:  cobra.ExactArgs(1),
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
		dev, ok := reg.Find(args[0])
		if !ok {
			pterm.Error.Printf("Device %q not found\n", args[0])
			os.Exit(1)
		}
		mask, err := cfg.Mask(dev.PType)
		if err != nil {
			pterm.Error.Println(err)
			os.Exit(1)
		}

		cat := newCatalog(cfg, secretStore(cfg))
		found, err := cat.Search(context.Background(), dev, mask)
		if err != nil {
			pterm.Error.Printf("Catalog search failed: %v\n", err)
			os.Exit(1)
		}
		if len(found) == 0 {
			pterm.Warning.Printf("%s not found\n", dev.PType)
			return
		}

		tableData := [][]string{{"#", "Name", "Version", "Edition", "Published"}}
		for i, d := range found {
			published := ""
			if !d.Published.IsZero() {
				published = d.Published.Format("2006-01-02 15:04")
			}
			tableData = append(tableData, []string{pterm.Sprint(i + 1), d.Name, d.Version, d.Edition, published})
		}
		pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	},
}

func init() {
	packagesCmd.Flags().StringP("devices", "d", "devices.yaml", "device list file")
	rootCmd.AddCommand(packagesCmd)
}
