package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melih-ucgun/integra/internal/catalog"
	"github.com/melih-ucgun/integra/internal/config"
	"github.com/melih-ucgun/integra/internal/credentials"
	"github.com/melih-ucgun/integra/internal/inventory"
)

func loadConfig() (*config.Config, error) {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	if path == "" {
		path = config.Locate()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// loadDevices reads the device file and applies the --select and --device
// flags when the command has them.
func loadDevices(cmd *cobra.Command, cfg *config.Config) (*inventory.Registry, error) {
	path, _ := cmd.Flags().GetString("devices")
	if path == "" {
		path = inventory.FileName
	}
	reg, err := inventory.Load(path, cfg)
	if err != nil {
		return nil, err
	}

	if cond, _ := cmd.Flags().GetString("select"); cond != "" {
		if err := reg.Select(cond); err != nil {
			return nil, err
		}
	}
	if names, _ := cmd.Flags().GetStringSlice("device"); len(names) > 0 {
		if err := reg.SelectNames(names...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// secretStore looks secrets up in the OS keyring first, then in the
// age-encrypted secrets file when one is configured.
func secretStore(cfg *config.Config) credentials.Store {
	chain := credentials.Chain{credentials.NewKeyring(cfg.KeyringService)}
	if cfg.SecretsFile != "" {
		chain = append(chain, credentials.NewAgeFile(cfg.SecretsFile, cfg.IdentityFile))
	}
	return chain
}

func newCatalog(cfg *config.Config, secrets credentials.Store) catalog.Catalog {
	if cfg.Catalog == "dir" {
		return catalog.NewDir(cfg.CatalogDir)
	}
	return catalog.NewHTTP(cfg.FileserverURL, cfg.Username, secrets, cfg.DownloadDir)
}

func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("devices", "d", inventory.FileName, "device list file")
	cmd.Flags().StringP("select", "s", "", `selection expression, e.g. family == "android" && cleanup`)
}
