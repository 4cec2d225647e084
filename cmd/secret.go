package cmd

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/melih-ucgun/integra/internal/credentials"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage device secrets in the OS keyring",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <account>",
	Short: "Store the password or passphrase of an account",
	Long: `Stores a secret in the OS keyring. Accounts are device usernames for
SSH and Windows hosts, device names for webOS debug passphrases, and the key
alias for the Android signing key.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			pterm.Error.Println(err)
			os.Exit(1)
		}

		secret, err := pterm.DefaultInteractiveTextInput.
			WithMask("*").
			Show("Secret for " + args[0])
		if err != nil {
			pterm.Error.Println(err)
			os.Exit(1)
		}
		again, err := pterm.DefaultInteractiveTextInput.
			WithMask("*").
			Show("Repeat")
		if err != nil {
			pterm.Error.Println(err)
			os.Exit(1)
		}
		if secret != again {
			pterm.Error.Println("Secrets do not match.")
			os.Exit(1)
		}

		if err := credentials.NewKeyring(cfg.KeyringService).Set(args[0], secret); err != nil {
			pterm.Error.Printf("Failed to store secret: %v\n", err)
			os.Exit(1)
		}
		pterm.Success.Printf("Secret for %s stored.\n", args[0])
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd)
	rootCmd.AddCommand(secretCmd)
}
