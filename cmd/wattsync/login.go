package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hfujita/wattsync/internal/scraper"
)

var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Verify an account's credentials against the scraper",
	Long: `Calls the scraper addon's login endpoint with the stored credentials.
A rejected login and an unreachable scraper are reported separately so
you know whether to fix the credentials or the network.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	account, err := cfg.Account(args[0])
	if err != nil {
		return err
	}
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	client := scraper.New(account.GetBaseURL(), account.Username, account.Password, account.CustomerNumber)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("Verifying credentials for %s against %s...\n", account.Name, account.GetBaseURL())

	ok, err := client.VerifyCredentials(ctx)
	if err != nil {
		return fmt.Errorf("could not reach the scraper (check base_url and that the addon is running): %w", err)
	}
	if !ok {
		return fmt.Errorf("the scraper rejected the credentials for account %q (check username, password and customer_number)", account.Name)
	}

	fmt.Println("✓ Credentials verified")
	return nil
}
