package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hfujita/wattsync/internal/statistics"
)

var (
	listAccount string
	listLimit   int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List committed usage points",
	Long:  `Displays committed series points (interval reading and running total) from the database.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listAccount, "account", "", "only show this account")
	listCmd.Flags().IntVar(&listLimit, "limit", 30, "maximum points per account (0 for all)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Determine which accounts to query
	var accounts []string
	if listAccount != "" {
		account, err := cfg.Account(listAccount)
		if err != nil {
			return err
		}
		accounts = append(accounts, account.Name)
	} else {
		for _, a := range cfg.Accounts {
			accounts = append(accounts, a.Name)
		}
	}
	if len(accounts) == 0 {
		return fmt.Errorf("no accounts configured in %s", getConfigPath())
	}

	conn, store, _, err := openStores()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := context.Background()

	for _, name := range accounts {
		points, err := store.ListPoints(ctx, statistics.SeriesID(name), listLimit)
		if err != nil {
			return fmt.Errorf("listing points for %s: %w", name, err)
		}

		if len(points) == 0 {
			fmt.Printf("No data found for %s\n", name)
			continue
		}

		fmt.Printf("\n%s Usage Data:\n", name)
		fmt.Println("------------------------------------------------------")
		fmt.Printf("%-20s  %10s  %12s\n", "Interval Start", "kWh", "Total kWh")
		fmt.Println("------------------------------------------------------")

		for _, p := range points {
			fmt.Printf("%-20s  %10.3f  %12.3f\n", p.Start.Format("2006-01-02 15:04"), p.State, p.Sum)
		}

		fmt.Println("------------------------------------------------------")
		fmt.Printf("%d points, running total %.3f kWh\n", len(points), points[len(points)-1].Sum)
	}

	return nil
}
