package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hfujita/wattsync/internal/statistics"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Show persistent warnings from scheduled runs",
	Long: `Lists the open issues raised by failed scheduled fetches. Each series
carries at most one issue; repeated failures bump its occurrence count
instead of adding rows.`,
	RunE: runIssues,
}

var issuesResolveCmd = &cobra.Command{
	Use:   "resolve [account]",
	Short: "Clear the open issue for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssuesResolve,
}

func init() {
	issuesCmd.AddCommand(issuesResolveCmd)
	rootCmd.AddCommand(issuesCmd)
}

func runIssues(cmd *cobra.Command, args []string) error {
	conn, _, registry, err := openStores()
	if err != nil {
		return err
	}
	defer conn.Close()

	open, err := registry.List(context.Background())
	if err != nil {
		return fmt.Errorf("listing issues: %w", err)
	}

	if len(open) == 0 {
		fmt.Println("No open issues")
		return nil
	}

	for _, issue := range open {
		fmt.Printf("⚠ %s\n", issue.SeriesID)
		fmt.Printf("  %s\n", issue.Message)
		fmt.Printf("  first seen %s, last seen %s, %d occurrence(s)\n",
			issue.FirstSeen.Format("2006-01-02 15:04"),
			issue.LastSeen.Format("2006-01-02 15:04"),
			issue.Occurrences,
		)
	}

	return nil
}

func runIssuesResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	account, err := cfg.Account(args[0])
	if err != nil {
		return err
	}

	conn, _, registry, err := openStores()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := registry.Resolve(context.Background(), statistics.SeriesID(account.Name)); err != nil {
		return err
	}

	fmt.Printf("✓ Cleared issue for %s\n", account.Name)
	return nil
}
