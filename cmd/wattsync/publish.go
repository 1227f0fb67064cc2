package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hfujita/wattsync/internal/publisher"
	"github.com/hfujita/wattsync/internal/statistics"
)

var publishAccount string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish committed points to Home Assistant over MQTT",
	Long: `Pushes committed-but-unpublished points to the configured MQTT broker
and marks them published. 'wattsync serve' does this automatically
after each scheduled commit; this command works through any backlog,
for example after the broker was down.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishAccount, "account", "", "only publish this account")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.MQTT.Enabled {
		return fmt.Errorf("MQTT publishing is not enabled in config")
	}

	var accounts []string
	if publishAccount != "" {
		account, err := cfg.Account(publishAccount)
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

	pub, err := publisher.New(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("setting up MQTT publisher: %w", err)
	}
	defer pub.Close()

	ctx := context.Background()

	for _, name := range accounts {
		published, err := publishBacklog(ctx, store, pub, name, statistics.SeriesID(name))
		if err != nil {
			return fmt.Errorf("publishing for %s: %w", name, err)
		}

		if published == 0 {
			fmt.Printf("No unpublished points for %s\n", name)
			continue
		}
		fmt.Printf("✓ Published %d points for %s\n", published, name)
	}

	return nil
}

// publishBacklog pushes every unpublished point of a series and marks
// each one published as it goes, so a broker failure mid-way resumes
// where it left off on the next attempt.
func publishBacklog(ctx context.Context, store *statistics.Store, pub *publisher.Publisher, account, seriesID string) (int, error) {
	points, err := store.ListUnpublished(ctx, seriesID)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, point := range points {
		if err := pub.PublishPoint(account, point); err != nil {
			return published, err
		}
		if err := store.MarkPublished(ctx, seriesID, point.Start); err != nil {
			return published, err
		}
		published++
	}

	return published, nil
}
