package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hfujita/wattsync/internal/ingest"
	"github.com/hfujita/wattsync/internal/publisher"
	"github.com/hfujita/wattsync/internal/scheduler"
	"github.com/hfujita/wattsync/internal/scraper"
	"github.com/hfujita/wattsync/internal/statistics"
)

// Upper bound for one scheduled cycle: the scraper alone may take up to
// a minute, plus store and MQTT round trips.
const runTimeout = 5 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily fetch schedule for all configured accounts",
	Long: `Registers one daily schedule per configured account and keeps running
until interrupted. Each scheduled run fetches yesterday's usage,
reconciles it into the statistics store, and publishes newly committed
points over MQTT when enabled. A failed fetch raises a persistent
issue (see 'wattsync issues').`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if len(cfg.Accounts) == 0 {
		return fmt.Errorf("no accounts configured in %s", getConfigPath())
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	conn, store, registry, err := openStores()
	if err != nil {
		return err
	}
	defer conn.Close()

	var pub *publisher.Publisher
	if cfg.MQTT.Enabled {
		pub, err = publisher.New(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("setting up MQTT publisher: %w", err)
		}
		defer pub.Close()
	}

	sched := scheduler.New(logger)

	// Account contexts are closed in reverse on the way out, schedule
	// subscription first, before conn and pub are torn down above.
	var accounts []*scheduler.AccountContext
	defer func() {
		for _, ac := range accounts {
			ac.Close()
		}
	}()

	for _, account := range cfg.Accounts {
		if err := account.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		client := scraper.New(account.GetBaseURL(), account.Username, account.Password, account.CustomerNumber)
		pipeline := ingest.New(client, store, registry, logger)

		name := account.Name
		seriesID := statistics.SeriesID(name)
		displayName := account.GetDisplayName()

		job := func() {
			ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
			defer cancel()

			outcome, err := pipeline.Run(ctx, ingest.Params{
				SeriesID:    seriesID,
				DisplayName: displayName,
				TargetDate:  time.Now().AddDate(0, 0, -1),
				Unattended:  true,
			})
			if err != nil {
				logger.Error("scheduled run failed", zap.String("account", name), zap.Error(err))
				return
			}

			if pub != nil && outcome.Committed > 0 {
				published, err := publishBacklog(ctx, store, pub, name, seriesID)
				if err != nil {
					logger.Error("publishing committed points", zap.String("account", name), zap.Error(err))
					return
				}
				logger.Info("published committed points", zap.String("account", name), zap.Int("points", published))
			}
		}

		ac, err := sched.Bind(name, client, account.GetTriggerTime(), job)
		if err != nil {
			return err
		}
		accounts = append(accounts, ac)
	}

	sched.Start()
	defer sched.Stop()

	logger.Info("wattsync running",
		zap.Int("accounts", len(accounts)),
		zap.String("database", getDBPath()),
		zap.Bool("mqtt", pub != nil),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	return nil
}
