// Package scheduler runs the daily ingestion trigger for each
// configured account and owns the per-account lifecycle, so a schedule
// can never be registered twice or leak past account teardown.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hfujita/wattsync/internal/scraper"
)

// Scheduler wraps a seconds-resolution cron runner keyed by account.
// At most one subscription exists per account: scheduling an account
// again replaces the previous entry instead of stacking a second one.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger

	mu   sync.Mutex
	subs map[string]*Subscription
}

// Subscription is a handle to one account's daily schedule.
type Subscription struct {
	account string
	entry   cron.EntryID
	sched   *Scheduler
}

// New creates a stopped scheduler; call Start once accounts are bound.
func New(log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log,
		subs: make(map[string]*Subscription),
	}
}

// Start begins dispatching scheduled runs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels dispatching and blocks until any in-flight run returns.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Schedule registers job to run daily at triggerTime (local wall clock,
// "HH:MM:SS"). If the account already has a subscription it is removed
// first, so re-registering cannot leak the old entry.
func (s *Scheduler) Schedule(account, triggerTime string, job func()) (*Subscription, error) {
	spec, err := dailySpec(triggerTime)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.subs[account]; ok {
		s.log.Debug("replacing existing schedule", zap.String("account", account))
		s.cron.Remove(old.entry)
		delete(s.subs, account)
	}

	entry, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return nil, fmt.Errorf("registering schedule for %q: %w", account, err)
	}

	sub := &Subscription{account: account, entry: entry, sched: s}
	s.subs[account] = sub

	s.log.Info("scheduled daily fetch",
		zap.String("account", account),
		zap.String("trigger_time", triggerTime),
	)

	return sub, nil
}

// Accounts returns the accounts with an active subscription.
func (s *Scheduler) Accounts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.subs))
	for name := range s.subs {
		names = append(names, name)
	}
	return names
}

// Cancel removes the subscription from the scheduler. It is idempotent,
// and a stale handle that has already been replaced cancels nothing.
func (sub *Subscription) Cancel() {
	s := sub.sched
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.subs[sub.account]; ok && current == sub {
		s.cron.Remove(sub.entry)
		delete(s.subs, sub.account)
		s.log.Info("cancelled daily fetch schedule", zap.String("account", sub.account))
	}
}

// AccountContext owns the live handles for one configured account: the
// scraper client plus the schedule subscription.
type AccountContext struct {
	Name   string
	Client *scraper.Client

	sub *Subscription
}

// Bind creates an account context with its daily schedule registered.
func (s *Scheduler) Bind(name string, client *scraper.Client, triggerTime string, job func()) (*AccountContext, error) {
	sub, err := s.Schedule(name, triggerTime, job)
	if err != nil {
		return nil, err
	}
	return &AccountContext{Name: name, Client: client, sub: sub}, nil
}

// Close unsubscribes the account's schedule. Callers defer it so the
// subscription is released even when teardown is reached on an error
// path. Closing twice is safe.
func (a *AccountContext) Close() {
	if a.sub != nil {
		a.sub.Cancel()
	}
}

// dailySpec converts "HH:MM:SS" into a seconds-enabled cron expression
// firing once per day.
func dailySpec(triggerTime string) (string, error) {
	t, err := time.Parse("15:04:05", triggerTime)
	if err != nil {
		return "", fmt.Errorf("invalid trigger time %q (want HH:MM:SS): %w", triggerTime, err)
	}
	return fmt.Sprintf("%d %d %d * * *", t.Second(), t.Minute(), t.Hour()), nil
}
