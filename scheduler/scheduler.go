package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"autoszczech/config"
	"autoszczech/importer"
	"autoszczech/storage"
)

// Scheduler drives the importer: a cron expression or fixed interval triggers
// cycles, and a SQLite command queue lets an external control surface trigger
// or pause them on demand. A tick that lands while a cycle is running is a
// no-op (the orchestrator hands back the stale report).
type Scheduler struct {
	cfg          *config.Config
	orchestrator *importer.Orchestrator
	store        *storage.SQLiteStore
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
}

func New(cfg *config.Config, orchestrator *importer.Orchestrator, store *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        store,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	tick := func() {
		if running, _ := s.orchestrator.RunOnce(ctx); running {
			log.Println("Scheduled tick skipped: cycle already running")
		}
	}

	switch {
	case s.cfg.Importer.Cron != "":
		log.Printf("Starting scheduler with cron: %s", s.cfg.Importer.Cron)
		if _, err := s.cron.AddFunc(s.cfg.Importer.Cron, tick); err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	case s.cfg.Importer.Interval > 0:
		log.Printf("Starting scheduler with interval: %s", s.cfg.Importer.Interval)
		s.ticker = time.NewTicker(s.cfg.Importer.Interval)
		go func() {
			// One cycle immediately, then on the interval.
			tick()
			for {
				select {
				case <-s.ticker.C:
					tick()
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	default:
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

// Stop halts the timers. An in-flight cycle is not interrupted.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) TriggerNow(ctx context.Context) (bool, error) {
	running, _ := s.orchestrator.RunOnce(ctx)
	return running, nil
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.store.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.orchestrator.HandleCommand(ctx, &cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
