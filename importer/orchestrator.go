package importer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"autoszczech/config"
	"autoszczech/identity"
	"autoszczech/models"
	"autoszczech/transport"
)

// Catalog is the persistent car catalog as the orchestrator sees it.
type Catalog interface {
	CountCars(ctx context.Context) (int, error)
	Upsert(ctx context.Context, seed *models.AuctionSeed) (created bool, err error)
}

// Ledger is the per-file bookkeeping store.
type Ledger interface {
	GetJob(filename string) (*models.ImportJob, error)
	UpsertJob(job *models.ImportJob) error
	StartRun(run *models.ImportRun) (int64, error)
	FinishRun(run *models.ImportRun) error
}

// Orchestrator drives one full import cycle: list remote files, detect
// changes, normalize, pipeline images, persist, record the ledger entry.
// Cycles never overlap; a trigger during a running cycle gets the previous
// report back.
type Orchestrator struct {
	cfg     *config.Config
	files   transport.Client
	parser  *Parser
	images  *ImagePipeline
	catalog Catalog
	ledger  Ledger

	mu         sync.Mutex
	running    bool
	paused     bool
	lastReport *models.Report
}

func NewOrchestrator(cfg *config.Config, files transport.Client, parser *Parser, images *ImagePipeline, catalog Catalog, ledger Ledger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		files:   files,
		parser:  parser,
		images:  images,
		catalog: catalog,
		ledger:  ledger,
	}
}

// RunOnce executes one import cycle. When a cycle is already in flight it
// returns immediately with running=true and the last known report; nothing is
// queued.
func (o *Orchestrator) RunOnce(ctx context.Context) (bool, *models.Report) {
	o.mu.Lock()
	if o.running {
		stale := o.lastReport
		o.mu.Unlock()
		return true, stale
	}
	o.running = true
	o.mu.Unlock()

	report := o.runCycle(ctx)

	o.mu.Lock()
	o.running = false
	o.lastReport = report
	o.mu.Unlock()

	return false, report
}

// Status reports whether a cycle is in flight and the last finished report.
func (o *Orchestrator) Status() (bool, *models.Report) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running, o.lastReport
}

func (o *Orchestrator) Pause() {
	o.mu.Lock()
	o.paused = true
	o.mu.Unlock()
	log.Println("Importer paused")
}

func (o *Orchestrator) Resume() {
	o.mu.Lock()
	o.paused = false
	o.mu.Unlock()
	log.Println("Importer resumed")
}

func (o *Orchestrator) IsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// HandleCommand executes one operator command from the queue.
func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdImportNow:
		if running, _ := o.RunOnce(ctx); running {
			log.Println("Import already running, command ignored")
		}
		return nil
	case models.CmdPause:
		o.Pause()
	case models.CmdResume:
		o.Resume()
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
	return nil
}

func (o *Orchestrator) runCycle(ctx context.Context) *models.Report {
	report := &models.Report{ID: uuid.New(), StartedAt: time.Now()}

	if o.IsPaused() {
		log.Println("Importer is paused, skipping cycle")
		finishReport(report)
		return report
	}

	run := &models.ImportRun{StartedAt: report.StartedAt}
	runID, err := o.ledger.StartRun(run)
	if err != nil {
		log.Printf("Warning: failed to record run start: %v", err)
	}
	run.ID = runID

	defer func() {
		finishReport(report)
		run.FinishedAt = report.FinishedAt
		run.FilesSeen = report.FilesSeen
		run.FilesDone = report.FilesProcessed
		run.Added = report.Added
		run.Updated = report.Updated
		run.Skipped = report.Skipped
		run.ErrorsCount = len(report.Errors)
		if err := o.ledger.FinishRun(run); err != nil {
			log.Printf("Warning: failed to record run finish: %v", err)
		}
	}()

	// Force mode is decided once per cycle: an empty catalog means every
	// file is reprocessed regardless of stored checksums.
	force := false
	count, err := o.catalog.CountCars(ctx)
	if err != nil {
		log.Printf("Warning: catalog count failed, force mode off: %v", err)
	} else {
		force = count == 0
	}

	names, err := o.files.List(ctx, o.cfg.FTP.JSONDir)
	if err != nil {
		log.Printf("Listing %s failed: %v", o.cfg.FTP.JSONDir, err)
		report.AddError("", err.Error())
		return report
	}

	log.Printf("Cycle %s: %d remote files, force=%v", report.ID, len(names), force)

	for _, name := range names {
		if !strings.HasSuffix(strings.ToLower(name), ".json") {
			continue
		}
		report.FilesSeen++

		if err := o.processFile(ctx, name, force, report); err != nil {
			log.Printf("[%s] %v", name, err)
			report.AddError(name, err.Error())

			// Error ledger entry carries no checksum so the file is
			// naturally retried next cycle.
			ledgerErr := o.ledger.UpsertJob(&models.ImportJob{
				Filename:    name,
				Errors:      []string{err.Error()},
				ProcessedAt: time.Now(),
			})
			if ledgerErr != nil {
				log.Printf("[%s] ledger write failed: %v", name, ledgerErr)
			}
		}
	}

	log.Printf("Cycle %s done: %d/%d files, added=%d updated=%d skipped=%d errors=%d",
		report.ID, report.FilesProcessed, report.FilesSeen,
		report.Added, report.Updated, report.Skipped, len(report.Errors))

	return report
}

func (o *Orchestrator) processFile(ctx context.Context, name string, force bool, report *models.Report) error {
	data, err := o.files.Fetch(ctx, o.cfg.FTP.JSONDir, name)
	if err != nil {
		return err
	}

	checksum := identity.Checksum(data)

	previous, err := o.ledger.GetJob(name)
	if err != nil {
		log.Printf("[%s] ledger lookup failed: %v", name, err)
	}
	previousChecksum := ""
	if previous != nil {
		previousChecksum = previous.Checksum
	}

	if identity.ShouldSkip(previousChecksum, checksum, force) {
		log.Printf("[%s] unchanged, skipping", name)
		return nil
	}

	result := o.parser.Parse(data, name)

	job := &models.ImportJob{
		Filename:    name,
		Checksum:    checksum,
		Total:       result.Total,
		Errors:      append([]string(nil), result.Errors...),
		ProcessedAt: time.Now(),
	}
	job.Skipped = len(result.Skipped)
	parseErrors := len(job.Errors)

	for _, seed := range result.Seeds {
		ic := ImageContext{Checksum: checksum, Provider: seed.Provider, Filename: name}
		if err := o.images.Normalize(ctx, seed, ic); err != nil {
			job.Errors = append(job.Errors, fmt.Sprintf("%s: images: %v", seed.DisplayID, err))
			continue
		}

		if seed.Skip {
			job.Skipped++
			result.Skipped = append(result.Skipped, models.SkippedRecord{
				DisplayID: seed.DisplayID,
				Reason:    seed.SkipReason,
			})
			log.Printf("[%s] %s skipped: %s", name, seed.DisplayID, seed.SkipReason)
			continue
		}

		created, err := o.catalog.Upsert(ctx, seed)
		if err != nil {
			job.Errors = append(job.Errors, fmt.Sprintf("%s: %v", seed.DisplayID, err))
			continue
		}
		if created {
			job.Added++
		} else {
			job.Updated++
		}
	}

	if len(job.Errors) > parseErrors {
		// Image and persist failures are transient. Writing the entry
		// without a checksum keeps the old or absent fingerprint in the
		// ledger, so the file is retried next cycle. Parse errors are
		// deterministic and advance the checksum with everyone else.
		job.Checksum = ""
	}

	if err := o.ledger.UpsertJob(job); err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}

	report.FilesProcessed++
	report.Added += job.Added
	report.Updated += job.Updated
	report.Skipped += job.Skipped
	report.SkippedRecords = append(report.SkippedRecords, result.Skipped...)
	for _, msg := range job.Errors {
		report.AddError(name, msg)
	}

	log.Printf("[%s] total=%d added=%d updated=%d skipped=%d errors=%d",
		name, job.Total, job.Added, job.Updated, job.Skipped, len(job.Errors))
	return nil
}

func finishReport(r *models.Report) {
	now := time.Now()
	r.FinishedAt = &now
}
