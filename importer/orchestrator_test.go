package importer

import (
	"context"
	"errors"
	"sort"
	"testing"

	"autoszczech/config"
	"autoszczech/models"
)

type fakeFiles struct {
	files   map[string][]byte
	listErr error
	badetch map[string]bool
}

func (f *fakeFiles) List(_ context.Context, _ string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeFiles) Fetch(_ context.Context, _, name string) ([]byte, error) {
	if f.badetch[name] {
		return nil, errors.New("connection refused")
	}
	data, ok := f.files[name]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

type fakeCatalog struct {
	cars      map[string]bool
	upsertErr map[string]bool
}

func (c *fakeCatalog) CountCars(_ context.Context) (int, error) {
	return len(c.cars), nil
}

func (c *fakeCatalog) Upsert(_ context.Context, seed *models.AuctionSeed) (bool, error) {
	if c.upsertErr[seed.DisplayID] {
		return false, errors.New("constraint violation")
	}
	created := !c.cars[seed.DisplayID]
	c.cars[seed.DisplayID] = true
	return created, nil
}

type fakeLedger struct {
	jobs map[string]*models.ImportJob
	runs []*models.ImportRun
}

func (l *fakeLedger) GetJob(filename string) (*models.ImportJob, error) {
	return l.jobs[filename], nil
}

func (l *fakeLedger) UpsertJob(job *models.ImportJob) error {
	// Error entries carry no checksum; keep the stored one so the file is
	// retried against its last good fingerprint.
	if prev, ok := l.jobs[job.Filename]; ok && job.Checksum == "" {
		job.Checksum = prev.Checksum
	}
	l.jobs[job.Filename] = job
	return nil
}

func (l *fakeLedger) StartRun(run *models.ImportRun) (int64, error) {
	l.runs = append(l.runs, run)
	return int64(len(l.runs)), nil
}

func (l *fakeLedger) FinishRun(_ *models.ImportRun) error { return nil }

type testHarness struct {
	orch    *Orchestrator
	files   *fakeFiles
	catalog *fakeCatalog
	ledger  *fakeLedger
	store   *fakeImageStore
	fetcher *fakeImageFetcher
}

func newTestHarness(files map[string][]byte) *testHarness {
	cfg := &config.Config{
		FTP:       config.FTPConfig{JSONDir: "/offers", ImagesDir: "/photos"},
		Importer:  config.ImporterConfig{ImageBaseURL: "/images"},
		Providers: config.DefaultProviders(),
	}

	h := &testHarness{
		files:   &fakeFiles{files: files, badetch: map[string]bool{}},
		catalog: &fakeCatalog{cars: map[string]bool{}, upsertErr: map[string]bool{}},
		ledger:  &fakeLedger{jobs: map[string]*models.ImportJob{}},
		store:   &fakeImageStore{},
		fetcher: &fakeImageFetcher{fail: map[string]bool{}},
	}

	parser := NewParser(cfg.Providers, cfg.Importer.ImageBaseURL, "")
	images := NewImagePipeline(h.fetcher, h.store, cfg.Importer.ImageBaseURL, cfg.Providers)
	h.orch = NewOrchestrator(cfg, h.files, parser, images, h.catalog, h.ledger)
	return h
}

func TestRunOnce_AddsNewRecords(t *testing.T) {
	h := newTestHarness(map[string][]byte{
		"PZU_OFFERS_1.json": []byte(`{"offer_id": "PZU_100", "make": "Opel", "images": ["a.jpg"]}`),
		"PZU_OFFERS_2.json": []byte(`{"offer_id": "PZU_200", "make": "Ford", "images": ["b.jpg"]}`),
		"readme.txt":        []byte(`not a feed`),
	})

	running, report := h.orch.RunOnce(context.Background())
	if running {
		t.Fatalf("expected a fresh cycle")
	}
	if report.FilesSeen != 2 {
		t.Fatalf("expected 2 json files seen, got %d", report.FilesSeen)
	}
	if report.FilesProcessed != 2 {
		t.Fatalf("expected 2 files processed, got %d", report.FilesProcessed)
	}
	if report.Added != 2 || report.Updated != 0 {
		t.Fatalf("expected added=2 updated=0, got added=%d updated=%d", report.Added, report.Updated)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", report.Errors)
	}

	job := h.ledger.jobs["PZU_OFFERS_1.json"]
	if job == nil || job.Checksum == "" {
		t.Fatalf("expected ledger entry with checksum, got %+v", job)
	}
	if job.Total != 1 || job.Added != 1 {
		t.Fatalf("unexpected job counters %+v", job)
	}
	if len(h.ledger.runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(h.ledger.runs))
	}
}

func TestRunOnce_UnchangedFilesSkipped(t *testing.T) {
	h := newTestHarness(map[string][]byte{
		"PZU_OFFERS_1.json": []byte(`{"offer_id": "PZU_100", "make": "Opel", "images": ["a.jpg"]}`),
	})

	_, first := h.orch.RunOnce(context.Background())
	if first.Added != 1 {
		t.Fatalf("first cycle should add, got %+v", first)
	}

	_, second := h.orch.RunOnce(context.Background())
	if second.FilesSeen != 1 {
		t.Fatalf("expected file still listed, got %d", second.FilesSeen)
	}
	if second.FilesProcessed != 0 || second.Added != 0 || second.Updated != 0 {
		t.Fatalf("unchanged file must be skipped, got %+v", second)
	}
}

func TestRunOnce_ChangedFileReprocessed(t *testing.T) {
	files := map[string][]byte{
		"PZU_OFFERS_1.json": []byte(`{"offer_id": "PZU_100", "make": "Opel", "images": ["a.jpg"]}`),
	}
	h := newTestHarness(files)

	h.orch.RunOnce(context.Background())
	files["PZU_OFFERS_1.json"] = []byte(`{"offer_id": "PZU_100", "make": "Opel", "price": 9000, "images": ["a.jpg"]}`)

	_, report := h.orch.RunOnce(context.Background())
	if report.Updated != 1 || report.Added != 0 {
		t.Fatalf("expected updated=1, got %+v", report)
	}
}

func TestRunOnce_EmptyCatalogForcesReprocess(t *testing.T) {
	h := newTestHarness(map[string][]byte{
		"PZU_OFFERS_1.json": []byte(`{"offer_id": "PZU_100", "make": "Opel", "images": ["a.jpg"]}`),
	})

	h.orch.RunOnce(context.Background())
	// Catalog wiped out of band; stored checksums must not block a rebuild.
	h.catalog.cars = map[string]bool{}

	_, report := h.orch.RunOnce(context.Background())
	if report.Added != 1 {
		t.Fatalf("expected forced reprocess to add, got %+v", report)
	}
}

func TestRunOnce_FetchErrorIsolatedPerFile(t *testing.T) {
	h := newTestHarness(map[string][]byte{
		"PZU_OFFERS_1.json": []byte(`{"offer_id": "PZU_100", "make": "Opel", "images": ["a.jpg"]}`),
		"PZU_OFFERS_2.json": []byte(`{"offer_id": "PZU_200", "make": "Ford", "images": ["b.jpg"]}`),
	})
	h.files.badetch["PZU_OFFERS_1.json"] = true

	_, report := h.orch.RunOnce(context.Background())
	if report.Added != 1 {
		t.Fatalf("healthy file must still import, got %+v", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].File != "PZU_OFFERS_1.json" {
		t.Fatalf("unexpected errors %+v", report.Errors)
	}

	// The failed file's ledger entry has no checksum so next cycle retries it.
	job := h.ledger.jobs["PZU_OFFERS_1.json"]
	if job == nil {
		t.Fatalf("expected error ledger entry")
	}
	if job.Checksum != "" {
		t.Fatalf("error entry must not carry a checksum, got %q", job.Checksum)
	}
	if len(job.Errors) != 1 {
		t.Fatalf("expected 1 job error, got %+v", job.Errors)
	}
}

func TestRunOnce_InvalidFileReported(t *testing.T) {
	h := newTestHarness(map[string][]byte{
		"BROKEN_1.json": []byte(`this is not json`),
	})

	_, report := h.orch.RunOnce(context.Background())
	if report.FilesProcessed != 1 {
		t.Fatalf("invalid file still counts as processed, got %+v", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].Message != ErrInvalidFile {
		t.Fatalf("expected %s error, got %+v", ErrInvalidFile, report.Errors)
	}

	// Checksum is still recorded so the broken file is not refetched until
	// it changes.
	job := h.ledger.jobs["BROKEN_1.json"]
	if job == nil || job.Checksum == "" {
		t.Fatalf("expected checksummed ledger entry, got %+v", job)
	}
}

func TestRunOnce_ListErrorAborts(t *testing.T) {
	h := newTestHarness(nil)
	h.files.listErr = errors.New("connection timed out")

	_, report := h.orch.RunOnce(context.Background())
	if report.FilesSeen != 0 {
		t.Fatalf("expected no files seen, got %d", report.FilesSeen)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected listing error in report, got %+v", report.Errors)
	}
	if report.FinishedAt == nil {
		t.Fatalf("report must still be finished")
	}
}

func TestRunOnce_UpsertErrorIsolatedPerRecord(t *testing.T) {
	h := newTestHarness(map[string][]byte{
		"MIXED_1.json": []byte(`[
			{"offer_id": "PZU_100", "make": "Opel", "images": ["a.jpg"]},
			{"offer_id": "PZU_200", "make": "Ford", "images": ["b.jpg"]}
		]`),
	})
	h.catalog.upsertErr["PZU_100"] = true

	_, report := h.orch.RunOnce(context.Background())
	if report.Added != 1 {
		t.Fatalf("second record must still import, got %+v", report)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected 1 record error, got %+v", report.Errors)
	}

	// The entry must not advance the checksum while a seed is unpersisted.
	job := h.ledger.jobs["MIXED_1.json"]
	if job == nil || job.Checksum != "" {
		t.Fatalf("persist failure must not record a fresh checksum, got %+v", job)
	}
}

func TestRunOnce_PersistFailureRetriedNextCycle(t *testing.T) {
	h := newTestHarness(map[string][]byte{
		"MIXED_1.json": []byte(`[
			{"offer_id": "PZU_100", "make": "Opel", "images": ["a.jpg"]},
			{"offer_id": "PZU_200", "make": "Ford", "images": ["b.jpg"]}
		]`),
	})
	h.catalog.upsertErr["PZU_100"] = true

	_, first := h.orch.RunOnce(context.Background())
	if first.Added != 1 || len(first.Errors) != 1 {
		t.Fatalf("unexpected first cycle %+v", first)
	}

	// Store recovers; the unchanged file must be reprocessed, not skipped.
	h.catalog.upsertErr = map[string]bool{}

	_, second := h.orch.RunOnce(context.Background())
	if second.FilesProcessed != 1 {
		t.Fatalf("file with a failed seed must be retried, got %+v", second)
	}
	if second.Added != 1 || second.Updated != 1 {
		t.Fatalf("expected added=1 updated=1 on retry, got %+v", second)
	}
	if !h.catalog.cars["PZU_100"] {
		t.Fatalf("failed seed never recovered")
	}
	if len(second.Errors) != 0 {
		t.Fatalf("unexpected retry errors %+v", second.Errors)
	}

	// A clean pass finally records the checksum; the third cycle skips.
	job := h.ledger.jobs["MIXED_1.json"]
	if job == nil || job.Checksum == "" {
		t.Fatalf("clean retry must record the checksum, got %+v", job)
	}
	_, third := h.orch.RunOnce(context.Background())
	if third.FilesProcessed != 0 {
		t.Fatalf("unchanged clean file must be skipped, got %+v", third)
	}
}

func TestRunOnce_ImageStoreFailureRetriedNextCycle(t *testing.T) {
	h := newTestHarness(map[string][]byte{
		"PZU_OFFERS_1.json": []byte(`{"offer_id": "PZU_100", "make": "Opel", "images": ["a.jpg"]}`),
	})
	h.store.failAll = true

	_, first := h.orch.RunOnce(context.Background())
	if first.Added != 0 || len(first.Errors) != 1 {
		t.Fatalf("unexpected first cycle %+v", first)
	}
	if job := h.ledger.jobs["PZU_OFFERS_1.json"]; job == nil || job.Checksum != "" {
		t.Fatalf("image failure must not record a fresh checksum, got %+v", job)
	}

	h.store.failAll = false
	_, second := h.orch.RunOnce(context.Background())
	if second.Added != 1 {
		t.Fatalf("expected retry to import, got %+v", second)
	}
}

func TestRunOnce_SkippedRecordsSurfacedInReport(t *testing.T) {
	h := newTestHarness(map[string][]byte{
		// No native id: AXA derives one from the filename, and AXA requires
		// at least one downloaded photo.
		"AXA_OFFERS_77.json": []byte(`{"make": "Skoda", "images": ["a.jpg"]}`),
	})
	h.fetcher.fail["a.jpg"] = true

	_, report := h.orch.RunOnce(context.Background())
	if report.Skipped != 1 || report.Added != 0 {
		t.Fatalf("expected skipped=1, got %+v", report)
	}
	if len(report.SkippedRecords) != 1 {
		t.Fatalf("expected skipped record in report, got %+v", report.SkippedRecords)
	}
	rec := report.SkippedRecords[0]
	if rec.DisplayID != "AXA_77" || rec.Reason != SkipNoImages {
		t.Fatalf("unexpected skipped record %+v", rec)
	}
}

func TestPauseAndResume(t *testing.T) {
	h := newTestHarness(map[string][]byte{
		"PZU_OFFERS_1.json": []byte(`{"offer_id": "PZU_100", "make": "Opel", "images": ["a.jpg"]}`),
	})

	h.orch.Pause()
	_, report := h.orch.RunOnce(context.Background())
	if report.FilesSeen != 0 || report.Added != 0 {
		t.Fatalf("paused cycle must do nothing, got %+v", report)
	}

	h.orch.Resume()
	_, report = h.orch.RunOnce(context.Background())
	if report.Added != 1 {
		t.Fatalf("resumed cycle must import, got %+v", report)
	}
}

func TestHandleCommand(t *testing.T) {
	h := newTestHarness(map[string][]byte{
		"PZU_OFFERS_1.json": []byte(`{"offer_id": "PZU_100", "make": "Opel", "images": ["a.jpg"]}`),
	})

	if err := h.orch.HandleCommand(context.Background(), &models.Command{Command: models.CmdPause}); err != nil {
		t.Fatalf("pause command failed: %v", err)
	}
	if !h.orch.IsPaused() {
		t.Fatalf("expected paused state")
	}
	if err := h.orch.HandleCommand(context.Background(), &models.Command{Command: models.CmdResume}); err != nil {
		t.Fatalf("resume command failed: %v", err)
	}
	if err := h.orch.HandleCommand(context.Background(), &models.Command{Command: models.CmdImportNow}); err != nil {
		t.Fatalf("import command failed: %v", err)
	}
	if !h.catalog.cars["PZU_100"] {
		t.Fatalf("import_now command must run a cycle")
	}
	if err := h.orch.HandleCommand(context.Background(), &models.Command{Command: "selfdestruct"}); err == nil {
		t.Fatalf("unknown command must error")
	}
}
