package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"autoszczech/config"
	"autoszczech/httputil"
	"autoszczech/importer"
	"autoszczech/logging"
	"autoszczech/scheduler"
	"autoszczech/services"
	"autoszczech/storage"
	"autoszczech/transport"
)

var (
	importNow = flag.Bool("import", false, "Run one import cycle and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("importer.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting autoszczech importer...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d provider configs", len(cfg.Providers))
	for id := range cfg.Providers {
		log.Printf("  - %s", id)
	}

	ctx := context.Background()

	// Postgres holds the car catalog.
	pgStore, err := storage.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Database.URL))

	// SQLite holds the job ledger and the operator command queue.
	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	catalogService, err := services.NewCatalogService(pgStore, cfg.Importer.Timezone)
	if err != nil {
		log.Fatalf("Failed to init catalog service: %v", err)
	}
	log.Printf("Import timezone: %s", cfg.Importer.Timezone)

	var mirror storage.Uploader
	if cfg.S3.Bucket != "" {
		uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to init S3 mirror: %v", err)
		}
		mirror = uploader
		log.Printf("Mirroring photos to s3://%s", cfg.S3.Bucket)
	}

	ftpClient := transport.NewFTPClient(
		cfg.FTP.Host, cfg.FTP.Port, cfg.FTP.User, cfg.FTP.Password,
		cfg.Importer.MaxDownloadBytes,
	)
	log.Printf("Remote store: %s:%d (json=%s images=%s)",
		cfg.FTP.Host, cfg.FTP.Port, cfg.FTP.JSONDir, cfg.FTP.ImagesDir)

	clients := httputil.NewClients()
	fetcher := importer.NewSourceFetcher(ftpClient, cfg.FTP.ImagesDir, clients.Download, cfg.Importer.MaxDownloadBytes)
	imageStore := storage.NewLocalImageStore(cfg.Importer.ImageDir, cfg.Importer.ImageBaseURL, mirror)

	parser := importer.NewParser(cfg.Providers, cfg.Importer.ImageBaseURL, cfg.Importer.FallbackProvider)
	images := importer.NewImagePipeline(fetcher, imageStore, cfg.Importer.ImageBaseURL, cfg.Providers)
	orchestrator := importer.NewOrchestrator(cfg, ftpClient, parser, images, catalogService, sqliteStore)

	if *importNow {
		log.Println("Running import...")
		if _, report := orchestrator.RunOnce(ctx); report != nil && len(report.Errors) > 0 {
			log.Printf("Import finished with %d errors", len(report.Errors))
			os.Exit(1)
		}
		log.Println("Import complete!")
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, orchestrator, sqliteStore)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString masks the password in a connection string for logging.
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
