package main

import (
	"context"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chelsa_sampler/config"
	"chelsa_sampler/httputil"
	"chelsa_sampler/logging"
	"chelsa_sampler/pipeline"
	"chelsa_sampler/scheduler"
	"chelsa_sampler/services"
	"chelsa_sampler/storage"
)

const artifactLogRetentionDays = 30

var runOnce = flag.Bool("run", false, "Run the pipeline once and exit")

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting chelsa_sampler...")
	log.Printf("Variable %s, years %d-%d, %d sites",
		cfg.Manifest.Variable, cfg.Manifest.YearFrom, cfg.Manifest.YearTo, len(cfg.Sites))
	for _, site := range cfg.Sites {
		log.Printf("  - %s (%s)", site.Name, site.Code)
	}

	clients := httputil.NewClients(cfg.Fetch.Timeout)

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer store.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	if pruned, err := store.PruneArtifactLog(time.Now().AddDate(0, 0, -artifactLogRetentionDays)); err != nil {
		log.Printf("Warning: could not prune artifact log: %v", err)
	} else if pruned > 0 {
		log.Printf("Pruned %d old artifact log entries", pruned)
	}

	if last, err := store.LastCompletedRun(); err == nil && last != nil {
		log.Printf("Last completed run: %s (%d records, %d missing)",
			last.StartedAt.Format("2006-01-02 15:04"), last.Records, last.MissingValues)
	}

	ctx := context.Background()

	var pg *storage.PostgresStore
	if cfg.Postgres.URL != "" {
		pg, err = storage.NewPostgresStore(ctx, cfg.Postgres.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to migrate Postgres: %v", err)
		}
		log.Printf("Postgres sink enabled: %s", maskConnectionString(cfg.Postgres.URL))
	}

	var uploader *storage.S3Uploader
	if cfg.S3.Bucket != "" {
		uploader, err = storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to set up S3 uploader: %v", err)
		}
		log.Printf("S3 uploads enabled: bucket %s", cfg.S3.Bucket)
	}

	exporter := services.NewExportService(cfg, pg, uploader)
	pipe := pipeline.New(cfg, clients, store, exporter)

	if *runOnce || (cfg.Scheduler.Cron == "" && cfg.Scheduler.Interval == 0) {
		log.Println("Running pipeline once...")
		if err := pipe.Run(ctx); err != nil {
			log.Fatalf("Pipeline failed: %v", err)
		}
		log.Println("Pipeline complete!")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg.Scheduler, pipe)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString hides the password in a Postgres URL for logging.
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
