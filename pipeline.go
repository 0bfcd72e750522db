package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	topic "quote-shorts-pipeline/01_topic"
	quote "quote-shorts-pipeline/02_quote"
	imagegen "quote-shorts-pipeline/03_image"
	audio "quote-shorts-pipeline/04_audio"
	render "quote-shorts-pipeline/05_render"
	upload "quote-shorts-pipeline/06_upload"
	"quote-shorts-pipeline/config"
	"quote-shorts-pipeline/pipeline"
	"quote-shorts-pipeline/store"
	"quote-shorts-pipeline/types"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	cleanup := flag.Bool("cleanup", false, "remove the run working directory after a successful run")
	flag.Parse()

	// Load .env (local dev only — CI injects real secrets)
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	for _, dir := range []string{cfg.Paths.Output, cfg.Paths.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create dir %s: %v", dir, err)
		}
	}

	runID := uuid.NewString()[:8]
	log.Printf("🎬 Quote Shorts Pipeline starting — Run ID: %s", runID)

	assets, err := store.New(cfg.Paths.Output, runID)
	if err != nil {
		log.Fatalf("Failed to create asset store: %v", err)
	}
	log.Printf("📁 Run dir: %s", assets.RunDir())

	runlog, err := pipeline.OpenRunLog(filepath.Join(cfg.Paths.Logs, "pipeline_log.txt"))
	if err != nil {
		log.Fatalf("Failed to open run log: %v", err)
	}
	defer runlog.Close()

	// The run aborts between stages on SIGINT/SIGTERM; a stage in flight
	// finishes first so partial artifacts stay consistent.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := pipeline.New(cfg, assets, runlog)
	orch.Topic = topic.New(cfg)
	orch.Quotes = quote.New(cfg)
	orch.Images = imagegen.New(cfg)
	orch.Audio = audio.New(cfg)
	orch.Composer = render.New(cfg)
	orch.Uploader = upload.New(cfg)
	orch.StageTimeout = 2 * time.Minute
	orch.Overlap = true

	result := orch.Run(ctx, runID)
	if result.State == pipeline.StateFailed {
		log.Printf("❌ Pipeline failed at stage %s: %v", result.FailedAt, result.Err)
		os.Exit(1)
	}

	log.Printf("✅ Pipeline complete! Video: %s", result.VideoPath)
	if result.Upload.Status == types.UploadSucceeded && result.Upload.URL != "" {
		log.Printf("📺 Published: %s", result.Upload.URL)
	}

	if *cleanup {
		if err := assets.Cleanup(); err != nil {
			log.Printf("Warning: cleanup failed: %v", err)
		}
	}
}
