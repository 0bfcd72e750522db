// Package imagegen wraps the image-generation service and normalizes its
// output to the exact pixel dimensions the composer needs.
package imagegen

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"quote-shorts-pipeline/config"
	"quote-shorts-pipeline/retry"
	"quote-shorts-pipeline/types"
)

const defaultBaseURL = "https://image.pollinations.ai"

// Synthesizer generates background images via Pollinations.ai.
type Synthesizer struct {
	cfg        *config.Config
	httpClient *http.Client

	// BaseURL and RetryPolicy are overridable for tests.
	BaseURL     string
	RetryPolicy retry.Policy
}

// New creates a new Synthesizer.
func New(cfg *config.Config) *Synthesizer {
	return &Synthesizer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Image.TimeoutSeconds) * time.Second},
		BaseURL:    defaultBaseURL,
		RetryPolicy: retry.Policy{
			MaxAttempts: cfg.Image.MaxAttempts,
			BaseDelay:   3 * time.Second,
			MaxDelay:    30 * time.Second,
		},
	}
}

// Synthesize generates an image for prompt, normalizes it to exactly
// width×height, and stages it at destPath. seed keeps the backend
// deterministic per run. The second return is the number of attempts made.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string, width, height int, seed int, destPath string) (types.MediaAsset, int, error) {
	styled := prompt
	if s.cfg.Image.StyleSuffix != "" {
		styled = prompt + ", " + s.cfg.Image.StyleSuffix
	}

	imageURL := fmt.Sprintf(
		"%s/prompt/%s?width=%d&height=%d&nologo=true&model=%s&seed=%d",
		s.BaseURL, url.PathEscape(styled), width, height, s.cfg.Image.Model, seed,
	)

	rawPath := destPath + ".raw"
	log.Printf("[image] Generating background image: %q", truncate(styled, 60))

	attempts, err := retry.Do(ctx, s.RetryPolicy, func() error {
		return s.download(ctx, imageURL, rawPath)
	})
	if err != nil {
		return types.MediaAsset{}, attempts, fmt.Errorf("image synthesis: %w", err)
	}

	if err := normalize(ctx, rawPath, destPath, width, height); err != nil {
		return types.MediaAsset{}, attempts, types.Render(fmt.Errorf("normalize image: %w", err))
	}
	_ = os.Remove(rawPath)

	w, h, err := probeDimensions(destPath)
	if err != nil {
		return types.MediaAsset{}, attempts, types.Render(fmt.Errorf("probe image: %w", err))
	}
	if w != width || h != height {
		return types.MediaAsset{}, attempts, types.Render(fmt.Errorf("image is %dx%d, want %dx%d", w, h, width, height))
	}

	log.Printf("[image] ✅ Image ready after %d attempt(s): %s (%dx%d)", attempts, destPath, w, h)
	return types.MediaAsset{Path: destPath, Kind: types.KindImage, Format: "jpg", Valid: true}, attempts, nil
}

func (s *Synthesizer) download(ctx context.Context, imageURL, outFile string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return types.NonRetryable(err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; QuoteShortsPipeline/1.0)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return types.Transient(fmt.Errorf("image request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Errorf("HTTP %d from image service", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return types.Transient(msg)
		}
		return types.NonRetryable(msg)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Transient(fmt.Errorf("read image body: %w", err))
	}

	// Tiny responses are error pages, not images — the backend sometimes
	// serves them with a 200.
	if len(data) < 1024 {
		return types.Transient(fmt.Errorf("response too small (%d bytes) — likely an error page", len(data)))
	}

	if err := os.WriteFile(outFile, data, 0644); err != nil {
		return types.Resource(fmt.Errorf("write image: %w", err))
	}
	return nil
}

// normalize center-crops to the target aspect ratio, then scales to the exact
// target size. Deterministic for identical inputs.
func normalize(ctx context.Context, inPath, outPath string, width, height int) error {
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
		width, height, width, height,
	)
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-i", inPath,
		"-vf", filter,
		"-q:v", "2",
		outPath,
	)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg scale/crop: %w", err)
	}
	return nil
}

func probeDimensions(path string) (int, int, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	).Output()
	if err != nil {
		return 0, 0, err
	}
	var w, h int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("parse dimensions %q: %w", strings.TrimSpace(string(out)), err)
	}
	return w, h, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
