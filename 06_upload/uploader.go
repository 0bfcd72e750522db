// Package upload publishes the rendered short to YouTube. Upload failure is
// never fatal to the run: the local video already exists.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"quote-shorts-pipeline/config"
	"quote-shorts-pipeline/retry"
	"quote-shorts-pipeline/types"
)

// Uploader publishes videos via the YouTube Data API v3.
type Uploader struct {
	cfg *config.Config
}

// New creates a new Uploader.
func New(cfg *config.Config) *Uploader {
	return &Uploader{cfg: cfg}
}

// Upload publishes video with meta. Transient network and server errors are
// retried on a small budget; auth, quota and metadata errors are surfaced
// immediately. All failures come back upload-classified.
func (u *Uploader) Upload(ctx context.Context, video types.MediaAsset, meta types.VideoMetadata) (types.UploadResult, error) {
	creds := u.cfg.Credentials
	if creds.YouTubeClientID == "" || creds.YouTubeClientSecret == "" || creds.YouTubeRefreshToken == "" {
		err := types.Upload(errors.New("YouTube OAuth credentials not configured"))
		return types.UploadResult{Status: types.UploadFailed, Reason: err.Error(), Attempts: 1}, err
	}

	log.Printf("[upload] Uploading: %q", meta.Title)

	var videoID string
	attempts, err := retry.Do(ctx, retry.Policy{
		MaxAttempts: u.cfg.Upload.MaxAttempts,
		BaseDelay:   5 * time.Second,
		MaxDelay:    30 * time.Second,
	}, func() error {
		var callErr error
		videoID, callErr = u.insert(ctx, video.Path, meta)
		return callErr
	})
	if err != nil {
		wrapped := &types.PipelineError{Class: types.ClassUpload, Attempts: attempts, Err: err}
		return types.UploadResult{Status: types.UploadFailed, Reason: wrapped.Error(), Attempts: attempts}, wrapped
	}

	url := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	log.Printf("[upload] ✅ Uploaded: %s", url)

	if err := u.logUpload(videoID, url, video.Path, meta); err != nil {
		log.Printf("[upload] Warning: could not save upload log: %v", err)
	}
	return types.UploadResult{Status: types.UploadSucceeded, RemoteID: videoID, URL: url, Attempts: attempts}, nil
}

func (u *Uploader) insert(ctx context.Context, videoFile string, meta types.VideoMetadata) (string, error) {
	client, err := u.oauthClient(ctx)
	if err != nil {
		return "", types.NonRetryable(fmt.Errorf("youtube auth: %w", err))
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", types.Transient(fmt.Errorf("youtube service: %w", err))
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  meta.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: meta.Visibility,
		},
	}

	f, err := os.Open(videoFile)
	if err != nil {
		return "", types.NonRetryable(fmt.Errorf("open video file: %w", err))
	}
	defer f.Close()

	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.Media(f)

	uploaded, err := call.Do()
	if err != nil {
		return "", classify(err)
	}
	return uploaded.Id, nil
}

// classify maps YouTube API failures onto the retry taxonomy. Quota
// exhaustion is a daily cap: retrying inside one run cannot help.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return types.Transient(fmt.Errorf("youtube upload: %w", err))
		default:
			return types.NonRetryable(fmt.Errorf("youtube upload: %w", err))
		}
	}
	// Transport-level failure with no API response.
	return types.Transient(fmt.Errorf("youtube upload: %w", err))
}

// oauthClient builds an HTTP client from the stored refresh token.
func (u *Uploader) oauthClient(ctx context.Context) (*http.Client, error) {
	conf := &oauth2.Config{
		ClientID:     u.cfg.Credentials.YouTubeClientID,
		ClientSecret: u.cfg.Credentials.YouTubeClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		RefreshToken: u.cfg.Credentials.YouTubeRefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return oauth2.NewClient(ctx, conf.TokenSource(ctx, token)), nil
}

// logUpload appends a JSON audit entry for the published video.
func (u *Uploader) logUpload(videoID, url, videoFile string, meta types.VideoMetadata) error {
	entry := map[string]interface{}{
		"video_id":    videoID,
		"video_url":   url,
		"title":       meta.Title,
		"video_file":  videoFile,
		"uploaded_at": time.Now().UTC().Format(time.RFC3339),
	}
	logFile := fmt.Sprintf("%s/upload_%s.json", u.cfg.Paths.Logs, time.Now().Format("20060102_150405"))
	data, _ := json.MarshalIndent(entry, "", "  ")
	return os.WriteFile(logFile, data, 0644)
}
