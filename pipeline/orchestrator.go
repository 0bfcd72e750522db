// Package pipeline drives the quote → image → audio → compose → upload
// sequence and owns the per-run state machine and audit trail.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	quote "quote-shorts-pipeline/02_quote"
	"quote-shorts-pipeline/config"
	"quote-shorts-pipeline/store"
	"quote-shorts-pipeline/types"
)

// State is one position in the linear run state machine.
type State string

const (
	StateInit            State = "init"
	StateQuoteFetched    State = "quote_fetched"
	StateImageReady      State = "image_ready"
	StateAudioSelected   State = "audio_selected"
	StateVideoComposed   State = "video_composed"
	StateUploadAttempted State = "upload_attempted"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// Stage names used in outcomes and failure reports.
const (
	StageTopic    = "topic"
	StageQuote    = "quote"
	StageImage    = "image"
	StageAudio    = "audio"
	StageCompose  = "compose"
	StageFinalize = "finalize"
	StageUpload   = "upload"
)

// Capability interfaces consumed by the orchestrator. Each has one real
// adapter and a deterministic test fake.

type TopicPicker interface {
	Run(ctx context.Context) string
}

type QuoteProvider interface {
	Fetch(ctx context.Context, topic string, c quote.Constraints) (types.Quote, int, error)
}

type ImageSynthesizer interface {
	Synthesize(ctx context.Context, prompt string, width, height, seed int, destPath string) (types.MediaAsset, int, error)
}

type AudioSelector interface {
	Select(libraryDir string) (types.MediaAsset, error)
}

type VideoComposer interface {
	Compose(ctx context.Context, image, audioClip types.MediaAsset, quoteText string, spec types.RenderSpec, outPath string) (types.MediaAsset, error)
}

type Uploader interface {
	Upload(ctx context.Context, video types.MediaAsset, meta types.VideoMetadata) (types.UploadResult, error)
}

// Result is the terminal outcome of one run.
type Result struct {
	State     State
	FailedAt  string
	VideoPath string
	Quote     types.Quote
	Upload    types.UploadResult
	Run       *types.RunContext
	Err       error
}

// Orchestrator sequences the stages for one run.
type Orchestrator struct {
	cfg    *config.Config
	assets *store.AssetStore
	runlog *RunLog

	Topic    TopicPicker
	Quotes   QuoteProvider
	Images   ImageSynthesizer
	Audio    AudioSelector
	Composer VideoComposer
	Uploader Uploader

	// StageTimeout bounds each outbound network call. Zero disables it.
	// Stage contexts are independent of the run context: an abort takes
	// effect at the next stage boundary, never mid-stage.
	StageTimeout time.Duration
	// Overlap runs quote fetch and audio selection concurrently. They are
	// independent of each other; this is an optimization, not a requirement.
	Overlap bool
}

// New creates an Orchestrator over an already-created asset store and run log.
func New(cfg *config.Config, assets *store.AssetStore, runlog *RunLog) *Orchestrator {
	return &Orchestrator{cfg: cfg, assets: assets, runlog: runlog}
}

// Run executes the pipeline once. It returns a Failed result with the stage
// name and classified error when a mandatory stage exhausts its retries; an
// upload failure is recorded but still ends in Done.
func (o *Orchestrator) Run(ctx context.Context, runID string) *Result {
	rc := &types.RunContext{
		RunID:     runID,
		Dir:       o.assets.RunDir(),
		StartedAt: time.Now().UTC(),
	}
	result := &Result{State: StateInit, Run: rc}
	defer o.saveState(result)

	o.runlog.Printf("run %s started", runID)

	// Topic seeding never fails the run.
	topic := o.cfg.Topic.Default
	if o.Topic != nil {
		tctx, cancel := o.stageCtx()
		topic = o.Topic.Run(tctx)
		cancel()
	}
	o.record(rc, types.StageOutcome{Stage: StageTopic, Status: types.StageSucceeded, Attempts: 1, Artifact: topic})

	// Audio selection is independent of the quote, so it runs alongside it;
	// the state machine still advances in its canonical order below.
	q, audioClip, err := o.fetchInputs(rc, topic)
	if err != nil {
		return o.fail(result, rc, err)
	}
	result.Quote = q
	o.advance(result, StateQuoteFetched)

	if err := cancelled(ctx); err != nil {
		return o.fail(result, rc, stageErr{StageImage, types.NonRetryable(err)})
	}

	image, err := o.synthesizeImage(rc, q)
	if err != nil {
		return o.fail(result, rc, err)
	}
	o.advance(result, StateImageReady)
	o.advance(result, StateAudioSelected) // selected during fetchInputs

	if err := cancelled(ctx); err != nil {
		return o.fail(result, rc, stageErr{StageCompose, types.NonRetryable(err)})
	}

	videoPath, err := o.compose(rc, image, audioClip, q)
	if err != nil {
		return o.fail(result, rc, err)
	}
	result.VideoPath = videoPath
	o.advance(result, StateVideoComposed)

	result.Upload = o.attemptUpload(rc, videoPath, q)
	o.advance(result, StateUploadAttempted)
	o.advance(result, StateDone)
	o.runlog.Printf("run %s done: %s (upload: %s)", runID, videoPath, result.Upload.Status)
	return result
}

// advance moves the state machine and persists the snapshot, so every state
// is observable in run_state.json while the run is in flight.
func (o *Orchestrator) advance(result *Result, s State) {
	result.State = s
	o.saveState(result)
}

// fetchInputs runs the quote and audio stages, optionally overlapped.
// Outcomes are appended in quote-then-audio order either way, since only
// this goroutine touches the run log.
func (o *Orchestrator) fetchInputs(rc *types.RunContext, topic string) (types.Quote, types.MediaAsset, error) {
	constraints := quote.Constraints{
		MaxChars: o.cfg.Quote.MaxChars,
		Tone:     o.cfg.Quote.Tone,
		Lang:     o.cfg.Quote.Lang,
	}

	var (
		q             types.Quote
		audioClip     types.MediaAsset
		quoteAttempts int
		quoteErr      error
		audioErr      error
	)

	fetchQuote := func() {
		qctx, cancel := o.stageCtx()
		defer cancel()
		q, quoteAttempts, quoteErr = o.Quotes.Fetch(qctx, topic, constraints)
	}
	selectAudio := func() {
		audioClip, audioErr = o.Audio.Select(o.cfg.Paths.AudioLibrary)
	}

	if o.Overlap {
		var g errgroup.Group
		g.Go(func() error { fetchQuote(); return nil })
		g.Go(func() error { selectAudio(); return nil })
		_ = g.Wait()
	} else {
		fetchQuote()
		selectAudio()
	}

	if quoteErr != nil {
		o.recordFailure(rc, StageQuote, quoteErr)
		return q, audioClip, stageErr{StageQuote, quoteErr}
	}
	o.record(rc, types.StageOutcome{Stage: StageQuote, Status: types.StageSucceeded, Attempts: quoteAttempts, Artifact: q.Text})
	o.stageQuoteText(q)

	if audioErr != nil {
		o.recordFailure(rc, StageAudio, audioErr)
		return q, audioClip, stageErr{StageAudio, audioErr}
	}
	o.record(rc, types.StageOutcome{Stage: StageAudio, Status: types.StageSucceeded, Attempts: 1, Artifact: audioClip.Path})

	return q, audioClip, nil
}

func (o *Orchestrator) synthesizeImage(rc *types.RunContext, q types.Quote) (types.MediaAsset, error) {
	ictx, cancel := o.stageCtx()
	defer cancel()

	destPath := o.assets.Allocate("image")
	image, attempts, err := o.Images.Synthesize(ictx, q.Text, o.cfg.Video.Width, o.cfg.Video.Height, runSeed(rc.RunID), destPath)
	if err != nil {
		o.recordFailure(rc, StageImage, err)
		return image, stageErr{StageImage, err}
	}
	o.record(rc, types.StageOutcome{Stage: StageImage, Status: types.StageSucceeded, Attempts: attempts, Artifact: image.Path})
	return image, nil
}

func (o *Orchestrator) compose(rc *types.RunContext, image, audioClip types.MediaAsset, q types.Quote) (string, error) {
	outPath := o.assets.Allocate("video")
	// Rendering runs on its own context: once started, the encode finishes.
	video, err := o.Composer.Compose(context.Background(), image, audioClip, q.Text, o.cfg.RenderSpec(), outPath)
	if err != nil {
		o.recordFailure(rc, StageCompose, err)
		return "", stageErr{StageCompose, err}
	}
	o.record(rc, types.StageOutcome{Stage: StageCompose, Status: types.StageSucceeded, Attempts: 1, Artifact: video.Path})

	finalPath, err := o.assets.Finalize(video.Path)
	if err != nil {
		o.recordFailure(rc, StageFinalize, err)
		return "", stageErr{StageFinalize, err}
	}
	o.record(rc, types.StageOutcome{Stage: StageFinalize, Status: types.StageSucceeded, Attempts: 1, Artifact: finalPath})
	return finalPath, nil
}

// attemptUpload runs the optional publish stage. Its failure is recorded but
// never fails the run — the rendered video is the primary deliverable.
func (o *Orchestrator) attemptUpload(rc *types.RunContext, videoPath string, q types.Quote) types.UploadResult {
	if o.Uploader == nil || !o.cfg.Upload.Enabled {
		res := types.UploadResult{Status: types.UploadSkipped, Reason: "upload disabled"}
		o.record(rc, types.StageOutcome{Stage: StageUpload, Status: types.StageSucceeded, Attempts: 0, Artifact: "skipped"})
		return res
	}

	uctx, cancel := o.stageCtx()
	defer cancel()

	videoAsset := types.MediaAsset{Path: videoPath, Kind: types.KindVideo, Format: o.cfg.Video.Container, Valid: true}
	res, err := o.Uploader.Upload(uctx, videoAsset, buildMetadata(q, o.cfg))
	if err != nil {
		o.recordFailure(rc, StageUpload, err)
		o.runlog.Printf("upload failed (video retained locally): %v", err)
		return res
	}
	attempts := res.Attempts
	if attempts == 0 {
		attempts = 1
	}
	o.record(rc, types.StageOutcome{Stage: StageUpload, Status: types.StageSucceeded, Attempts: attempts, Artifact: res.RemoteID})
	return res
}

// cancelled honors between-stage aborts; stages are never interrupted mid-flight.
func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}
	return nil
}

// stageErr pairs a classified error with the stage it happened in.
type stageErr struct {
	stage string
	err   error
}

func (e stageErr) Error() string { return fmt.Sprintf("stage %s: %v", e.stage, e.err) }
func (e stageErr) Unwrap() error { return e.err }

func (o *Orchestrator) fail(result *Result, rc *types.RunContext, err error) *Result {
	result.State = StateFailed
	result.Err = err
	if se, ok := err.(stageErr); ok {
		result.FailedAt = se.stage
	}
	o.runlog.Printf("run %s failed: %v", rc.RunID, err)
	return result
}

func (o *Orchestrator) record(rc *types.RunContext, outcome types.StageOutcome) {
	outcome.At = time.Now().UTC()
	rc.Append(outcome)
	if outcome.Stage != StageTopic {
		o.runlog.Printf("stage %s: %s", outcome.Stage, outcome.Status)
	}
}

func (o *Orchestrator) recordFailure(rc *types.RunContext, stage string, err error) {
	o.record(rc, types.StageOutcome{
		Stage:    stage,
		Status:   types.StageFailed,
		Attempts: types.AttemptsOf(err),
		Error:    err.Error(),
	})
}

// stageQuoteText stages the quote text in the run dir for post-hoc diagnosis.
func (o *Orchestrator) stageQuoteText(q types.Quote) {
	path := o.assets.Allocate("quote-text")
	if err := os.WriteFile(path, []byte(q.Text+"\n"), 0644); err != nil {
		o.runlog.Printf("warning: could not stage quote text: %v", err)
	}
}

// stageCtx returns the context a stage runs on. It is deliberately not
// derived from the run context, so a signal or cancellation during a stage
// lets the stage finish and aborts at the next boundary instead.
func (o *Orchestrator) stageCtx() (context.Context, context.CancelFunc) {
	if o.StageTimeout > 0 {
		return context.WithTimeout(context.Background(), o.StageTimeout)
	}
	return context.Background(), func() {}
}

// saveState writes the run snapshot JSON into the run directory.
func (o *Orchestrator) saveState(result *Result) {
	state := types.RunState{
		RunID:       result.Run.RunID,
		State:       string(result.State),
		StartedAt:   result.Run.StartedAt.Format(time.RFC3339),
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
		VideoFile:   result.VideoPath,
		Outcomes:    result.Run.Outcomes,
	}
	if result.Quote.Text != "" {
		state.Quote = &result.Quote
	}
	if result.Upload.Status != "" {
		state.Upload = &result.Upload
	}
	if result.Err != nil {
		state.Error = result.Err.Error()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(result.Run.Dir, "run_state.json"), data, 0644)
}

func buildMetadata(q types.Quote, cfg *config.Config) types.VideoMetadata {
	title := cfg.Upload.TitlePrefix + q.Text
	if r := []rune(title); len(r) > 70 {
		title = string(r[:67]) + "..."
	}
	return types.VideoMetadata{
		Title:       title,
		Description: q.Text,
		Tags:        cfg.Upload.Tags,
		CategoryID:  cfg.Upload.CategoryID,
		Visibility:  cfg.Upload.Visibility,
	}
}

// runSeed derives the deterministic per-run image seed from the run ID.
func runSeed(runID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(runID))
	return int(h.Sum32() % 100000)
}
