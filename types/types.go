package types

import "time"

// Quote is the short text rendered onto the video. Immutable once produced.
type Quote struct {
	Text     string `json:"text"`
	Lang     string `json:"lang"`
	Provider string `json:"provider"`
}

// MediaKind distinguishes the file artifacts the pipeline stages hand around.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// MediaAsset is a staged file artifact. Valid means the file exists,
// is non-empty, and passed the producing stage's checks.
type MediaAsset struct {
	Path        string    `json:"path"`
	Kind        MediaKind `json:"kind"`
	Format      string    `json:"format"`
	Valid       bool      `json:"valid"`
	DurationSec float64   `json:"duration_sec,omitempty"`
}

// RenderSpec describes the target output video. Immutable for the run.
type RenderSpec struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         int     `json:"fps"`
	DurationSec float64 `json:"duration_sec"`

	FontFile    string  `json:"font_file"`
	FontColor   string  `json:"font_color"`
	FontSizeMin int     `json:"font_size_min"`
	FontSizeMax int     `json:"font_size_max"`
	MarginRatio float64 `json:"margin_ratio"` // safe-area margin as a fraction of each frame edge

	Container  string `json:"container"`
	VideoCodec string `json:"video_codec"`
	AudioCodec string `json:"audio_codec"`
}

// SafeArea returns the text overlay rectangle in pixels.
func (s RenderSpec) SafeArea() (w, h int) {
	mx := int(float64(s.Width) * s.MarginRatio)
	my := int(float64(s.Height) * s.MarginRatio)
	return s.Width - 2*mx, s.Height - 2*my
}

// StageStatus is the tag of a StageOutcome.
type StageStatus string

const (
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
)

// StageOutcome records one stage's result. Appended to the RunContext log
// by the orchestrator only; never mutated after append.
type StageOutcome struct {
	Stage    string      `json:"stage"`
	Status   StageStatus `json:"status"`
	Attempts int         `json:"attempts"`
	Artifact string      `json:"artifact,omitempty"`
	Error    string      `json:"error,omitempty"`
	At       time.Time   `json:"at"`
}

// RunContext identifies one pipeline execution.
type RunContext struct {
	RunID     string         `json:"run_id"`
	Dir       string         `json:"dir"`
	StartedAt time.Time      `json:"started_at"`
	Outcomes  []StageOutcome `json:"outcomes"`
}

// Append adds an outcome to the audit trail.
func (rc *RunContext) Append(o StageOutcome) {
	rc.Outcomes = append(rc.Outcomes, o)
}

// UploadStatus is the tag of an UploadResult.
type UploadStatus string

const (
	UploadSucceeded UploadStatus = "succeeded"
	UploadSkipped   UploadStatus = "skipped"
	UploadFailed    UploadStatus = "failed"
)

// UploadResult reports the optional publish stage. An upload failure never
// invalidates a successful render.
type UploadResult struct {
	Status   UploadStatus `json:"status"`
	RemoteID string       `json:"remote_id,omitempty"`
	URL      string       `json:"url,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	Attempts int          `json:"attempts,omitempty"`
}

// VideoMetadata holds the upload metadata derived from the quote.
type VideoMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"category_id"`
	Visibility  string   `json:"visibility"`
}

// RunState is the JSON snapshot saved to the run directory when the run ends.
type RunState struct {
	RunID       string         `json:"run_id"`
	State       string         `json:"state"`
	StartedAt   string         `json:"started_at"`
	CompletedAt string         `json:"completed_at"`
	Quote       *Quote         `json:"quote,omitempty"`
	VideoFile   string         `json:"video_file,omitempty"`
	Upload      *UploadResult  `json:"upload,omitempty"`
	Outcomes    []StageOutcome `json:"outcomes"`
	Error       string         `json:"error,omitempty"`
}
