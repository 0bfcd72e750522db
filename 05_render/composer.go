// Package render composes the final video: the quote overlaid on the static
// background image, mixed with the background track, encoded to spec.
package render

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"quote-shorts-pipeline/config"
	"quote-shorts-pipeline/types"
)

// Composer renders quote shorts with ffmpeg.
type Composer struct {
	cfg *config.Config
}

// New creates a new Composer.
func New(cfg *config.Config) *Composer {
	return &Composer{cfg: cfg}
}

// Compose renders image + audio + quoteText into a single video at outPath.
// Rendering is deterministic for identical inputs, so failures here are
// final — a retry would reproduce the same error.
func (c *Composer) Compose(ctx context.Context, image, audioClip types.MediaAsset, quoteText string, spec types.RenderSpec, outPath string) (types.MediaAsset, error) {
	log.Println("[render] Composing final video...")

	if err := checkInput(image); err != nil {
		return types.MediaAsset{}, err
	}
	if err := checkInput(audioClip); err != nil {
		return types.MediaAsset{}, err
	}

	lines, fontSize := FitText(quoteText, spec)
	log.Printf("[render] Overlay: %d line(s) at %dpx", len(lines), fontSize)

	// drawtext reads the wrapped block from a file so the quote needs no
	// filter-syntax escaping.
	textPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + "_overlay.txt"
	if err := os.WriteFile(textPath, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return types.MediaAsset{}, types.Resource(fmt.Errorf("write overlay text: %w", err))
	}

	audioDur := audioClip.DurationSec
	if audioDur <= 0 {
		if d, err := probeDuration(audioClip.Path); err == nil {
			audioDur = d
		}
	}

	args := composeArgs(image.Path, audioClip.Path, audioDur, c.overlayFilter(textPath, fontSize, spec), spec, outPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return types.MediaAsset{}, types.Render(fmt.Errorf("ffmpeg compose: %w", err))
	}

	dur, err := c.validate(outPath, spec)
	if err != nil {
		return types.MediaAsset{}, err
	}

	log.Printf("[render] ✅ Video ready: %s (%.2fs)", outPath, dur)
	return types.MediaAsset{
		Path:        outPath,
		Kind:        types.KindVideo,
		Format:      spec.Container,
		Valid:       true,
		DurationSec: dur,
	}, nil
}

// composeArgs builds the ffmpeg invocation: the still image looped at the
// target framerate, the audio looped or trimmed to the target duration, the
// quote overlay, the configured codecs. Audio shorter than the target loops
// the whole file with a hard cut at the restart point; longer audio is
// trimmed to the first DurationSec seconds. An unknown duration relies on
// -shortest alone.
func composeArgs(imagePath, audioPath string, audioDur float64, overlay string, spec types.RenderSpec, outPath string) []string {
	args := []string{"-y",
		"-loop", "1",
		"-framerate", fmt.Sprintf("%d", spec.FPS),
		"-i", imagePath,
	}
	if audioDur > 0 && audioDur < spec.DurationSec {
		loops := int(spec.DurationSec/audioDur) + 1
		args = append(args, "-stream_loop", fmt.Sprintf("%d", loops))
	}
	return append(args,
		"-i", audioPath,
		"-t", fmt.Sprintf("%.3f", spec.DurationSec),
		"-vf", overlay,
		"-c:v", spec.VideoCodec,
		"-preset", "fast",
		"-crf", "22",
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%d", spec.FPS),
		"-c:a", spec.AudioCodec,
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		outPath,
	)
}

// overlayFilter centers the wrapped quote block inside the frame.
func (c *Composer) overlayFilter(textPath string, fontSize int, spec types.RenderSpec) string {
	spacing := lineSpacing(fontSize)
	return fmt.Sprintf(
		"drawtext=fontfile=%s:textfile=%s:fontcolor=%s:fontsize=%d:line_spacing=%d:x=(w-text_w)/2:y=(h-text_h)/2",
		spec.FontFile, textPath, spec.FontColor, fontSize, spacing,
	)
}

// validate checks the produced file: non-zero size, parseable container,
// duration within tolerance of the target.
func (c *Composer) validate(path string, spec types.RenderSpec) (float64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, types.Render(fmt.Errorf("output missing: %w", err))
	}
	if fi.Size() == 0 {
		return 0, types.Render(fmt.Errorf("output %s is empty", path))
	}

	dur, err := probeDuration(path)
	if err != nil {
		return 0, types.Render(fmt.Errorf("output not a valid container: %w", err))
	}
	if math.Abs(dur-spec.DurationSec) > 0.5 {
		return 0, types.Render(fmt.Errorf("duration %.2fs outside ±0.5s of target %.2fs", dur, spec.DurationSec))
	}

	w, h, err := probeDimensions(path)
	if err != nil {
		return 0, types.Render(fmt.Errorf("probe output: %w", err))
	}
	if w != spec.Width || h != spec.Height {
		return 0, types.Render(fmt.Errorf("output is %dx%d, want %dx%d", w, h, spec.Width, spec.Height))
	}
	return dur, nil
}

// checkInput enforces the MediaAsset invariant: a referenced asset must be
// valid and non-empty or the pipeline fails fast.
func checkInput(asset types.MediaAsset) error {
	if !asset.Valid {
		return types.Resource(fmt.Errorf("%s asset %s was not marked valid", asset.Kind, asset.Path))
	}
	fi, err := os.Stat(asset.Path)
	if err != nil {
		return types.Resource(fmt.Errorf("%s asset missing: %w", asset.Kind, err))
	}
	if fi.Size() == 0 {
		return types.Resource(fmt.Errorf("%s asset %s is empty", asset.Kind, asset.Path))
	}
	return nil
}

func probeDuration(path string) (float64, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, err
	}
	var dur float64
	_, err = fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &dur)
	return dur, err
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
		return 0, 0, err
	}
	return w, h, nil
}
