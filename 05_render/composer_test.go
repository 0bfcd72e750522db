package render

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quote-shorts-pipeline/config"
	"quote-shorts-pipeline/types"
)

func TestCheckInput(t *testing.T) {
	t.Run("InvalidAssetFailsFast", func(t *testing.T) {
		err := checkInput(types.MediaAsset{Path: "/tmp/x.jpg", Kind: types.KindImage, Valid: false})
		require.Error(t, err)
		assert.Equal(t, types.ClassResource, types.ClassOf(err))
	})

	t.Run("MissingFileFailsFast", func(t *testing.T) {
		err := checkInput(types.MediaAsset{Path: filepath.Join(t.TempDir(), "gone.jpg"), Kind: types.KindImage, Valid: true})
		require.Error(t, err)
		assert.Equal(t, types.ClassResource, types.ClassOf(err))
	})

	t.Run("EmptyFileFailsFast", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "empty.mp3")
		require.NoError(t, os.WriteFile(p, nil, 0644))

		err := checkInput(types.MediaAsset{Path: p, Kind: types.KindAudio, Valid: true})
		require.Error(t, err)
		assert.Equal(t, types.ClassResource, types.ClassOf(err))
	})

	t.Run("ValidNonEmptyPasses", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "ok.jpg")
		require.NoError(t, os.WriteFile(p, []byte("jpeg bytes"), 0644))

		assert.NoError(t, checkInput(types.MediaAsset{Path: p, Kind: types.KindImage, Valid: true}))
	})
}

func composeSpec() types.RenderSpec {
	return types.RenderSpec{
		Width: 1080, Height: 1920, FPS: 30, DurationSec: 15,
		VideoCodec: "libx264", AudioCodec: "aac", Container: "mp4",
	}
}

func argIndex(args []string, want string) int {
	for i, a := range args {
		if a == want {
			return i
		}
	}
	return -1
}

func TestComposeArgs(t *testing.T) {
	spec := composeSpec()

	t.Run("ShortAudioLooped", func(t *testing.T) {
		args := composeArgs("bg.jpg", "track.mp3", 4, "drawtext=...", spec, "out.mp4")

		i := argIndex(args, "-stream_loop")
		require.NotEqual(t, -1, i, "audio shorter than target must loop")
		// int(15/4)+1 loops guarantee at least the target duration of audio.
		assert.Equal(t, "4", args[i+1])
		// The loop flag binds to the audio input, so it must precede it.
		assert.Equal(t, "-i", args[i+2])
		assert.Equal(t, "track.mp3", args[i+3])
	})

	t.Run("LoopCountCoversTargetExactly", func(t *testing.T) {
		args := composeArgs("bg.jpg", "track.mp3", 7.5, "drawtext=...", spec, "out.mp4")
		i := argIndex(args, "-stream_loop")
		require.NotEqual(t, -1, i)
		assert.Equal(t, "3", args[i+1])
	})

	t.Run("LongAudioTrimmedNotLooped", func(t *testing.T) {
		args := composeArgs("bg.jpg", "track.mp3", 42, "drawtext=...", spec, "out.mp4")

		assert.Equal(t, -1, argIndex(args, "-stream_loop"))
		i := argIndex(args, "-t")
		require.NotEqual(t, -1, i)
		assert.Equal(t, "15.000", args[i+1])
	})

	t.Run("ExactFitNotLooped", func(t *testing.T) {
		args := composeArgs("bg.jpg", "track.mp3", 15, "drawtext=...", spec, "out.mp4")
		assert.Equal(t, -1, argIndex(args, "-stream_loop"))
	})

	t.Run("UnknownDurationNotLooped", func(t *testing.T) {
		args := composeArgs("bg.jpg", "track.mp3", 0, "drawtext=...", spec, "out.mp4")
		assert.Equal(t, -1, argIndex(args, "-stream_loop"))
	})

	t.Run("InputOrderAndEncoderSettings", func(t *testing.T) {
		args := composeArgs("bg.jpg", "track.mp3", 42, "drawtext=overlay", spec, "out.mp4")

		// Image input first, audio input second.
		assert.Less(t, argIndex(args, "bg.jpg"), argIndex(args, "track.mp3"))

		vi := argIndex(args, "-c:v")
		require.NotEqual(t, -1, vi)
		assert.Equal(t, "libx264", args[vi+1])
		ai := argIndex(args, "-c:a")
		require.NotEqual(t, -1, ai)
		assert.Equal(t, "aac", args[ai+1])

		fi := argIndex(args, "-vf")
		require.NotEqual(t, -1, fi)
		assert.Equal(t, "drawtext=overlay", args[fi+1])

		assert.NotEqual(t, -1, argIndex(args, "-shortest"))
		assert.NotEqual(t, -1, argIndex(args, "+faststart"))
		assert.Equal(t, "out.mp4", args[len(args)-1])
	})
}

// findFont returns a usable truetype font for overlay rendering, or "".
func findFont() string {
	for _, p := range []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"/System/Library/Fonts/Supplemental/Arial.ttf",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func TestComposeWithFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}
	font := findFont()
	if font == "" {
		t.Skip("no usable truetype font found")
	}

	dir := t.TempDir()
	imgPath := filepath.Join(dir, "bg.jpg")
	audioPath := filepath.Join(dir, "tone.mp3")

	// Tiny synthetic inputs: a solid frame at the target size and a one
	// second tone, so the compose exercises the loop branch.
	if err := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "color=c=navy:s=270x480",
		"-frames:v", "1", imgPath).Run(); err != nil {
		t.Skipf("ffmpeg cannot generate test image: %v", err)
	}
	if err := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "sine=frequency=440:duration=1",
		"-b:a", "64k", audioPath).Run(); err != nil {
		t.Skipf("ffmpeg cannot generate test audio: %v", err)
	}

	spec := types.RenderSpec{
		Width: 270, Height: 480, FPS: 10, DurationSec: 2,
		FontFile: font, FontColor: "white",
		FontSizeMin: 8, FontSizeMax: 24, MarginRatio: 0.1,
		Container: "mp4", VideoCodec: "libx264", AudioCodec: "aac",
	}
	image := types.MediaAsset{Path: imgPath, Kind: types.KindImage, Format: "jpg", Valid: true}
	audioClip := types.MediaAsset{Path: audioPath, Kind: types.KindAudio, Format: "mp3", Valid: true, DurationSec: 1}

	c := New(&config.Config{})
	outPath := filepath.Join(dir, "out.mp4")
	video, err := c.Compose(context.Background(), image, audioClip, "Keep going.", spec, outPath)
	require.NoError(t, err)

	assert.True(t, video.Valid)
	assert.InDelta(t, spec.DurationSec, video.DurationSec, 0.5)
	fi, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Greater(t, fi.Size(), int64(0))
}

func TestOverlayFilter(t *testing.T) {
	c := New(&config.Config{})
	spec := types.RenderSpec{FontFile: "assets/roboto.ttf", FontColor: "white"}

	filter := c.overlayFilter("/tmp/run/overlay.txt", 64, spec)

	assert.Contains(t, filter, "fontfile=assets/roboto.ttf")
	assert.Contains(t, filter, "textfile=/tmp/run/overlay.txt")
	assert.Contains(t, filter, "fontsize=64")
	assert.Contains(t, filter, "fontcolor=white")
	// Block centered in both axes.
	assert.Contains(t, filter, "x=(w-text_w)/2")
	assert.Contains(t, filter, "y=(h-text_h)/2")
}
