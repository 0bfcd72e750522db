// Package audio picks one background track from the local library.
package audio

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"quote-shorts-pipeline/config"
	"quote-shorts-pipeline/types"
)

// Selector picks background audio uniformly at random from the library
// directory. The library is read-only and safe for concurrent runs.
type Selector struct {
	cfg *config.Config
}

// New creates a new Selector.
func New(cfg *config.Config) *Selector {
	return &Selector{cfg: cfg}
}

// Select returns one track from libraryDir. An empty or matchless directory
// is a setup problem: fatal, never retried.
func (s *Selector) Select(libraryDir string) (types.MediaAsset, error) {
	entries, err := os.ReadDir(libraryDir)
	if err != nil {
		return types.MediaAsset{}, types.Resource(fmt.Errorf("read audio library %s: %w", libraryDir, err))
	}

	var tracks []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if s.allowed(filepath.Ext(entry.Name())) {
			tracks = append(tracks, filepath.Join(libraryDir, entry.Name()))
		}
	}

	if len(tracks) == 0 {
		return types.MediaAsset{}, types.Resource(fmt.Errorf("%w in %s", types.ErrNoAudioAvailable, libraryDir))
	}

	track := tracks[rand.Intn(len(tracks))]

	fi, err := os.Stat(track)
	if err != nil || fi.Size() == 0 {
		return types.MediaAsset{}, types.Resource(fmt.Errorf("audio file %s is empty or unreadable", track))
	}

	dur, err := probeDuration(track)
	if err != nil {
		log.Printf("[audio] Warning: could not measure %s: %v", filepath.Base(track), err)
	}

	log.Printf("[audio] ✅ Selected track: %s (%.1fs)", filepath.Base(track), dur)
	return types.MediaAsset{
		Path:        track,
		Kind:        types.KindAudio,
		Format:      strings.TrimPrefix(strings.ToLower(filepath.Ext(track)), "."),
		Valid:       true,
		DurationSec: dur,
	}, nil
}

func (s *Selector) allowed(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range s.cfg.Audio.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
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
