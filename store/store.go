// Package store manages on-disk staging of generated artifacts for one run.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"quote-shorts-pipeline/types"
)

// Kind → file extension for allocated paths.
var kindExt = map[string]string{
	"quote-text": ".txt",
	"image":      ".jpg",
	"audio-copy": ".mp3",
	"video":      ".mp4",
}

// AssetStore stages artifacts under a per-run working directory and moves
// finished outputs into the permanent outputs directory without ever
// overwriting an existing file.
type AssetStore struct {
	runID      string
	runDir     string
	outputsDir string

	mu      sync.Mutex
	counter int
}

// New creates the run working directory under outputsDir.
func New(outputsDir, runID string) (*AssetStore, error) {
	runDir := filepath.Join(outputsDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, types.Resource(fmt.Errorf("create run dir %s: %w", runDir, err))
	}
	return &AssetStore{runID: runID, runDir: runDir, outputsDir: outputsDir}, nil
}

// RunDir returns the working directory for this run.
func (s *AssetStore) RunDir() string { return s.runDir }

// Allocate returns a fresh collision-free path inside the run directory for
// the given artifact kind. Paths are never reused within a run.
func (s *AssetStore) Allocate(kind string) string {
	s.mu.Lock()
	n := s.counter
	s.counter++
	s.mu.Unlock()

	ext, ok := kindExt[kind]
	if !ok {
		ext = ".bin"
	}
	return filepath.Join(s.runDir, fmt.Sprintf("%s_%03d%s", kind, n, ext))
}

// AllocateExt is Allocate with an explicit extension, for artifacts whose
// format is decided by the producing stage.
func (s *AssetStore) AllocateExt(kind, ext string) string {
	p := s.Allocate(kind)
	return strings.TrimSuffix(p, filepath.Ext(p)) + ext
}

// Finalize moves a staged artifact into the outputs directory. If the target
// name is taken it appends _1, _2, … — concurrent runs never clobber each
// other's output.
func (s *AssetStore) Finalize(path string) (string, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	target := filepath.Join(s.outputsDir, fmt.Sprintf("%s_%s%s", stem, s.runID, ext))
	for i := 1; ; i++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		target = filepath.Join(s.outputsDir, fmt.Sprintf("%s_%s_%d%s", stem, s.runID, i, ext))
	}

	if err := moveFile(path, target); err != nil {
		return "", types.Resource(fmt.Errorf("finalize %s: %w", base, err))
	}
	return target, nil
}

// Cleanup removes the run directory and everything staged in it. Only called
// on explicit request so partial artifacts stay inspectable after a failure.
func (s *AssetStore) Cleanup() error {
	return os.RemoveAll(s.runDir)
}

// moveFile renames, falling back to copy+remove across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
