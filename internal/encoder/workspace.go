package encoder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Workspace hands out staging paths for encoder outputs and moves finished
// outputs into the media directory.
type Workspace struct {
	staging string
	media   string
}

func NewWorkspace(staging, media string) (*Workspace, error) {
	for _, dir := range []string{staging, media} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create workspace dir %s: %w", dir, err)
		}
	}
	return &Workspace{staging: staging, media: media}, nil
}

func (w *Workspace) StagingDir() string { return w.staging }
func (w *Workspace) MediaDir() string   { return w.media }

// Stage returns a fresh path in the staging directory. The extension of
// like is kept so the encoder picks the same container.
func (w *Workspace) Stage(prefix, like string) string {
	ext := strings.ToLower(filepath.Ext(like))
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(w.staging, prefix+"_"+uuid.NewString()+ext)
}

// Promote moves a staged file into the media directory and returns its new
// path.
func (w *Workspace) Promote(staged string) (string, error) {
	info, err := os.Stat(staged)
	if err != nil {
		return "", fmt.Errorf("staged output missing: %w", err)
	}
	if info.Size() == 0 {
		return "", errors.New("staged output is empty")
	}
	dst := filepath.Join(w.media, filepath.Base(staged))
	if err := os.Rename(staged, dst); err != nil {
		if err := copyFile(staged, dst); err != nil {
			return "", err
		}
		os.Remove(staged)
	}
	return dst, nil
}

// Discard removes staged files, ignoring ones already gone.
func (w *Workspace) Discard(paths ...string) {
	for _, p := range paths {
		if p != "" && filepath.Dir(p) == w.staging {
			os.Remove(p)
		}
	}
}

// Cleanup removes every leftover staged output and reports how many were
// removed.
func (w *Workspace) Cleanup() (int, error) {
	entries, err := os.ReadDir(w.staging)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(w.staging, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func copyFile(src, dst string) error {
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
		os.Remove(dst)
		return err
	}
	return out.Close()
}
