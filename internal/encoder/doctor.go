package encoder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/zash3dit/zashedit/internal/logging"
)

const defaultDoctorTTL = 5 * time.Minute

// ToolInfo is the availability of one external binary.
type ToolInfo struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Capabilities reports which encoder tooling is installed.
type Capabilities struct {
	FFmpeg   ToolInfo  `json:"ffmpeg"`
	FFprobe  ToolInfo  `json:"ffprobe"`
	DryRun   bool      `json:"dry_run"`
	ProbedAt time.Time `json:"probed_at"`
}

// CanEncode reports whether edits that need the encoder can run.
func (c *Capabilities) CanEncode() bool {
	return c.DryRun || c.FFmpeg.Available
}

// Checker probes the environment.
type Checker interface {
	Check(ctx context.Context) (*Capabilities, error)
}

// ToolCheck runs "<binary> -version" for ffmpeg and ffprobe.
type ToolCheck struct {
	FFmpeg  string
	FFprobe string
	DryRun  bool
	Timeout time.Duration
}

func (t ToolCheck) Check(ctx context.Context) (*Capabilities, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return &Capabilities{
		FFmpeg:   probeTool(ctx, t.FFmpeg),
		FFprobe:  probeTool(ctx, t.FFprobe),
		DryRun:   t.DryRun,
		ProbedAt: time.Now(),
	}, nil
}

func probeTool(ctx context.Context, binary string) ToolInfo {
	path, err := exec.LookPath(binary)
	if err != nil {
		return ToolInfo{Error: err.Error()}
	}
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "-version")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return ToolInfo{Path: path, Error: fmt.Sprintf("%s -version: %v", binary, err)}
	}
	return ToolInfo{Available: true, Path: path, Version: parseVersion(stdout.String())}
}

// parseVersion pulls "6.1.1" out of "ffmpeg version 6.1.1 Copyright ...".
func parseVersion(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

// CachedDoctor caches probe results for a TTL so status requests do not
// spawn processes every time.
type CachedDoctor struct {
	checker Checker
	ttl     time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedDoctor(checker Checker, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		checker: checker,
		ttl:     defaultDoctorTTL,
		logger:  logging.WithComponent(logging.OrDiscard(logger), "doctor"),
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Peek returns the last probe result without probing.
func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh probes regardless of freshness. A failed probe falls back to the
// stale result when there is one.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.checker.Check(ctx)
	if err != nil {
		d.logger.Warn("encoder probe failed", "error", err)
		if d.cached != nil {
			return d.cached, nil
		}
		return nil, err
	}
	d.logger.Info("encoder probe complete",
		"ffmpeg", caps.FFmpeg.Available,
		"ffmpeg_version", caps.FFmpeg.Version,
		"ffprobe", caps.FFprobe.Available,
		"dry_run", caps.DryRun,
	)
	d.cached = caps
	return caps, nil
}

func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
