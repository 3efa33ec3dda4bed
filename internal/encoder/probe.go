package encoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Prober reports a media file's duration in milliseconds.
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (int64, error)
}

// ProbeResult is the subset of ffprobe's JSON output zashedit reads.
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

type ProbeStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type ProbeFormat struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// DurationMillis prefers the container duration and falls back to the
// longest stream.
func (r ProbeResult) DurationMillis() int64 {
	secs := parseSeconds(r.Format.Duration)
	if secs <= 0 {
		for _, s := range r.Streams {
			if d := parseSeconds(s.Duration); d > secs {
				secs = d
			}
		}
	}
	if secs <= 0 {
		return 0
	}
	return int64(math.Round(secs * 1000))
}

func (r ProbeResult) HasVideo() bool {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "video") {
			return true
		}
	}
	return false
}

// FFprobe inspects files with the ffprobe binary.
type FFprobe struct {
	Binary string
}

func (p FFprobe) Inspect(ctx context.Context, path string) (ProbeResult, error) {
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return ProbeResult{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return ProbeResult{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return ProbeResult{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return ParseProbe(output)
}

func (p FFprobe) ProbeDuration(ctx context.Context, path string) (int64, error) {
	res, err := p.Inspect(ctx, path)
	if err != nil {
		return 0, err
	}
	ms := res.DurationMillis()
	if ms <= 0 {
		return 0, fmt.Errorf("ffprobe reported no duration for %s", path)
	}
	return ms, nil
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(data []byte) (ProbeResult, error) {
	var res ProbeResult
	if err := json.Unmarshal(data, &res); err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return res, nil
}

func parseSeconds(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
