// Package timeline holds the project model: a video track laid out
// end-to-end, a free-standing audio track and text overlays.
package timeline

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultTransitionDuration int64 = 1000
	DefaultFrameRate                = 30
	DefaultResolution               = "1920x1080"
)

type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseResolution parses a "WIDTHxHEIGHT" string.
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Resolution{}, fmt.Errorf("invalid resolution %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Resolution{}, fmt.Errorf("invalid resolution width %q: %w", w, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Resolution{}, fmt.Errorf("invalid resolution height %q: %w", h, err)
	}
	if width <= 0 || height <= 0 {
		return Resolution{}, fmt.Errorf("invalid resolution %q: dimensions must be positive", s)
	}
	return Resolution{Width: width, Height: height}, nil
}

// Project is the aggregate root. Times are milliseconds since the epoch.
type Project struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	CreatedAt    int64         `json:"created_at"`
	ModifiedAt   int64         `json:"modified_at"`
	Resolution   Resolution    `json:"resolution"`
	FrameRate    int           `json:"frame_rate"`
	VideoClips   []VideoClip   `json:"video_clips"`
	AudioClips   []AudioClip   `json:"audio_clips"`
	TextOverlays []TextOverlay `json:"text_overlays"`
}

type VideoClip struct {
	ID                 int64          `json:"id"`
	ProjectID          int64          `json:"project_id"`
	FilePath           string         `json:"file_path"`
	StartTime          int64          `json:"start_time"`
	Duration           int64          `json:"duration"`
	Position           int            `json:"position"`
	TrimStart          int64          `json:"trim_start"`
	TrimEnd            int64          `json:"trim_end"`
	Filter             Filter         `json:"filter"`
	Brightness         float64        `json:"brightness"`
	Contrast           float64        `json:"contrast"`
	Saturation         float64        `json:"saturation"`
	PlaybackSpeed      float64        `json:"playback_speed"`
	TransitionType     TransitionType `json:"transition_type"`
	TransitionDuration int64          `json:"transition_duration"`
}

// NewVideoClip returns a clip with neutral effect values.
func NewVideoClip(projectID int64, path string, duration int64) VideoClip {
	return VideoClip{
		ProjectID:          projectID,
		FilePath:           path,
		Duration:           duration,
		Filter:             FilterNone,
		Contrast:           1,
		Saturation:         1,
		PlaybackSpeed:      1,
		TransitionType:     TransitionNone,
		TransitionDuration: DefaultTransitionDuration,
	}
}

func (c VideoClip) Interval() Interval {
	return Interval{Start: c.StartTime, Duration: c.Duration}
}

// HasTransition reports whether the clip's trailing edge blends into the next clip.
func (c VideoClip) HasTransition() bool {
	return c.TransitionType != TransitionNone
}

type AudioClip struct {
	ID        int64   `json:"id"`
	ProjectID int64   `json:"project_id"`
	FilePath  string  `json:"file_path"`
	StartTime int64   `json:"start_time"`
	Duration  int64   `json:"duration"`
	Position  int     `json:"position"`
	Volume    float64 `json:"volume"`
}

func (a AudioClip) Interval() Interval {
	return Interval{Start: a.StartTime, Duration: a.Duration}
}

type TextOverlay struct {
	ID        int64   `json:"id"`
	ProjectID int64   `json:"project_id"`
	Text      string  `json:"text"`
	StartTime int64   `json:"start_time"`
	Duration  int64   `json:"duration"`
	Position  int     `json:"position"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	FontSize  int     `json:"font_size"`
	Color     string  `json:"color"`
}

func (o TextOverlay) Interval() Interval {
	return Interval{Start: o.StartTime, Duration: o.Duration}
}

// Interval is a half-open time range [Start, Start+Duration).
type Interval struct {
	Start    int64
	Duration int64
}

func (i Interval) End() int64 {
	return i.Start + i.Duration
}

func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End() && other.Start < i.End()
}

// VideoClip returns the clip with the given id.
func (p *Project) VideoClip(id int64) (VideoClip, bool) {
	for _, c := range p.VideoClips {
		if c.ID == id {
			return c, true
		}
	}
	return VideoClip{}, false
}

func (p *Project) AudioClip(id int64) (AudioClip, bool) {
	for _, a := range p.AudioClips {
		if a.ID == id {
			return a, true
		}
	}
	return AudioClip{}, false
}

func (p *Project) TextOverlay(id int64) (TextOverlay, bool) {
	for _, o := range p.TextOverlays {
		if o.ID == id {
			return o, true
		}
	}
	return TextOverlay{}, false
}

// VideoDuration is the length of the video track.
func (p *Project) VideoDuration() int64 {
	var total int64
	for _, c := range p.VideoClips {
		total += c.Duration
	}
	return total
}

// Clone returns a deep copy so callers can edit without touching shared snapshots.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	out := *p
	out.VideoClips = append([]VideoClip(nil), p.VideoClips...)
	out.AudioClips = append([]AudioClip(nil), p.AudioClips...)
	out.TextOverlays = append([]TextOverlay(nil), p.TextOverlays...)
	return &out
}

// Touch advances ModifiedAt to now, never moving it backwards.
func (p *Project) Touch(nowMillis int64) {
	if nowMillis < p.CreatedAt {
		nowMillis = p.CreatedAt
	}
	if nowMillis > p.ModifiedAt {
		p.ModifiedAt = nowMillis
	}
}
