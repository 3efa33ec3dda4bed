package timeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zash3dit/zashedit/internal/apperr"
)

const (
	MaxTextLength     = 500
	MaxWindowDuration = 3_600_000 // one hour, ms
	MinFontSize       = 8
	MaxFontSize       = 72
	MaxPathLength     = 4096

	MinPlaybackSpeed = 0.5
	MaxPlaybackSpeed = 2.0
)

// AllowedExtensions lists the media containers accepted on import.
var AllowedExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
	".mp3": true,
	".wav": true,
}

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

const forbiddenTextChars = `<>"'&`

// Validate checks every structural and numeric invariant of a project and
// returns the first violation as an InvalidInput error.
func Validate(p *Project) error {
	if p == nil {
		return invalid("project is nil")
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalid("project name is required")
	}
	if p.FrameRate <= 0 {
		return invalid("frame rate must be positive, got %d", p.FrameRate)
	}
	if p.Resolution.Width <= 0 || p.Resolution.Height <= 0 {
		return invalid("resolution must be positive, got %s", p.Resolution)
	}
	if p.CreatedAt < 0 || p.ModifiedAt < p.CreatedAt {
		return invalid("modified_at (%d) must not precede created_at (%d)", p.ModifiedAt, p.CreatedAt)
	}

	if err := validateVideoTrack(p); err != nil {
		return err
	}
	if err := validateAudioTrack(p); err != nil {
		return err
	}
	return validateOverlayTrack(p)
}

func validateVideoTrack(p *Project) error {
	positions := make([]int, 0, len(p.VideoClips))
	ids := make(map[int64]bool, len(p.VideoClips))
	for _, c := range p.VideoClips {
		if c.ID != 0 {
			if ids[c.ID] {
				return invalid("duplicate video clip id %d", c.ID)
			}
			ids[c.ID] = true
		}
		if err := checkOwner(p, c.ProjectID, "video clip", c.ID); err != nil {
			return err
		}
		if err := ValidateVideoClip(c); err != nil {
			return err
		}
		positions = append(positions, c.Position)
	}
	if err := checkContiguous("video", positions); err != nil {
		return err
	}

	ordered := append([]VideoClip(nil), p.VideoClips...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })
	var offset int64
	for _, c := range ordered {
		if c.StartTime != offset {
			return invalid("video clip at position %d starts at %d, want %d", c.Position, c.StartTime, offset)
		}
		offset += c.Duration
	}
	return nil
}

// ValidateVideoClip checks the per-clip ranges.
func ValidateVideoClip(c VideoClip) error {
	switch {
	case strings.TrimSpace(c.FilePath) == "":
		return invalid("video clip %d has no file path", c.ID)
	case c.Duration < 0 || c.StartTime < 0:
		return invalid("video clip %d has negative timing", c.ID)
	case c.TrimStart < 0 || c.TrimEnd < c.TrimStart || c.TrimEnd > c.Duration:
		return invalid("video clip %d trim [%d,%d] outside [0,%d]", c.ID, c.TrimStart, c.TrimEnd, c.Duration)
	case !c.Filter.Valid():
		return invalid("video clip %d has unknown filter %d", c.ID, int(c.Filter))
	case !inRange(c.Brightness, -1, 1):
		return invalid("brightness %v outside [-1.0, 1.0]", c.Brightness)
	case !inRange(c.Contrast, 0, 2):
		return invalid("contrast %v outside [0.0, 2.0]", c.Contrast)
	case !inRange(c.Saturation, 0, 2):
		return invalid("saturation %v outside [0.0, 2.0]", c.Saturation)
	case !inRange(c.PlaybackSpeed, MinPlaybackSpeed, MaxPlaybackSpeed):
		return invalid("playback speed %v outside [%v, %v]", c.PlaybackSpeed, MinPlaybackSpeed, MaxPlaybackSpeed)
	case !c.TransitionType.Valid():
		return invalid("video clip %d has unknown transition %d", c.ID, int(c.TransitionType))
	case c.TransitionDuration < 0:
		return invalid("transition duration must not be negative")
	}
	return nil
}

func validateAudioTrack(p *Project) error {
	positions := make([]int, 0, len(p.AudioClips))
	for _, a := range p.AudioClips {
		if err := checkOwner(p, a.ProjectID, "audio clip", a.ID); err != nil {
			return err
		}
		if err := ValidateAudioClip(a); err != nil {
			return err
		}
		positions = append(positions, a.Position)
	}
	return checkContiguous("audio", positions)
}

func ValidateAudioClip(a AudioClip) error {
	switch {
	case strings.TrimSpace(a.FilePath) == "":
		return invalid("audio clip %d has no file path", a.ID)
	case a.StartTime < 0 || a.Duration < 0:
		return invalid("audio clip %d has negative timing", a.ID)
	case !(a.Volume >= 0):
		return invalid("volume %v must be >= 0", a.Volume)
	}
	return nil
}

func validateOverlayTrack(p *Project) error {
	positions := make([]int, 0, len(p.TextOverlays))
	for _, o := range p.TextOverlays {
		if err := checkOwner(p, o.ProjectID, "text overlay", o.ID); err != nil {
			return err
		}
		if err := ValidateOverlay(o); err != nil {
			return err
		}
		positions = append(positions, o.Position)
	}
	return checkContiguous("overlay", positions)
}

// ValidateOverlay applies the text, timing, placement, font and color rules.
func ValidateOverlay(o TextOverlay) error {
	if err := ValidateOverlayText(o.Text); err != nil {
		return err
	}
	if err := ValidateTimeWindow(o.StartTime, o.Duration); err != nil {
		return err
	}
	if !(o.X >= 0) || !(o.Y >= 0) {
		return invalid("overlay position (%v,%v) must not be negative", o.X, o.Y)
	}
	if err := ValidateFontSize(o.FontSize); err != nil {
		return err
	}
	return ValidateColor(o.Color)
}

func ValidateOverlayText(text string) error {
	if strings.TrimSpace(text) == "" {
		return invalid("overlay text is required")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return invalid("overlay text exceeds %d characters", MaxTextLength)
	}
	if strings.ContainsAny(text, forbiddenTextChars) {
		return invalid("overlay text must not contain any of %s", forbiddenTextChars)
	}
	for _, r := range text {
		if unicode.IsControl(r) {
			return invalid("overlay text contains control character %U", r)
		}
	}
	return nil
}

func ValidateTimeWindow(start, duration int64) error {
	if start < 0 {
		return invalid("start time must not be negative")
	}
	if duration <= 0 || duration > MaxWindowDuration {
		return invalid("duration %d outside (0, %d]", duration, MaxWindowDuration)
	}
	return nil
}

func ValidateFontSize(size int) error {
	if size < MinFontSize || size > MaxFontSize {
		return invalid("font size %d outside [%d, %d]", size, MinFontSize, MaxFontSize)
	}
	return nil
}

func ValidateColor(color string) error {
	if !colorPattern.MatchString(color) {
		return invalid("color %q must look like #RRGGBB", color)
	}
	return nil
}

// ValidateMediaPath checks an import candidate: bounded length, no traversal,
// an allowed extension, and an existing regular file.
func ValidateMediaPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return invalid("file path is required")
	}
	if len(path) > MaxPathLength {
		return invalid("file path exceeds %d characters", MaxPathLength)
	}
	if strings.Contains(path, "..") {
		return invalid("file path must not contain path traversal")
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !AllowedExtensions[ext] {
		return invalid("unsupported file extension %q", ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return invalid("file does not exist")
		}
		return apperr.Wrap(apperr.KindInvalidInput, "", "cannot inspect file", err)
	}
	if info.IsDir() {
		return invalid("file path is a directory")
	}
	return nil
}

func checkOwner(p *Project, owner int64, what string, id int64) error {
	if p.ID != 0 && owner != 0 && owner != p.ID {
		return invalid("%s %d belongs to project %d, not %d", what, id, owner, p.ID)
	}
	return nil
}

func checkContiguous(track string, positions []int) error {
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)
	for i, pos := range sorted {
		if pos != i {
			return invalid("%s positions must be unique and contiguous from 0, got %v", track, sorted)
		}
	}
	return nil
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func invalid(format string, args ...any) error {
	return apperr.New(apperr.KindInvalidInput, "", fmt.Sprintf(format, args...))
}
