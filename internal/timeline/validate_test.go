package timeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zash3dit/zashedit/internal/apperr"
)

func testProject() *Project {
	p := &Project{
		ID:         1,
		Name:       "Holiday",
		CreatedAt:  1000,
		ModifiedAt: 1000,
		Resolution: Resolution{Width: 1920, Height: 1080},
		FrameRate:  30,
	}
	a := NewVideoClip(1, "/media/a.mp4", 5000)
	a.ID, a.Position = 10, 0
	b := NewVideoClip(1, "/media/b.mp4", 3000)
	b.ID, b.Position, b.StartTime = 11, 1, 5000
	p.VideoClips = []VideoClip{a, b}
	return p
}

func TestValidate_ValidProject(t *testing.T) {
	if err := Validate(testProject()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Project)
	}{
		{"zero frame rate", func(p *Project) { p.FrameRate = 0 }},
		{"modified before created", func(p *Project) { p.ModifiedAt = 10 }},
		{"duplicate position", func(p *Project) { p.VideoClips[1].Position = 0 }},
		{"gap in positions", func(p *Project) { p.VideoClips[1].Position = 2 }},
		{"broken start chain", func(p *Project) { p.VideoClips[1].StartTime = 4000 }},
		{"trim end past duration", func(p *Project) { p.VideoClips[0].TrimEnd = 6000 }},
		{"trim end before start", func(p *Project) { p.VideoClips[0].TrimStart, p.VideoClips[0].TrimEnd = 300, 200 }},
		{"brightness", func(p *Project) { p.VideoClips[0].Brightness = 1.5 }},
		{"contrast", func(p *Project) { p.VideoClips[0].Contrast = -0.1 }},
		{"saturation", func(p *Project) { p.VideoClips[0].Saturation = 2.1 }},
		{"speed", func(p *Project) { p.VideoClips[0].PlaybackSpeed = 3 }},
		{"unknown filter", func(p *Project) { p.VideoClips[0].Filter = Filter(42) }},
		{"foreign clip", func(p *Project) { p.VideoClips[0].ProjectID = 99 }},
		{"negative volume", func(p *Project) {
			p.AudioClips = []AudioClip{{ProjectID: 1, FilePath: "/m.mp3", Duration: 10, Volume: -1}}
		}},
		{"overlay font size", func(p *Project) {
			p.TextOverlays = []TextOverlay{{Text: "hi", Duration: 100, FontSize: 100, Color: "#FFFFFF"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProject()
			tt.mutate(p)
			err := Validate(p)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !apperr.Is(err, apperr.KindInvalidInput) {
				t.Fatalf("Validate() kind = %q, want %q", apperr.KindOf(err), apperr.KindInvalidInput)
			}
		})
	}
}

func TestValidateOverlayRules(t *testing.T) {
	if err := ValidateFontSize(100); err == nil {
		t.Error("font size 100 accepted")
	}
	if err := ValidateFontSize(8); err != nil {
		t.Errorf("font size 8 rejected: %v", err)
	}
	if err := ValidateColor("red"); err == nil {
		t.Error(`color "red" accepted`)
	}
	if err := ValidateColor("#a0B1c2"); err != nil {
		t.Errorf("color #a0B1c2 rejected: %v", err)
	}
	if err := ValidateOverlayText("<script>alert(1)</script>"); err == nil {
		t.Error("text with <script> accepted")
	}
	if err := ValidateOverlayText("tab\there"); err == nil {
		t.Error("text with control character accepted")
	}
	if err := ValidateOverlayText(strings.Repeat("a", MaxTextLength+1)); err == nil {
		t.Error("overlong text accepted")
	}
	if err := ValidateOverlayText("Hello world"); err != nil {
		t.Errorf("plain text rejected: %v", err)
	}
	if err := ValidateTimeWindow(0, MaxWindowDuration+1); err == nil {
		t.Error("window longer than an hour accepted")
	}
}

func TestValidateMediaPath(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.MP4")
	if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	exe := filepath.Join(dir, "x.exe")
	if err := os.WriteFile(exe, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"valid", video, false},
		{"exe", "/tmp/x.exe", true},
		{"existing exe", exe, true},
		{"missing", filepath.Join(dir, "missing.mp4"), true},
		{"traversal", dir + "/../clip.mp4", true},
		{"empty", "", true},
		{"too long", "/" + strings.Repeat("a", MaxPathLength) + ".mp4", true},
		{"directory", filepath.Join(dir, "folder.mp4"), true},
	}
	if err := os.Mkdir(filepath.Join(dir, "folder.mp4"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMediaPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMediaPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestRelayout_ChainsVideoTrack(t *testing.T) {
	p := testProject()
	p.VideoClips[0].Position, p.VideoClips[1].Position = 4, 2
	p.VideoClips[0].StartTime, p.VideoClips[1].StartTime = 77, 99

	Relayout(p)

	if p.VideoClips[0].ID != 11 || p.VideoClips[0].Position != 0 || p.VideoClips[0].StartTime != 0 {
		t.Fatalf("first clip = %+v", p.VideoClips[0])
	}
	if p.VideoClips[1].ID != 10 || p.VideoClips[1].Position != 1 || p.VideoClips[1].StartTime != 3000 {
		t.Fatalf("second clip = %+v", p.VideoClips[1])
	}
	if err := Validate(p); err != nil {
		t.Fatalf("Validate() after Relayout error = %v", err)
	}
}

func TestParseEnums(t *testing.T) {
	if f, err := ParseFilter("SEPIA"); err != nil || f != FilterSepia {
		t.Errorf("ParseFilter(SEPIA) = %v, %v", f, err)
	}
	if f, err := ParseFilter("bw"); err != nil || f != FilterBlackAndWhite {
		t.Errorf("ParseFilter(bw) = %v, %v", f, err)
	}
	if _, err := ParseFilter("GLOW"); err == nil {
		t.Error("ParseFilter(GLOW) accepted")
	}
	if tr, err := ParseTransition("FADE_IN_OUT"); err != nil || tr != TransitionFade {
		t.Errorf("ParseTransition(FADE_IN_OUT) = %v, %v", tr, err)
	}
	if _, err := ParseTransition("spin"); err == nil {
		t.Error("ParseTransition(spin) accepted")
	}
}

func TestParseResolution(t *testing.T) {
	r, err := ParseResolution("1280x720")
	if err != nil || r.Width != 1280 || r.Height != 720 {
		t.Fatalf("ParseResolution = %v, %v", r, err)
	}
	if r.String() != "1280x720" {
		t.Errorf("String() = %q", r.String())
	}
	for _, bad := range []string{"", "1280", "0x720", "axb"} {
		if _, err := ParseResolution(bad); err == nil {
			t.Errorf("ParseResolution(%q) accepted", bad)
		}
	}
}

func TestInterval_Overlaps(t *testing.T) {
	a := Interval{Start: 0, Duration: 5000}
	if !a.Overlaps(Interval{Start: 4999, Duration: 10}) {
		t.Error("expected overlap at 4999")
	}
	if a.Overlaps(Interval{Start: 5000, Duration: 10}) {
		t.Error("half-open intervals must not overlap at the boundary")
	}
}
