package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zash3dit/zashedit/internal/apperr"
	"github.com/zash3dit/zashedit/internal/timeline"
)

func sampleProject() *timeline.Project {
	p := &timeline.Project{ID: 1, Name: "Project One", FrameRate: 30}
	a := timeline.NewVideoClip(1, "/media/intro.mp4", 2000)
	a.ID = 1
	b := timeline.NewVideoClip(1, "/media/b roll.mov", 1500)
	b.ID, b.Position = 2, 1
	p.VideoClips = []timeline.VideoClip{b, a}
	timeline.Relayout(p)
	return p
}

func TestGenerateEDL_Cuts(t *testing.T) {
	edl := GenerateEDL(sampleProject(), "")

	for _, want := range []string{
		"TITLE: Project One",
		"FCM: NON-DROP FRAME",
		"001  AX       V     C        00:00:00:00 00:00:02:00 00:00:00:00 00:00:02:00",
		"* FROM CLIP NAME:  intro",
		"* MEDIA PATH:  /media/intro.mp4",
		"002  AX       V     C        00:00:00:00 00:00:01:15 00:00:02:00 00:00:03:15",
		"* FROM CLIP NAME:  b roll",
	} {
		if !strings.Contains(edl, want) {
			t.Errorf("EDL missing %q:\n%s", want, edl)
		}
	}
}

func TestGenerateEDL_Dissolve(t *testing.T) {
	p := sampleProject()
	p.VideoClips[0].TransitionType = timeline.TransitionDissolve
	p.VideoClips[0].TransitionDuration = 500

	edl := GenerateEDL(p, "Dissolve")

	for _, want := range []string{
		"002  AX       V     C        00:00:02:00 00:00:02:00 00:00:02:00 00:00:02:00",
		"002  AX       V     D    015 00:00:00:00 00:00:01:15 00:00:02:00 00:00:03:15",
		"* TO CLIP NAME:  b roll",
	} {
		if !strings.Contains(edl, want) {
			t.Errorf("EDL missing %q:\n%s", want, edl)
		}
	}
}

func TestEvents_WipeAndAudio(t *testing.T) {
	p := sampleProject()
	p.VideoClips[0].TransitionType = timeline.TransitionSlide
	p.AudioClips = []timeline.AudioClip{{ID: 9, ProjectID: 1, FilePath: "/media/song.mp3", StartTime: 500, Duration: 1000, Volume: 1}}

	events := Events(p)
	if len(events) != 4 {
		t.Fatalf("event count = %d, want 4", len(events))
	}
	if e := events[2]; e.Edit != EditWipe || e.EditFrames != 30 {
		t.Errorf("transition event = %+v, want W001 of 30 frames", e)
	}
	audio := events[3]
	if audio.Track != "A" || audio.Number != 3 || audio.RecordIn != 500 || audio.RecordOut != 1500 {
		t.Errorf("audio event = %+v", audio)
	}
}

func TestGenerateEDL_TitleFallback(t *testing.T) {
	p := sampleProject()
	p.Name = "<<>>"
	if edl := GenerateEDL(p, "  "); !strings.HasPrefix(edl, "TITLE: ____\n") {
		t.Errorf("title line = %q", strings.SplitN(edl, "\n", 2)[0])
	}
	p.Name = "\x00"
	if edl := GenerateEDL(p, ""); !strings.HasPrefix(edl, "TITLE: "+defaultTitle) {
		t.Errorf("title line = %q", strings.SplitN(edl, "\n", 2)[0])
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	res, err := Write(sampleProject(), Request{OutputDir: dir, Title: "Cut 1"})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if res.OutputPath != filepath.Join(dir, "Cut 1.edl") || res.EventCount != 2 || res.Format != "edl" {
		t.Errorf("result = %+v", res)
	}
	data, err := os.ReadFile(res.OutputPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "TITLE: Cut 1") {
		t.Errorf("file starts with %q", strings.SplitN(string(data), "\n", 2)[0])
	}

	_, err = Write(sampleProject(), Request{OutputDir: filepath.Join(dir, "missing")})
	if !apperr.Is(err, apperr.KindInvalidInput) || apperr.StageOf(err) != apperr.StageExport {
		t.Errorf("Write(missing dir) error = %v, want InvalidInput at export", err)
	}
}

func TestMsToTimecode(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		fps  int
		want string
	}{
		{name: "zero", ms: 0, fps: 30, want: "00:00:00:00"},
		{name: "one second", ms: 1000, fps: 30, want: "00:00:01:00"},
		{name: "fractional second", ms: 500, fps: 30, want: "00:00:00:15"},
		{name: "one minute", ms: 60000, fps: 30, want: "00:01:00:00"},
		{name: "one hour", ms: 3600000, fps: 30, want: "01:00:00:00"},
		{name: "25 fps", ms: 1040, fps: 25, want: "00:00:01:01"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := msToTimecode(tc.ms, tc.fps); got != tc.want {
				t.Fatalf("msToTimecode(%d, %d) = %q, want %q", tc.ms, tc.fps, got, tc.want)
			}
		})
	}
}
