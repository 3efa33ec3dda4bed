// Package export renders a project timeline as a CMX3600 edit decision list
// for hand-off to other editors.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zash3dit/zashedit/internal/apperr"
	"github.com/zash3dit/zashedit/internal/timeline"
)

const (
	defaultReel       = "AX"
	defaultTitle      = "zashedit_export"
	maxTitleLength    = 120
	maxClipNameLength = 160
)

// Events lays out the video track in position order followed by the audio
// track. A clip whose predecessor carries a transition is entered with a
// dissolve or wipe instead of a cut.
func Events(p *timeline.Project) []Event {
	fps := frameRate(p)
	video := append([]timeline.VideoClip(nil), p.VideoClips...)
	sort.SliceStable(video, func(i, j int) bool { return video[i].Position < video[j].Position })
	audio := append([]timeline.AudioClip(nil), p.AudioClips...)
	sort.SliceStable(audio, func(i, j int) bool { return audio[i].Position < audio[j].Position })

	var events []Event
	n := 0
	for i, c := range video {
		n++
		in := Event{
			Number:    n,
			Reel:      defaultReel,
			Track:     "V",
			Edit:      EditCut,
			SourceIn:  0,
			SourceOut: c.Duration,
			RecordIn:  c.StartTime,
			RecordOut: c.StartTime + c.Duration,
			ClipName:  clipName(c.FilePath, c.ID),
			MediaPath: c.FilePath,
		}
		if i > 0 {
			prev := video[i-1]
			if prev.HasTransition() && prev.TransitionDuration > 0 {
				events = append(events, Event{
					Number:    n,
					Reel:      defaultReel,
					Track:     "V",
					Edit:      EditCut,
					SourceIn:  prev.Duration,
					SourceOut: prev.Duration,
					RecordIn:  c.StartTime,
					RecordOut: c.StartTime,
					ClipName:  clipName(prev.FilePath, prev.ID),
					MediaPath: prev.FilePath,
					Outgoing:  true,
				})
				in.Edit = editCode(prev.TransitionType)
				in.EditFrames = frames(prev.TransitionDuration, fps)
			}
		}
		events = append(events, in)
	}
	for _, a := range audio {
		n++
		events = append(events, Event{
			Number:    n,
			Reel:      defaultReel,
			Track:     "A",
			Edit:      EditCut,
			SourceOut: a.Duration,
			RecordIn:  a.StartTime,
			RecordOut: a.StartTime + a.Duration,
			ClipName:  clipName(a.FilePath, a.ID),
			MediaPath: a.FilePath,
		})
	}
	return events
}

// GenerateEDL renders the project. An empty title falls back to the project
// name.
func GenerateEDL(p *timeline.Project, title string) string {
	fps := frameRate(p)
	lines := []string{
		"TITLE: " + edlTitle(p, title),
		"FCM: NON-DROP FRAME",
		"",
	}
	for _, e := range Events(p) {
		tc := fmt.Sprintf("%s %s %s %s",
			msToTimecode(e.SourceIn, fps), msToTimecode(e.SourceOut, fps),
			msToTimecode(e.RecordIn, fps), msToTimecode(e.RecordOut, fps))
		if e.Edit == EditCut {
			lines = append(lines, fmt.Sprintf("%03d  %-8s %-5s C        %s", e.Number, e.Reel, e.Track, tc))
		} else {
			lines = append(lines, fmt.Sprintf("%03d  %-8s %-5s %-4s %03d %s", e.Number, e.Reel, e.Track, e.Edit, e.EditFrames, tc))
		}

		label := "FROM"
		if e.Edit != EditCut {
			label = "TO"
		}
		lines = append(lines, fmt.Sprintf("* %s CLIP NAME:  %s", label, e.ClipName))
		if !e.Outgoing {
			lines = append(lines, fmt.Sprintf("* MEDIA PATH:  %s", e.MediaPath))
		}
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// Write renders the project into <dir>/<title>.edl.
func Write(p *timeline.Project, req Request) (Result, error) {
	if err := ValidateOutputDir(req.OutputDir); err != nil {
		return Result{}, err
	}
	title := edlTitle(p, req.Title)
	out := filepath.Join(req.OutputDir, title+".edl")
	if err := os.WriteFile(out, []byte(GenerateEDL(p, title)), 0o644); err != nil {
		return Result{}, apperr.Resource(apperr.StageExport, "failed to write export file", err)
	}
	return Result{
		Status:     "ok",
		Format:     "edl",
		OutputPath: out,
		EventCount: len(Events(p)),
	}, nil
}

func edlTitle(p *timeline.Project, title string) string {
	if t := SanitizeName(title, maxTitleLength); t != "" {
		return t
	}
	if t := SanitizeName(p.Name, maxTitleLength); t != "" {
		return t
	}
	return defaultTitle
}

func clipName(path string, id int64) string {
	base := filepath.Base(path)
	if name := SanitizeName(strings.TrimSuffix(base, filepath.Ext(base)), maxClipNameLength); name != "" {
		return name
	}
	return fmt.Sprintf("clip_%d", id)
}

func editCode(t timeline.TransitionType) string {
	if t == timeline.TransitionSlide {
		return EditWipe
	}
	return EditDissolve
}

func frameRate(p *timeline.Project) int {
	if p.FrameRate <= 0 {
		return timeline.DefaultFrameRate
	}
	return p.FrameRate
}

func frames(ms int64, fps int) int {
	return int(math.Round(float64(ms) * float64(fps) / 1000.0))
}

func msToTimecode(ms int64, fps int) string {
	total := frames(ms, fps)
	ff := total % fps
	secs := total / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60, ff)
}
