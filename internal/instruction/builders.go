package instruction

import (
	"fmt"
	"strings"

	"github.com/zash3dit/zashedit/internal/apperr"
	"github.com/zash3dit/zashedit/internal/timeline"
)

var reencode = []string{"-c:v", "libx264", "-c:a", "aac"}

// Copy remuxes a file without touching its streams.
func Copy(stage apperr.Stage, src, out string) Instruction {
	return Instruction{
		Stage:         stage,
		Inputs:        []Input{{Path: src}},
		OutputOptions: []string{"-c", "copy"},
		OutputPath:    out,
	}
}

// Trim re-encodes the [startMs, endMs) range of src.
func Trim(src, out string, startMs, endMs int64) Instruction {
	return Instruction{
		Stage:         apperr.StageTrim,
		Inputs:        []Input{{Path: src, Options: []string{"-ss", Seconds(startMs)}}},
		OutputOptions: append([]string{"-t", Seconds(endMs - startMs)}, reencode...),
		OutputPath:    out,
	}
}

// SplitHead stream-copies everything before atMs.
func SplitHead(src, out string, atMs int64) Instruction {
	return Instruction{
		Stage:         apperr.StageSplit,
		Inputs:        []Input{{Path: src}},
		OutputOptions: []string{"-t", Seconds(atMs), "-c", "copy"},
		OutputPath:    out,
	}
}

// SplitTail stream-copies everything from atMs on.
func SplitTail(src, out string, atMs int64) Instruction {
	return Instruction{
		Stage:         apperr.StageSplit,
		Inputs:        []Input{{Path: src}},
		OutputOptions: []string{"-ss", Seconds(atMs), "-c", "copy"},
		OutputPath:    out,
	}
}

// Concat joins the sources back to back with the concat filter.
func Concat(srcs []string, out string) Instruction {
	inputs := make([]Input, len(srcs))
	var graph strings.Builder
	for i, src := range srcs {
		inputs[i] = Input{Path: src}
		fmt.Fprintf(&graph, "[%d:v][%d:a]", i, i)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=1:a=1[v][a]", len(srcs))
	return Instruction{
		Stage:         apperr.StageMerge,
		Inputs:        inputs,
		FilterGraph:   graph.String(),
		Maps:          []string{"[v]", "[a]"},
		OutputOptions: append([]string(nil), reencode...),
		OutputPath:    out,
	}
}

// Segment is one clip of a transition chain. Transition and
// TransitionDuration describe the blend into the following segment.
type Segment struct {
	Path               string
	Duration           int64
	Transition         timeline.TransitionType
	TransitionDuration int64
}

// XfadeName maps a transition to the xfade filter's transition name.
func XfadeName(t timeline.TransitionType) string {
	switch t {
	case timeline.TransitionFade:
		return "fade"
	case timeline.TransitionSlide:
		return "wipeleft"
	case timeline.TransitionDissolve:
		return "dissolve"
	}
	return ""
}

// Transition chains the segments pairwise: an xfade/acrossfade pair where the
// leading segment carries a transition, a two-input concat where it does not.
// Each xfade starts transitionDuration before the end of everything joined so
// far. It also returns the resulting output length in milliseconds.
func Transition(segs []Segment, out string) (Instruction, int64) {
	inputs := make([]Input, len(segs))
	for i, s := range segs {
		inputs[i] = Input{Path: s.Path}
	}
	if len(segs) == 0 {
		return Instruction{Stage: apperr.StageMerge, OutputPath: out}, 0
	}

	var parts []string
	vPrev, aPrev := "[0:v]", "[0:a]"
	length := segs[0].Duration
	for i := 1; i < len(segs); i++ {
		lead := segs[i-1]
		v, a := fmt.Sprintf("[v%d]", i), fmt.Sprintf("[a%d]", i)
		if lead.Transition == timeline.TransitionNone || lead.TransitionDuration <= 0 {
			parts = append(parts, fmt.Sprintf("%s%s[%d:v][%d:a]concat=n=2:v=1:a=1%s%s", vPrev, aPrev, i, i, v, a))
			length += segs[i].Duration
		} else {
			d := lead.TransitionDuration
			parts = append(parts,
				fmt.Sprintf("%s[%d:v]xfade=transition=%s:duration=%s:offset=%s%s",
					vPrev, i, XfadeName(lead.Transition), Seconds(d), Seconds(length-d), v),
				fmt.Sprintf("%s[%d:a]acrossfade=d=%s%s", aPrev, i, Seconds(d), a),
			)
			length += segs[i].Duration - d
		}
		vPrev, aPrev = v, a
	}

	return Instruction{
		Stage:         apperr.StageMerge,
		Inputs:        inputs,
		FilterGraph:   strings.Join(parts, ";"),
		Maps:          []string{vPrev, aPrev},
		OutputOptions: append([]string(nil), reencode...),
		OutputPath:    out,
	}, length
}

// EffectParams are the colour and speed settings rendered by Effects.
type EffectParams struct {
	Filter        timeline.Filter
	Brightness    float64
	Contrast      float64
	Saturation    float64
	PlaybackSpeed float64
}

// FilterExpr returns the video filter for a colour preset, or "" for none.
func FilterExpr(f timeline.Filter) string {
	switch f {
	case timeline.FilterBlackAndWhite:
		return "format=gray"
	case timeline.FilterSepia:
		return "colorchannelmixer=.393:.769:.189:0:.349:.686:.168:0:.272:.534:.131"
	case timeline.FilterVintage:
		return "curves=r='0/0.11 0.42/0.51 1/0.95':g='0/0 0.50/0.48 1/1':b='0/0.22 0.49/0.44 1/0.8'"
	}
	return ""
}

// Effects re-encodes src with the preset, eq adjustments for any non-neutral
// value, and a tempo change when the speed is not 1.
func Effects(src, out string, p EffectParams) Instruction {
	var vf []string
	if expr := FilterExpr(p.Filter); expr != "" {
		vf = append(vf, expr)
	}
	var eq []string
	if p.Brightness != 0 {
		eq = append(eq, "brightness="+number(p.Brightness))
	}
	if p.Contrast != 1 {
		eq = append(eq, "contrast="+number(p.Contrast))
	}
	if p.Saturation != 1 {
		eq = append(eq, "saturation="+number(p.Saturation))
	}
	if len(eq) > 0 {
		vf = append(vf, "eq="+strings.Join(eq, ":"))
	}

	var opts []string
	speed := p.PlaybackSpeed
	if speed > 0 && speed != 1 {
		vf = append(vf, "setpts=PTS/"+number(speed))
		opts = append(opts, "-af", "atempo="+number(speed))
	}
	if len(vf) > 0 {
		opts = append([]string{"-vf", strings.Join(vf, ",")}, opts...)
	}

	return Instruction{
		Stage:         apperr.StageEffects,
		Inputs:        []Input{{Path: src}},
		OutputOptions: append(opts, reencode...),
		OutputPath:    out,
	}
}

// Caption is one drawtext directive. Start and End are relative to the
// clip, in milliseconds.
type Caption struct {
	Text     string
	Color    string
	FontSize int
	X, Y     float64
	Start    int64
	End      int64
}

// DrawText burns the captions in order. With no captions it degrades to Copy.
func DrawText(src, out string, captions []Caption) Instruction {
	if len(captions) == 0 {
		return Copy(apperr.StageOverlay, src, out)
	}
	directives := make([]string, len(captions))
	for i, c := range captions {
		directives[i] = fmt.Sprintf(
			"drawtext=text='%s':fontcolor=0x%s:fontsize=%d:x=%s:y=%s:enable='between(t,%s,%s)'",
			EscapeFilterText(c.Text),
			strings.TrimPrefix(c.Color, "#"),
			c.FontSize,
			placement(c.X, "w"),
			placement(c.Y, "h"),
			Seconds(c.Start),
			Seconds(c.End),
		)
	}
	return Instruction{
		Stage:         apperr.StageOverlay,
		Inputs:        []Input{{Path: src}},
		OutputOptions: append([]string{"-vf", strings.Join(directives, ",")}, reencode...),
		OutputPath:    out,
	}
}

// placement renders a coordinate: values up to 1 are a fraction of the
// frame dimension, larger values are pixels.
func placement(v float64, dim string) string {
	if v <= 1 {
		return dim + "*" + number(v)
	}
	return fmt.Sprintf("%d", int64(v))
}

// AudioMix lays one audio track under the video's own audio. The audio is
// read from offsetMs into its file, delayed by delayMs and scaled by volume.
// Video is stream-copied.
func AudioMix(video, audio, out string, delayMs, offsetMs int64, volume float64) Instruction {
	audioIn := Input{Path: audio}
	if offsetMs > 0 {
		audioIn.Options = []string{"-ss", Seconds(offsetMs)}
	}
	var chain []string
	if delayMs > 0 {
		chain = append(chain, fmt.Sprintf("adelay=%d|%d", delayMs, delayMs))
	}
	if volume != 1 {
		chain = append(chain, "volume="+number(volume))
	}
	graph := "[0:a][1:a]amix=inputs=2:duration=first[aout]"
	if len(chain) > 0 {
		graph = "[1:a]" + strings.Join(chain, ",") + "[mix];[0:a][mix]amix=inputs=2:duration=first[aout]"
	}
	return Instruction{
		Stage:         apperr.StageMix,
		Inputs:        []Input{{Path: video}, audioIn},
		FilterGraph:   graph,
		Maps:          []string{"0:v", "[aout]"},
		OutputOptions: []string{"-c:v", "copy", "-c:a", "aac", "-shortest"},
		OutputPath:    out,
	}
}
