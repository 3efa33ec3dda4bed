// Package editing applies edits to project timelines. Engine computes the
// next project state and the transcode instructions it depends on without
// side effects; Service drives the encoder and the store around it.
package editing

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/zash3dit/zashedit/internal/apperr"
	"github.com/zash3dit/zashedit/internal/instruction"
	"github.com/zash3dit/zashedit/internal/timeline"
)

// Plan is the outcome of an encoder-backed edit. Project is the state to
// persist once every instruction succeeded; its clips reference the staged
// output paths of those instructions. Provisional, when set, is persisted
// before encoding starts.
type Plan struct {
	Stage        apperr.Stage
	Project      *timeline.Project
	Provisional  *timeline.Project
	Instructions []instruction.Instruction
}

// Outputs lists the staged paths the plan's instructions write.
func (p Plan) Outputs() []string {
	out := make([]string, len(p.Instructions))
	for i, in := range p.Instructions {
		out[i] = in.OutputPath
	}
	return out
}

// Engine holds the two inputs edits need from outside: the current time and
// a source of fresh staging paths.
type Engine struct {
	Now   func() time.Time
	Stage func(prefix, like string) string
}

func (e *Engine) nowMillis() int64 {
	if e.Now == nil {
		return time.Now().UnixMilli()
	}
	return e.Now().UnixMilli()
}

// finish bumps ModifiedAt and checks every invariant of the new state.
func (e *Engine) finish(p *timeline.Project, stage apperr.Stage) (*timeline.Project, error) {
	p.Touch(e.nowMillis())
	if err := timeline.Validate(p); err != nil {
		return nil, apperr.WithStage(err, stage)
	}
	return p, nil
}

func (e *Engine) CreateProject(name, resolution string, frameRate int) (*timeline.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid(apperr.StageProject, "project name is required")
	}
	if resolution == "" {
		resolution = timeline.DefaultResolution
	}
	res, err := timeline.ParseResolution(resolution)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, apperr.StageProject, "invalid resolution", err)
	}
	if frameRate == 0 {
		frameRate = timeline.DefaultFrameRate
	}
	now := e.nowMillis()
	p := &timeline.Project{
		Name:         name,
		CreatedAt:    now,
		ModifiedAt:   now,
		Resolution:   res,
		FrameRate:    frameRate,
		VideoClips:   []timeline.VideoClip{},
		AudioClips:   []timeline.AudioClip{},
		TextOverlays: []timeline.TextOverlay{},
	}
	if err := timeline.Validate(p); err != nil {
		return nil, apperr.WithStage(err, apperr.StageProject)
	}
	return p, nil
}

func (e *Engine) RenameProject(snap *timeline.Project, name string) (*timeline.Project, error) {
	p := snap.Clone()
	p.Name = strings.TrimSpace(name)
	return e.finish(p, apperr.StageProject)
}

// ImportVideo appends a clip at the end of the video track.
func (e *Engine) ImportVideo(snap *timeline.Project, path string, duration int64) (*timeline.Project, error) {
	if err := timeline.ValidateMediaPath(path); err != nil {
		return nil, apperr.WithStage(err, apperr.StageImport)
	}
	if duration <= 0 {
		return nil, apperr.Invalid(apperr.StageImport, "duration must be positive, got %d", duration)
	}
	p := snap.Clone()
	c := timeline.NewVideoClip(p.ID, path, duration)
	c.Position = len(p.VideoClips)
	c.StartTime = p.VideoDuration()
	p.VideoClips = append(p.VideoClips, c)
	timeline.Relayout(p)
	return e.finish(p, apperr.StageImport)
}

// ImportAudio appends an audio clip starting at startTime.
func (e *Engine) ImportAudio(snap *timeline.Project, path string, duration, startTime int64, volume float64) (*timeline.Project, error) {
	if err := timeline.ValidateMediaPath(path); err != nil {
		return nil, apperr.WithStage(err, apperr.StageImport)
	}
	if duration <= 0 {
		return nil, apperr.Invalid(apperr.StageImport, "duration must be positive, got %d", duration)
	}
	p := snap.Clone()
	p.AudioClips = append(p.AudioClips, timeline.AudioClip{
		ProjectID: p.ID,
		FilePath:  path,
		StartTime: startTime,
		Duration:  duration,
		Position:  len(p.AudioClips),
		Volume:    volume,
	})
	return e.finish(p, apperr.StageImport)
}

// Trim re-encodes the [start, end) range of a clip and shortens it in place.
func (e *Engine) Trim(snap *timeline.Project, clipID, start, end int64) (Plan, error) {
	idx, err := videoIndex(snap, clipID, apperr.StageTrim)
	if err != nil {
		return Plan{}, err
	}
	c := snap.VideoClips[idx]
	if start < 0 || end > c.Duration || start >= end {
		return Plan{}, apperr.Invalid(apperr.StageTrim, "invalid range [%d, %d) for clip of %d ms", start, end, c.Duration)
	}

	out := e.Stage("trim", c.FilePath)
	p := snap.Clone()
	nc := &p.VideoClips[idx]
	nc.FilePath = out
	nc.Duration = end - start
	nc.TrimStart, nc.TrimEnd = 0, 0
	timeline.Relayout(p)
	if _, err := e.finish(p, apperr.StageTrim); err != nil {
		return Plan{}, err
	}
	return Plan{
		Stage:        apperr.StageTrim,
		Project:      p,
		Instructions: []instruction.Instruction{instruction.Trim(c.FilePath, out, start, end)},
	}, nil
}

// Split cuts a clip in two at the given clip-relative time. Both halves get
// fresh ids; the tail takes the next position and everything after it moves
// one place right.
func (e *Engine) Split(snap *timeline.Project, clipID, at int64) (Plan, error) {
	idx, err := videoIndex(snap, clipID, apperr.StageSplit)
	if err != nil {
		return Plan{}, err
	}
	c := snap.VideoClips[idx]
	if at <= 0 || at >= c.Duration {
		return Plan{}, apperr.Invalid(apperr.StageSplit, "split time %d outside (0, %d)", at, c.Duration)
	}

	headOut := e.Stage("split_head", c.FilePath)
	tailOut := e.Stage("split_tail", c.FilePath)

	head := c
	head.ID = 0
	head.FilePath = headOut
	head.Duration = at
	head.TrimStart, head.TrimEnd = 0, 0
	head.TransitionType = timeline.TransitionNone
	head.TransitionDuration = timeline.DefaultTransitionDuration

	tail := c
	tail.ID = 0
	tail.FilePath = tailOut
	tail.Duration = c.Duration - at
	tail.Position = c.Position + 1
	tail.TrimStart, tail.TrimEnd = 0, 0

	p := snap.Clone()
	clips := make([]timeline.VideoClip, 0, len(p.VideoClips)+1)
	for i, other := range p.VideoClips {
		if i == idx {
			continue
		}
		if other.Position > c.Position {
			other.Position++
		}
		clips = append(clips, other)
	}
	p.VideoClips = append(clips, head, tail)
	timeline.Relayout(p)
	if _, err := e.finish(p, apperr.StageSplit); err != nil {
		return Plan{}, err
	}
	return Plan{
		Stage:   apperr.StageSplit,
		Project: p,
		Instructions: []instruction.Instruction{
			instruction.SplitHead(c.FilePath, headOut, at),
			instruction.SplitTail(c.FilePath, tailOut, at),
		},
	}, nil
}

// Merge joins clips, in position order, into one fresh clip placed at the
// lowest input position. Transitions on all but the last input blend into
// the next input; the last input's transition carries over to the result.
func (e *Engine) Merge(snap *timeline.Project, clipIDs []int64) (Plan, error) {
	if len(clipIDs) < 2 {
		return Plan{}, apperr.Invalid(apperr.StageMerge, "at least 2 clips required for merging, got %d", len(clipIDs))
	}
	seen := make(map[int64]bool, len(clipIDs))
	var inputs []timeline.VideoClip
	for _, id := range clipIDs {
		if seen[id] {
			return Plan{}, apperr.Invalid(apperr.StageMerge, "clip %d listed twice", id)
		}
		seen[id] = true
		c, ok := snap.VideoClip(id)
		if !ok {
			return Plan{}, apperr.NotFound(apperr.StageMerge, "clip %d not found", id)
		}
		inputs = append(inputs, c)
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Position < inputs[j].Position })

	out := e.Stage("merge", inputs[0].FilePath)
	var in instruction.Instruction
	var length int64
	if hasTransitions(inputs) {
		segs := make([]instruction.Segment, len(inputs))
		for i, c := range inputs {
			segs[i] = instruction.Segment{
				Path:               c.FilePath,
				Duration:           c.Duration,
				Transition:         c.TransitionType,
				TransitionDuration: c.TransitionDuration,
			}
			if i < len(inputs)-1 && c.HasTransition() {
				d := c.TransitionDuration
				if d <= 0 || d >= c.Duration || d >= inputs[i+1].Duration {
					return Plan{}, apperr.Invalid(apperr.StageMerge,
						"transition of %d ms on clip %d must be shorter than both joined clips", d, c.ID)
				}
			}
		}
		in, length = instruction.Transition(segs, out)
	} else {
		paths := make([]string, len(inputs))
		for i, c := range inputs {
			paths[i] = c.FilePath
			length += c.Duration
		}
		in = instruction.Concat(paths, out)
	}

	last := inputs[len(inputs)-1]
	merged := timeline.NewVideoClip(snap.ID, out, length)
	merged.Position = inputs[0].Position
	merged.TransitionType = last.TransitionType
	merged.TransitionDuration = last.TransitionDuration

	p := snap.Clone()
	clips := make([]timeline.VideoClip, 0, len(p.VideoClips)-len(inputs)+1)
	for _, c := range p.VideoClips {
		if !seen[c.ID] {
			clips = append(clips, c)
		}
	}
	p.VideoClips = append(clips, merged)
	timeline.Relayout(p)
	if _, err := e.finish(p, apperr.StageMerge); err != nil {
		return Plan{}, err
	}
	return Plan{Stage: apperr.StageMerge, Project: p, Instructions: []instruction.Instruction{in}}, nil
}

func hasTransitions(ordered []timeline.VideoClip) bool {
	for _, c := range ordered[:len(ordered)-1] {
		if c.HasTransition() {
			return true
		}
	}
	return false
}

// Effects are the values ApplyEffects sets on a clip.
type Effects struct {
	Filter        timeline.Filter `json:"filter"`
	Brightness    float64         `json:"brightness"`
	Contrast      float64         `json:"contrast"`
	Saturation    float64         `json:"saturation"`
	PlaybackSpeed float64         `json:"playback_speed"`
}

// NeutralEffects leaves a clip's picture and timing unchanged.
func NeutralEffects() Effects {
	return Effects{Filter: timeline.FilterNone, Contrast: 1, Saturation: 1, PlaybackSpeed: 1}
}

// ApplyEffects stores the effect values on the clip right away (the
// provisional state) and re-encodes the clip with them. Speed changes the
// clip duration to duration/speed.
func (e *Engine) ApplyEffects(snap *timeline.Project, clipID int64, fx Effects) (Plan, error) {
	idx, err := videoIndex(snap, clipID, apperr.StageEffects)
	if err != nil {
		return Plan{}, err
	}

	prov := snap.Clone()
	pc := &prov.VideoClips[idx]
	pc.Filter = fx.Filter
	pc.Brightness = fx.Brightness
	pc.Contrast = fx.Contrast
	pc.Saturation = fx.Saturation
	pc.PlaybackSpeed = fx.PlaybackSpeed
	if err := timeline.ValidateVideoClip(*pc); err != nil {
		return Plan{}, apperr.WithStage(err, apperr.StageEffects)
	}
	if _, err := e.finish(prov, apperr.StageEffects); err != nil {
		return Plan{}, err
	}

	src := snap.VideoClips[idx]
	out := e.Stage("effects", src.FilePath)
	final := prov.Clone()
	fc := &final.VideoClips[idx]
	fc.FilePath = out
	fc.Duration = int64(math.Round(float64(src.Duration) / fx.PlaybackSpeed))
	if fc.Duration != src.Duration {
		fc.TrimStart, fc.TrimEnd = 0, 0
	}
	timeline.Relayout(final)
	if _, err := e.finish(final, apperr.StageEffects); err != nil {
		return Plan{}, err
	}

	return Plan{
		Stage:       apperr.StageEffects,
		Project:     final,
		Provisional: prov,
		Instructions: []instruction.Instruction{instruction.Effects(src.FilePath, out, instruction.EffectParams{
			Filter:        fx.Filter,
			Brightness:    fx.Brightness,
			Contrast:      fx.Contrast,
			Saturation:    fx.Saturation,
			PlaybackSpeed: fx.PlaybackSpeed,
		})},
	}, nil
}

// BurnOverlays draws every overlay that intersects the clip's timeline
// interval into the clip's video. Enable windows are clip-relative.
func (e *Engine) BurnOverlays(snap *timeline.Project, clipID int64) (Plan, error) {
	idx, err := videoIndex(snap, clipID, apperr.StageOverlay)
	if err != nil {
		return Plan{}, err
	}
	c := snap.VideoClips[idx]

	overlays := append([]timeline.TextOverlay(nil), snap.TextOverlays...)
	sort.SliceStable(overlays, func(i, j int) bool { return overlays[i].Position < overlays[j].Position })
	var captions []instruction.Caption
	for _, o := range overlays {
		if !o.Interval().Overlaps(c.Interval()) {
			continue
		}
		if err := timeline.ValidateOverlayText(o.Text); err != nil {
			return Plan{}, apperr.WithStage(err, apperr.StageOverlay)
		}
		captions = append(captions, instruction.Caption{
			Text:     o.Text,
			Color:    o.Color,
			FontSize: o.FontSize,
			X:        o.X,
			Y:        o.Y,
			Start:    max(0, o.StartTime-c.StartTime),
			End:      min(c.Duration, o.Interval().End()-c.StartTime),
		})
	}

	out := e.Stage("overlay", c.FilePath)
	p := snap.Clone()
	p.VideoClips[idx].FilePath = out
	if _, err := e.finish(p, apperr.StageOverlay); err != nil {
		return Plan{}, err
	}
	return Plan{
		Stage:        apperr.StageOverlay,
		Project:      p,
		Instructions: []instruction.Instruction{instruction.DrawText(c.FilePath, out, captions)},
	}, nil
}

// MixAudio mixes audio that overlaps the clip into the clip's soundtrack.
// Only the first overlapping audio clip, in track order, is mixed.
func (e *Engine) MixAudio(snap *timeline.Project, clipID int64) (Plan, error) {
	idx, err := videoIndex(snap, clipID, apperr.StageMix)
	if err != nil {
		return Plan{}, err
	}
	c := snap.VideoClips[idx]

	audio := append([]timeline.AudioClip(nil), snap.AudioClips...)
	sort.SliceStable(audio, func(i, j int) bool { return audio[i].Position < audio[j].Position })

	out := e.Stage("mix", c.FilePath)
	in := instruction.Copy(apperr.StageMix, c.FilePath, out)
	for _, a := range audio {
		if !a.Interval().Overlaps(c.Interval()) {
			continue
		}
		in = instruction.AudioMix(c.FilePath, a.FilePath, out,
			max(0, a.StartTime-c.StartTime),
			max(0, c.StartTime-a.StartTime),
			a.Volume)
		break
	}

	p := snap.Clone()
	p.VideoClips[idx].FilePath = out
	if _, err := e.finish(p, apperr.StageMix); err != nil {
		return Plan{}, err
	}
	return Plan{Stage: apperr.StageMix, Project: p, Instructions: []instruction.Instruction{in}}, nil
}

// SetTransition changes the blend at the clip's trailing edge.
func (e *Engine) SetTransition(snap *timeline.Project, clipID int64, t timeline.TransitionType, duration int64) (*timeline.Project, error) {
	idx, err := videoIndex(snap, clipID, apperr.StageTransition)
	if err != nil {
		return nil, err
	}
	if !t.Valid() {
		return nil, apperr.Invalid(apperr.StageTransition, "unknown transition %d", int(t))
	}
	if duration == 0 {
		duration = timeline.DefaultTransitionDuration
	}
	if duration < 0 || duration > timeline.MaxWindowDuration {
		return nil, apperr.Invalid(apperr.StageTransition, "transition duration %d outside (0, %d]", duration, timeline.MaxWindowDuration)
	}
	p := snap.Clone()
	p.VideoClips[idx].TransitionType = t
	p.VideoClips[idx].TransitionDuration = duration
	return e.finish(p, apperr.StageTransition)
}

// Reorder moves a clip to newPosition and shifts the clips in between.
func (e *Engine) Reorder(snap *timeline.Project, clipID int64, newPosition int) (*timeline.Project, error) {
	if _, err := videoIndex(snap, clipID, apperr.StageReorder); err != nil {
		return nil, err
	}
	n := len(snap.VideoClips)
	if newPosition < 0 || newPosition >= n {
		return nil, apperr.Invalid(apperr.StageReorder, "position %d outside [0, %d]", newPosition, n-1)
	}

	p := snap.Clone()
	timeline.Relayout(p)
	var moved timeline.VideoClip
	rest := make([]timeline.VideoClip, 0, n-1)
	for _, c := range p.VideoClips {
		if c.ID == clipID {
			moved = c
			continue
		}
		rest = append(rest, c)
	}
	ordered := make([]timeline.VideoClip, 0, n)
	ordered = append(ordered, rest[:newPosition]...)
	ordered = append(ordered, moved)
	ordered = append(ordered, rest[newPosition:]...)
	for i := range ordered {
		ordered[i].Position = i
	}
	p.VideoClips = ordered
	timeline.Relayout(p)
	return e.finish(p, apperr.StageReorder)
}

// RemoveVideoClip drops a clip and closes the gap it leaves.
func (e *Engine) RemoveVideoClip(snap *timeline.Project, clipID int64) (*timeline.Project, error) {
	idx, err := videoIndex(snap, clipID, apperr.StageProject)
	if err != nil {
		return nil, err
	}
	p := snap.Clone()
	p.VideoClips = append(p.VideoClips[:idx], p.VideoClips[idx+1:]...)
	timeline.Relayout(p)
	return e.finish(p, apperr.StageProject)
}

// Overlay holds the caller-supplied fields of a text overlay. Zero FontSize
// and empty Color take the defaults.
type Overlay struct {
	Text      string  `json:"text"`
	StartTime int64   `json:"start_time"`
	Duration  int64   `json:"duration"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	FontSize  int     `json:"font_size"`
	Color     string  `json:"color"`
}

const (
	DefaultFontSize = 24
	DefaultColor    = "#FFFFFF"
)

func (o Overlay) withDefaults() Overlay {
	if o.FontSize == 0 {
		o.FontSize = DefaultFontSize
	}
	if o.Color == "" {
		o.Color = DefaultColor
	}
	return o
}

func (e *Engine) AddTextOverlay(snap *timeline.Project, o Overlay) (*timeline.Project, error) {
	o = o.withDefaults()
	p := snap.Clone()
	p.TextOverlays = append(p.TextOverlays, timeline.TextOverlay{
		ProjectID: p.ID,
		Text:      o.Text,
		StartTime: o.StartTime,
		Duration:  o.Duration,
		Position:  len(p.TextOverlays),
		X:         o.X,
		Y:         o.Y,
		FontSize:  o.FontSize,
		Color:     o.Color,
	})
	timeline.Relayout(p)
	return e.finish(p, apperr.StageOverlay)
}

func (e *Engine) UpdateTextOverlay(snap *timeline.Project, overlayID int64, o Overlay) (*timeline.Project, error) {
	idx := -1
	for i, existing := range snap.TextOverlays {
		if existing.ID == overlayID {
			idx = i
		}
	}
	if idx < 0 {
		return nil, apperr.NotFound(apperr.StageOverlay, "overlay %d not found", overlayID)
	}
	o = o.withDefaults()
	p := snap.Clone()
	t := &p.TextOverlays[idx]
	t.Text, t.StartTime, t.Duration = o.Text, o.StartTime, o.Duration
	t.X, t.Y, t.FontSize, t.Color = o.X, o.Y, o.FontSize, o.Color
	return e.finish(p, apperr.StageOverlay)
}

func (e *Engine) DeleteTextOverlay(snap *timeline.Project, overlayID int64) (*timeline.Project, error) {
	p := snap.Clone()
	for i, o := range p.TextOverlays {
		if o.ID == overlayID {
			p.TextOverlays = append(p.TextOverlays[:i], p.TextOverlays[i+1:]...)
			timeline.Relayout(p)
			return e.finish(p, apperr.StageOverlay)
		}
	}
	return nil, apperr.NotFound(apperr.StageOverlay, "overlay %d not found", overlayID)
}

// AudioUpdate changes an audio clip's placement or level; nil fields are
// left alone.
type AudioUpdate struct {
	StartTime *int64   `json:"start_time,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
}

func (e *Engine) UpdateAudioClip(snap *timeline.Project, audioID int64, u AudioUpdate) (*timeline.Project, error) {
	p := snap.Clone()
	for i := range p.AudioClips {
		a := &p.AudioClips[i]
		if a.ID != audioID {
			continue
		}
		if u.StartTime != nil {
			a.StartTime = *u.StartTime
		}
		if u.Volume != nil {
			a.Volume = *u.Volume
		}
		return e.finish(p, apperr.StageAudio)
	}
	return nil, apperr.NotFound(apperr.StageAudio, "audio clip %d not found", audioID)
}

func (e *Engine) DeleteAudioClip(snap *timeline.Project, audioID int64) (*timeline.Project, error) {
	p := snap.Clone()
	for i, a := range p.AudioClips {
		if a.ID == audioID {
			p.AudioClips = append(p.AudioClips[:i], p.AudioClips[i+1:]...)
			timeline.Relayout(p)
			return e.finish(p, apperr.StageAudio)
		}
	}
	return nil, apperr.NotFound(apperr.StageAudio, "audio clip %d not found", audioID)
}

func videoIndex(p *timeline.Project, clipID int64, stage apperr.Stage) (int, error) {
	for i, c := range p.VideoClips {
		if c.ID == clipID {
			return i, nil
		}
	}
	return -1, apperr.NotFound(stage, "clip %d not found", clipID)
}
