package timeline

import "sort"

// Relayout orders every track by position, renumbers positions from 0 and
// lays video clips end-to-end so each starts where the previous one ends.
func Relayout(p *Project) {
	sort.SliceStable(p.VideoClips, func(i, j int) bool {
		return p.VideoClips[i].Position < p.VideoClips[j].Position
	})
	var offset int64
	for i := range p.VideoClips {
		p.VideoClips[i].Position = i
		p.VideoClips[i].StartTime = offset
		offset += p.VideoClips[i].Duration
	}

	sort.SliceStable(p.AudioClips, func(i, j int) bool {
		return p.AudioClips[i].Position < p.AudioClips[j].Position
	})
	for i := range p.AudioClips {
		p.AudioClips[i].Position = i
	}

	sort.SliceStable(p.TextOverlays, func(i, j int) bool {
		return p.TextOverlays[i].Position < p.TextOverlays[j].Position
	})
	for i := range p.TextOverlays {
		p.TextOverlays[i].Position = i
	}
}

// NextVideoStart is where a clip appended to the video track would start.
func NextVideoStart(p *Project) int64 {
	return p.VideoDuration()
}
