package instruction

import (
	"reflect"
	"strings"
	"testing"

	"github.com/zash3dit/zashedit/internal/apperr"
	"github.com/zash3dit/zashedit/internal/timeline"
)

func TestArgs_Copy(t *testing.T) {
	got := Copy(apperr.StageOverlay, "/in/a.mp4", "/out/b.mp4").Args()
	want := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", "/in/a.mp4", "-c", "copy", "/out/b.mp4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Args() = %v, want %v", got, want)
	}
}

func TestTrim(t *testing.T) {
	in := Trim("/in/a.mp4", "/out/t.mp4", 1500, 4000)
	args := strings.Join(in.Args(), " ")
	if !strings.Contains(args, "-ss 1.5 -i /in/a.mp4 -t 2.5 -c:v libx264 -c:a aac /out/t.mp4") {
		t.Fatalf("unexpected trim args: %s", args)
	}
	if in.Stage != apperr.StageTrim {
		t.Errorf("Stage = %q", in.Stage)
	}
}

func TestSplit(t *testing.T) {
	head := strings.Join(SplitHead("/a.mp4", "/h.mp4", 2000).Args(), " ")
	tail := strings.Join(SplitTail("/a.mp4", "/t.mp4", 2000).Args(), " ")
	if !strings.HasSuffix(head, "-i /a.mp4 -t 2 -c copy /h.mp4") {
		t.Errorf("head = %s", head)
	}
	if !strings.HasSuffix(tail, "-i /a.mp4 -ss 2 -c copy /t.mp4") {
		t.Errorf("tail = %s", tail)
	}
}

func TestConcat(t *testing.T) {
	in := Concat([]string{"/a.mp4", "/b.mp4", "/c.mp4"}, "/m.mp4")
	if in.FilterGraph != "[0:v][0:a][1:v][1:a][2:v][2:a]concat=n=3:v=1:a=1[v][a]" {
		t.Fatalf("FilterGraph = %q", in.FilterGraph)
	}
	if !reflect.DeepEqual(in.Maps, []string{"[v]", "[a]"}) {
		t.Errorf("Maps = %v", in.Maps)
	}
	if len(in.Inputs) != 3 {
		t.Errorf("Inputs = %d", len(in.Inputs))
	}
}

func TestTransition_OffsetsAccumulate(t *testing.T) {
	segs := []Segment{
		{Path: "/a.mp4", Duration: 5000, Transition: timeline.TransitionFade, TransitionDuration: 1000},
		{Path: "/b.mp4", Duration: 4000, Transition: timeline.TransitionDissolve, TransitionDuration: 500},
		{Path: "/c.mp4", Duration: 3000},
	}
	in, length := Transition(segs, "/m.mp4")

	wantGraph := "[0:v][1:v]xfade=transition=fade:duration=1:offset=4[v1];" +
		"[0:a][1:a]acrossfade=d=1[a1];" +
		"[v1][2:v]xfade=transition=dissolve:duration=0.5:offset=7.5[v2];" +
		"[a1][2:a]acrossfade=d=0.5[a2]"
	if in.FilterGraph != wantGraph {
		t.Fatalf("FilterGraph =\n%s\nwant\n%s", in.FilterGraph, wantGraph)
	}
	if length != 10500 {
		t.Errorf("length = %d, want 10500", length)
	}
	if !reflect.DeepEqual(in.Maps, []string{"[v2]", "[a2]"}) {
		t.Errorf("Maps = %v", in.Maps)
	}
}

func TestTransition_NoneJoinsWithConcat(t *testing.T) {
	segs := []Segment{
		{Path: "/a.mp4", Duration: 2000},
		{Path: "/b.mp4", Duration: 3000, Transition: timeline.TransitionSlide, TransitionDuration: 1000},
		{Path: "/c.mp4", Duration: 3000},
	}
	in, length := Transition(segs, "/m.mp4")
	if !strings.HasPrefix(in.FilterGraph, "[0:v][0:a][1:v][1:a]concat=n=2:v=1:a=1[v1][a1];") {
		t.Fatalf("FilterGraph = %s", in.FilterGraph)
	}
	if !strings.Contains(in.FilterGraph, "xfade=transition=wipeleft:duration=1:offset=4[v2]") {
		t.Fatalf("FilterGraph = %s", in.FilterGraph)
	}
	if length != 7000 {
		t.Errorf("length = %d, want 7000", length)
	}
}

func TestEffects(t *testing.T) {
	tests := []struct {
		name string
		p    EffectParams
		want string
	}{
		{
			name: "neutral",
			p:    EffectParams{Contrast: 1, Saturation: 1, PlaybackSpeed: 1},
			want: "-i /a.mp4 -c:v libx264 -c:a aac /o.mp4",
		},
		{
			name: "sepia with brightness",
			p:    EffectParams{Filter: timeline.FilterSepia, Brightness: 0.2, Contrast: 1, Saturation: 1, PlaybackSpeed: 1},
			want: "-vf colorchannelmixer=.393:.769:.189:0:.349:.686:.168:0:.272:.534:.131,eq=brightness=0.2",
		},
		{
			name: "speed",
			p:    EffectParams{Filter: timeline.FilterBlackAndWhite, Contrast: 1.5, Saturation: 0, PlaybackSpeed: 2},
			want: "-vf format=gray,eq=contrast=1.5:saturation=0,setpts=PTS/2 -af atempo=2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(Effects("/a.mp4", "/o.mp4", tt.p).Args(), " ")
			if !strings.Contains(got, tt.want) {
				t.Fatalf("args = %s, want substring %s", got, tt.want)
			}
		})
	}
}

func TestDrawText(t *testing.T) {
	in := DrawText("/a.mp4", "/o.mp4", []Caption{
		{Text: "Hi: 100%", Color: "#FF0000", FontSize: 24, X: 0.5, Y: 200, Start: 0, End: 1500},
		{Text: "Two", Color: "#00FF00", FontSize: 12, X: 10, Y: 0.25, Start: 1000, End: 2000},
	})
	got := strings.Join(in.Args(), " ")
	want := `drawtext=text='Hi\: 100\%':fontcolor=0xFF0000:fontsize=24:x=w*0.5:y=200:enable='between(t,0,1.5)',` +
		`drawtext=text='Two':fontcolor=0x00FF00:fontsize=12:x=10:y=h*0.25:enable='between(t,1,2)'`
	if !strings.Contains(got, want) {
		t.Fatalf("args = %s\nwant substring %s", got, want)
	}
}

func TestDrawText_NoCaptionsCopies(t *testing.T) {
	in := DrawText("/a.mp4", "/o.mp4", nil)
	if !reflect.DeepEqual(in.OutputOptions, []string{"-c", "copy"}) {
		t.Fatalf("OutputOptions = %v", in.OutputOptions)
	}
	if in.Stage != apperr.StageOverlay {
		t.Errorf("Stage = %q", in.Stage)
	}
}

func TestAudioMix(t *testing.T) {
	tests := []struct {
		name   string
		delay  int64
		volume float64
		graph  string
	}{
		{"plain", 0, 1, "[0:a][1:a]amix=inputs=2:duration=first[aout]"},
		{"delayed and scaled", 1500, 0.5, "[1:a]adelay=1500|1500,volume=0.5[mix];[0:a][mix]amix=inputs=2:duration=first[aout]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := AudioMix("/v.mp4", "/m.mp3", "/o.mp4", tt.delay, 0, tt.volume)
			if in.FilterGraph != tt.graph {
				t.Fatalf("FilterGraph = %q, want %q", in.FilterGraph, tt.graph)
			}
			args := strings.Join(in.Args(), " ")
			if !strings.Contains(args, "-map 0:v -map [aout] -c:v copy -c:a aac -shortest /o.mp4") {
				t.Fatalf("args = %s", args)
			}
		})
	}
}

func TestAudioMix_SeeksIntoEarlyAudio(t *testing.T) {
	in := AudioMix("/v.mp4", "/m.mp3", "/o.mp4", 0, 2500, 1)
	if len(in.Inputs) != 2 {
		t.Fatalf("Inputs = %d, want 2", len(in.Inputs))
	}
	if !reflect.DeepEqual(in.Inputs[1].Options, []string{"-ss", "2.5"}) {
		t.Fatalf("audio input options = %v", in.Inputs[1].Options)
	}
}

func TestString_QuotesPathsAndGraphs(t *testing.T) {
	in := AudioMix(`/my videos/a "b".mp4`, "/m.mp3", "/o.mp4", 0, 0, 1)
	s := in.String()
	if !strings.HasPrefix(s, "ffmpeg -y") {
		t.Fatalf("String() = %s", s)
	}
	if !strings.Contains(s, `-i "/my videos/a \"b\".mp4"`) {
		t.Errorf("input path not quoted: %s", s)
	}
	if !strings.Contains(s, `-filter_complex "[0:a][1:a]amix=inputs=2:duration=first[aout]"`) {
		t.Errorf("filter graph not quoted: %s", s)
	}
	if !strings.HasSuffix(s, `"/o.mp4"`) {
		t.Errorf("output path not quoted: %s", s)
	}
}

func TestEscapeFilterText(t *testing.T) {
	got := EscapeFilterText(`a:b,c;d[e]f%g\h'i`)
	want := `a\:b\,c\;d\[e\]f\%g\\h\'i`
	if got != want {
		t.Fatalf("EscapeFilterText = %q, want %q", got, want)
	}
}

func TestSeconds(t *testing.T) {
	for ms, want := range map[int64]string{0: "0", 1000: "1", 1500: "1.5", 33: "0.033"} {
		if got := Seconds(ms); got != want {
			t.Errorf("Seconds(%d) = %q, want %q", ms, got, want)
		}
	}
}
