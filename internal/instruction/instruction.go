// Package instruction builds declarative transcode instructions. An
// Instruction is data: the encoder decides how to run it.
package instruction

import (
	"strconv"
	"strings"

	"github.com/zash3dit/zashedit/internal/apperr"
)

// Input is one source file plus the options that must precede its -i flag.
type Input struct {
	Path    string   `json:"path"`
	Options []string `json:"options,omitempty"`
}

type Instruction struct {
	Stage         apperr.Stage `json:"stage"`
	Inputs        []Input      `json:"inputs"`
	FilterGraph   string       `json:"filter_graph,omitempty"`
	Maps          []string     `json:"maps,omitempty"`
	OutputOptions []string     `json:"output_options,omitempty"`
	OutputPath    string       `json:"output_path"`
}

// Args returns the encoder argv, without the binary name.
func (in Instruction) Args() []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, src := range in.Inputs {
		args = append(args, src.Options...)
		args = append(args, "-i", src.Path)
	}
	if in.FilterGraph != "" {
		args = append(args, "-filter_complex", in.FilterGraph)
	}
	for _, m := range in.Maps {
		args = append(args, "-map", m)
	}
	args = append(args, in.OutputOptions...)
	return append(args, in.OutputPath)
}

// String renders the instruction as a single shell-safe command line.
func (in Instruction) String() string {
	var b strings.Builder
	b.WriteString("ffmpeg")
	paths := make(map[int]bool)
	args := in.Args()
	for i, a := range args {
		if a == "-i" && i+1 < len(args) {
			paths[i+1] = true
		}
	}
	paths[len(args)-1] = true
	for i, a := range args {
		b.WriteByte(' ')
		if paths[i] {
			b.WriteString(QuotePath(a))
			continue
		}
		b.WriteString(quoteArg(a))
	}
	return b.String()
}

// Sources lists the input paths in order.
func (in Instruction) Sources() []string {
	out := make([]string, len(in.Inputs))
	for i, src := range in.Inputs {
		out[i] = src.Path
	}
	return out
}

// QuotePath wraps a path in double quotes, escaping characters the shell
// would still interpret inside them.
func QuotePath(p string) string {
	var b strings.Builder
	b.Grow(len(p) + 2)
	b.WriteByte('"')
	for _, r := range p {
		switch r {
		case '"', '\\', '$', '`':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

func quoteArg(a string) string {
	if a == "" {
		return `""`
	}
	if strings.ContainsAny(a, " \t'\"[]|;&$`\\()*?<>=,") && !strings.HasPrefix(a, "-") {
		return QuotePath(a)
	}
	return a
}

// EscapeFilterText escapes a literal for use inside a single-quoted
// drawtext option value.
func EscapeFilterText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\', ':', '\'', '%', ',', ';', '[', ']':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeFilterPath escapes a file path embedded in a filter graph option.
func EscapeFilterPath(p string) string {
	r := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`)
	return r.Replace(p)
}

// Seconds formats milliseconds as the shortest decimal number of seconds.
func Seconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64)
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
