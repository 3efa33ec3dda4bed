package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/zash3dit/zashedit/internal/editing"
	"github.com/zash3dit/zashedit/internal/store"
	"github.com/zash3dit/zashedit/internal/timeline"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit prints v as JSON under --json and otherwise calls human.
func (c *commandContext) emit(cmd *cobra.Command, v any, human func(io.Writer)) error {
	if c.jsonOutput() {
		return writeJSON(cmd, v)
	}
	human(cmd.OutOrStdout())
	return nil
}

// formatMillis renders a millisecond offset as H:MM:SS.mmm, dropping the
// hour when it is zero.
func formatMillis(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int64(d / time.Hour)
	m := int64(d/time.Minute) % 60
	s := int64(d/time.Second) % 60
	frac := ms % 1000
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, frac)
	}
	return fmt.Sprintf("%02d:%02d.%03d", m, s, frac)
}

func formatEpochMillis(ms int64) string {
	return humanize.Time(time.UnixMilli(ms))
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "missing"
	}
	return humanize.Bytes(uint64(info.Size()))
}

func printProjectList(w io.Writer, projects []*timeline.Project) {
	if len(projects) == 0 {
		fmt.Fprintln(w, "No projects.")
		return
	}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			p.Resolution.String(),
			strconv.Itoa(p.FrameRate),
			strconv.Itoa(len(p.VideoClips)),
			formatMillis(p.VideoDuration()),
			formatEpochMillis(p.ModifiedAt),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "Name", "Resolution", "FPS", "Clips", "Length", "Modified"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
}

func printProject(w io.Writer, p *timeline.Project) {
	fmt.Fprintf(w, "Project %d: %s (%s @ %d fps, %s)\n", p.ID, p.Name, p.Resolution, p.FrameRate, formatMillis(p.VideoDuration()))
	fmt.Fprintf(w, "Created %s, modified %s\n\n", formatEpochMillis(p.CreatedAt), formatEpochMillis(p.ModifiedAt))

	if len(p.VideoClips) == 0 {
		fmt.Fprintln(w, "Video track is empty.")
	} else {
		rows := make([][]string, 0, len(p.VideoClips))
		for _, c := range p.VideoClips {
			transition := "-"
			if c.HasTransition() {
				transition = fmt.Sprintf("%s %s", c.TransitionType, formatMillis(c.TransitionDuration))
			}
			rows = append(rows, []string{
				strconv.Itoa(c.Position),
				strconv.FormatInt(c.ID, 10),
				formatMillis(c.StartTime),
				formatMillis(c.Duration),
				effectsSummary(c),
				transition,
				filepath.Base(c.FilePath),
				fileSize(c.FilePath),
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"#", "Clip", "Start", "Duration", "Effects", "Transition", "File", "Size"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
		))
	}

	if len(p.AudioClips) > 0 {
		rows := make([][]string, 0, len(p.AudioClips))
		for _, a := range p.AudioClips {
			rows = append(rows, []string{
				strconv.FormatInt(a.ID, 10),
				formatMillis(a.StartTime),
				formatMillis(a.Duration),
				strconv.FormatFloat(a.Volume, 'f', 2, 64),
				filepath.Base(a.FilePath),
			})
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderTable(
			[]string{"Audio", "Start", "Duration", "Volume", "File"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
		))
	}

	if len(p.TextOverlays) > 0 {
		rows := make([][]string, 0, len(p.TextOverlays))
		for _, o := range p.TextOverlays {
			rows = append(rows, []string{
				strconv.FormatInt(o.ID, 10),
				formatMillis(o.StartTime),
				formatMillis(o.Duration),
				fmt.Sprintf("%.2f,%.2f", o.X, o.Y),
				fmt.Sprintf("%dpx %s", o.FontSize, o.Color),
				o.Text,
			})
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderTable(
			[]string{"Overlay", "Start", "Duration", "At", "Style", "Text"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignRight},
		))
	}
}

func effectsSummary(c timeline.VideoClip) string {
	s := c.Filter.String()
	if c.Filter == timeline.FilterNone {
		s = "-"
	}
	if c.PlaybackSpeed != 1 {
		s += fmt.Sprintf(" x%.2g", c.PlaybackSpeed)
	}
	return s
}

func printOperations(w io.Writer, ops []*store.Operation) {
	if len(ops) == 0 {
		fmt.Fprintln(w, "No operations.")
		return
	}
	rows := make([][]string, 0, len(ops))
	for _, op := range ops {
		rows = append(rows, []string{
			op.ID,
			strconv.FormatInt(op.ProjectID, 10),
			string(op.Stage),
			string(op.Status),
			strconv.Itoa(op.Attempts),
			yesNo(op.Retryable),
			humanize.Time(op.UpdatedAt),
			op.Error,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Operation", "Project", "Stage", "Status", "Attempts", "Retryable", "Updated", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight},
	))
}

func printResult(w io.Writer, res *editing.Result) {
	if op := res.Operation; op != nil {
		fmt.Fprintf(w, "Operation %s %s (%s)\n\n", op.ID, op.Status, op.Stage)
	}
	printProject(w, res.Project)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// startSpinner shows an indeterminate spinner on an interactive stderr while
// an encode runs. The returned func stops it.
func startSpinner(cmd *cobra.Command, description string) func() {
	f, ok := cmd.ErrOrStderr().(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return func() {}
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(f),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bar.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
		bar.Finish()
	}
}
