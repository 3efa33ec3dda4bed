package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zash3dit/zashedit/internal/editing"
	"github.com/zash3dit/zashedit/internal/timeline"
)

var speedUsage = fmt.Sprintf("Playback speed, %v to %v", timeline.MinPlaybackSpeed, timeline.MaxPlaybackSpeed)

// encodeFunc is one encoder-backed edit against an open service.
type encodeFunc func(context.Context, *editing.Service) (*editing.Result, error)

// runEncode shows a spinner while fn runs and prints the result. Failures
// that were logged as operations say how to retry them.
func (c *commandContext) runEncode(cmd *cobra.Command, description string, fn encodeFunc) error {
	return c.withService(cmd, func(ctx context.Context, svc *editing.Service) error {
		stop := func() {}
		if !c.jsonOutput() {
			stop = startSpinner(cmd, description)
		}
		res, err := fn(ctx, svc)
		stop()
		if err != nil {
			if retry, ok := editing.RetryFor(err); ok {
				return fmt.Errorf("%w\nretry with: zashedit operations retry %s", err, retry.OperationID)
			}
			return err
		}
		return c.emit(cmd, res, func(w io.Writer) { printResult(w, res) })
	})
}

// runMutation runs a metadata-only edit and prints the updated project.
func (c *commandContext) runMutation(cmd *cobra.Command, fn func(context.Context, *editing.Service) (*timeline.Project, error)) error {
	return c.withService(cmd, func(ctx context.Context, svc *editing.Service) error {
		p, err := fn(ctx, svc)
		if err != nil {
			return err
		}
		return c.emit(cmd, p, func(w io.Writer) { printProject(w, p) })
	})
}

// projectAndClip parses the leading <project-id> <clip-id> arguments.
func projectAndClip(args []string) (int64, int64, error) {
	projectID, err := parseID(args[0], "project id")
	if err != nil {
		return 0, 0, err
	}
	clipID, err := parseID(args[1], "clip id")
	if err != nil {
		return 0, 0, err
	}
	return projectID, clipID, nil
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Add media files to a project",
	}

	var videoDuration int64
	videoCmd := &cobra.Command{
		Use:   "video <project-id> <file>",
		Short: "Append a video clip to the end of the video track",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(c context.Context, svc *editing.Service) error {
				res, err := svc.ImportVideo(c, projectID, args[1], videoDuration)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, res, func(w io.Writer) { printImport(w, "video", res) })
			})
		},
	}
	videoCmd.Flags().Int64Var(&videoDuration, "duration", 0, "Clip length in milliseconds (probed with ffprobe when omitted)")

	var audioDuration, audioStart int64
	var volume float64
	audioCmd := &cobra.Command{
		Use:   "audio <project-id> <file>",
		Short: "Add an audio clip to the audio track",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			req := editing.AudioImport{Path: args[1], Duration: audioDuration, StartTime: audioStart}
			if cmd.Flags().Changed("volume") {
				req.Volume = &volume
			}
			return ctx.withService(cmd, func(c context.Context, svc *editing.Service) error {
				res, err := svc.ImportAudio(c, projectID, req)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, res, func(w io.Writer) { printImport(w, "audio", res) })
			})
		},
	}
	audioCmd.Flags().Int64Var(&audioDuration, "duration", 0, "Clip length in milliseconds (probed with ffprobe when omitted)")
	audioCmd.Flags().Int64Var(&audioStart, "start", 0, "Timeline offset in milliseconds")
	audioCmd.Flags().Float64Var(&volume, "volume", 1, "Mix volume, 0 to 2")

	importCmd.AddCommand(videoCmd, audioCmd)
	return importCmd
}

func printImport(w io.Writer, kind string, res *editing.ImportResult) {
	if !res.Imported {
		fmt.Fprintf(w, "Skipped: %s\n", res.Reason)
		return
	}
	fmt.Fprintf(w, "Imported %s clip %d into project %d\n", kind, res.ClipID, res.Project.ID)
}

func newClipCommands(ctx *commandContext) []*cobra.Command {
	trimCmd := &cobra.Command{
		Use:   "trim <project-id> <clip-id> <start-ms> <end-ms>",
		Short: "Keep only [start, end) of a video clip",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, clipID, err := projectAndClip(args)
			if err != nil {
				return err
			}
			start, err := parseMillis(args[2], "start")
			if err != nil {
				return err
			}
			end, err := parseMillis(args[3], "end")
			if err != nil {
				return err
			}
			return ctx.runEncode(cmd, "trimming", func(c context.Context, svc *editing.Service) (*editing.Result, error) {
				return svc.Trim(c, projectID, editing.TrimParams{ClipID: clipID, Start: start, End: end})
			})
		},
	}

	splitCmd := &cobra.Command{
		Use:   "split <project-id> <clip-id> <at-ms>",
		Short: "Cut a video clip in two at a clip-relative offset",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, clipID, err := projectAndClip(args)
			if err != nil {
				return err
			}
			at, err := parseMillis(args[2], "split point")
			if err != nil {
				return err
			}
			return ctx.runEncode(cmd, "splitting", func(c context.Context, svc *editing.Service) (*editing.Result, error) {
				return svc.Split(c, projectID, editing.SplitParams{ClipID: clipID, At: at})
			})
		},
	}

	mergeCmd := &cobra.Command{
		Use:   "merge <project-id> <clip-id> <clip-id>...",
		Short: "Join video clips into one, honouring their transitions",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(args)-1)
			for _, a := range args[1:] {
				id, err := parseID(a, "clip id")
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.runEncode(cmd, "merging", func(c context.Context, svc *editing.Service) (*editing.Result, error) {
				return svc.Merge(c, projectID, editing.MergeParams{ClipIDs: ids})
			})
		},
	}

	var filter string
	fx := editing.NeutralEffects()
	effectsCmd := &cobra.Command{
		Use:   "effects <project-id> <clip-id>",
		Short: "Apply a colour filter, picture adjustments and speed to a clip",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, clipID, err := projectAndClip(args)
			if err != nil {
				return err
			}
			effects := fx
			if filter != "" {
				if effects.Filter, err = timeline.ParseFilter(filter); err != nil {
					return err
				}
			}
			return ctx.runEncode(cmd, "applying effects", func(c context.Context, svc *editing.Service) (*editing.Result, error) {
				return svc.ApplyEffects(c, projectID, editing.EffectsParams{ClipID: clipID, Effects: effects})
			})
		},
	}
	effectsCmd.Flags().StringVar(&filter, "filter", "", "none, bw, sepia or vintage")
	effectsCmd.Flags().Float64Var(&fx.Brightness, "brightness", fx.Brightness, "Brightness offset, -1 to 1")
	effectsCmd.Flags().Float64Var(&fx.Contrast, "contrast", fx.Contrast, "Contrast, 0 to 2")
	effectsCmd.Flags().Float64Var(&fx.Saturation, "saturation", fx.Saturation, "Saturation, 0 to 2")
	effectsCmd.Flags().Float64Var(&fx.PlaybackSpeed, "speed", fx.PlaybackSpeed, speedUsage)

	var transitionDuration int64
	transitionCmd := &cobra.Command{
		Use:   "transition <project-id> <clip-id> <none|fade|slide|dissolve>",
		Short: "Set the transition from a clip into the next one",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, clipID, err := projectAndClip(args)
			if err != nil {
				return err
			}
			t, err := timeline.ParseTransition(args[2])
			if err != nil {
				return err
			}
			return ctx.runMutation(cmd, func(c context.Context, svc *editing.Service) (*timeline.Project, error) {
				return svc.SetTransition(c, projectID, clipID, t, transitionDuration)
			})
		},
	}
	transitionCmd.Flags().Int64Var(&transitionDuration, "duration", 0, "Transition length in milliseconds (default 1000)")

	reorderCmd := &cobra.Command{
		Use:   "reorder <project-id> <clip-id> <position>",
		Short: "Move a video clip to a zero-based track position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, clipID, err := projectAndClip(args)
			if err != nil {
				return err
			}
			pos, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("position must be an integer, got %q", args[2])
			}
			return ctx.runMutation(cmd, func(c context.Context, svc *editing.Service) (*timeline.Project, error) {
				return svc.Reorder(c, projectID, clipID, pos)
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <project-id> <clip-id>",
		Short: "Remove a video clip from the track",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, clipID, err := projectAndClip(args)
			if err != nil {
				return err
			}
			return ctx.runMutation(cmd, func(c context.Context, svc *editing.Service) (*timeline.Project, error) {
				return svc.RemoveVideoClip(c, projectID, clipID)
			})
		},
	}

	return []*cobra.Command{trimCmd, splitCmd, mergeCmd, effectsCmd, transitionCmd, reorderCmd, removeCmd}
}

func parseMillis(value, name string) (int64, error) {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be milliseconds, got %q", name, value)
	}
	return ms, nil
}
