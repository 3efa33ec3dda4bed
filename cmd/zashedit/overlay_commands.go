package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zash3dit/zashedit/internal/editing"
	"github.com/zash3dit/zashedit/internal/timeline"
)

func overlayFlags(cmd *cobra.Command, o *editing.Overlay) {
	f := cmd.Flags()
	f.Int64Var(&o.StartTime, "start", 0, "Timeline offset in milliseconds")
	f.Int64Var(&o.Duration, "duration", 1000, "Display time in milliseconds")
	f.Float64Var(&o.X, "x", 0.5, "Horizontal position as a fraction of the frame width")
	f.Float64Var(&o.Y, "y", 0.5, "Vertical position as a fraction of the frame height")
	f.IntVar(&o.FontSize, "font-size", editing.DefaultFontSize, "Font size in pixels")
	f.StringVar(&o.Color, "color", editing.DefaultColor, "Text colour as #RRGGBB")
}

func newOverlayCommand(ctx *commandContext) *cobra.Command {
	overlayCmd := &cobra.Command{
		Use:     "overlay",
		Aliases: []string{"overlays"},
		Short:   "Manage text overlays",
	}

	var added editing.Overlay
	addCmd := &cobra.Command{
		Use:   "add <project-id> <text>",
		Short: "Add a text overlay",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			added.Text = args[1]
			return ctx.runMutation(cmd, func(c context.Context, svc *editing.Service) (*timeline.Project, error) {
				return svc.AddTextOverlay(c, projectID, added)
			})
		},
	}
	overlayFlags(addCmd, &added)

	var updated editing.Overlay
	updateCmd := &cobra.Command{
		Use:   "update <project-id> <overlay-id> <text>",
		Short: "Replace an overlay's text, timing and style",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, overlayID, err := projectAndClip(args)
			if err != nil {
				return err
			}
			updated.Text = args[2]
			return ctx.runMutation(cmd, func(c context.Context, svc *editing.Service) (*timeline.Project, error) {
				return svc.UpdateTextOverlay(c, projectID, overlayID, updated)
			})
		},
	}
	overlayFlags(updateCmd, &updated)

	deleteCmd := &cobra.Command{
		Use:     "delete <project-id> <overlay-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a text overlay",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, overlayID, err := projectAndClip(args)
			if err != nil {
				return err
			}
			return ctx.runMutation(cmd, func(c context.Context, svc *editing.Service) (*timeline.Project, error) {
				return svc.DeleteTextOverlay(c, projectID, overlayID)
			})
		},
	}

	burnCmd := &cobra.Command{
		Use:   "burn <project-id> <clip-id>",
		Short: "Render the overlays that intersect a clip into its video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, clipID, err := projectAndClip(args)
			if err != nil {
				return err
			}
			return ctx.runEncode(cmd, "burning overlays", func(c context.Context, svc *editing.Service) (*editing.Result, error) {
				return svc.BurnOverlays(c, projectID, editing.ClipParams{ClipID: clipID})
			})
		},
	}

	overlayCmd.AddCommand(addCmd, updateCmd, deleteCmd, burnCmd)
	return overlayCmd
}

func newAudioCommand(ctx *commandContext) *cobra.Command {
	audioCmd := &cobra.Command{
		Use:   "audio",
		Short: "Manage the audio track",
	}

	var start int64
	var volume float64
	updateCmd := &cobra.Command{
		Use:   "update <project-id> <audio-id>",
		Short: "Move an audio clip or change its volume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, audioID, err := projectAndClip(args)
			if err != nil {
				return err
			}
			var u editing.AudioUpdate
			if cmd.Flags().Changed("start") {
				u.StartTime = &start
			}
			if cmd.Flags().Changed("volume") {
				u.Volume = &volume
			}
			return ctx.runMutation(cmd, func(c context.Context, svc *editing.Service) (*timeline.Project, error) {
				return svc.UpdateAudioClip(c, projectID, audioID, u)
			})
		},
	}
	updateCmd.Flags().Int64Var(&start, "start", 0, "Timeline offset in milliseconds")
	updateCmd.Flags().Float64Var(&volume, "volume", 1, "Mix volume, 0 to 2")

	deleteCmd := &cobra.Command{
		Use:     "delete <project-id> <audio-id>",
		Aliases: []string{"rm"},
		Short:   "Delete an audio clip",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, audioID, err := projectAndClip(args)
			if err != nil {
				return err
			}
			return ctx.runMutation(cmd, func(c context.Context, svc *editing.Service) (*timeline.Project, error) {
				return svc.DeleteAudioClip(c, projectID, audioID)
			})
		},
	}

	mixCmd := &cobra.Command{
		Use:   "mix <project-id> <clip-id>",
		Short: "Mix the first overlapping audio clip into a video clip's soundtrack",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, clipID, err := projectAndClip(args)
			if err != nil {
				return err
			}
			return ctx.runEncode(cmd, "mixing audio", func(c context.Context, svc *editing.Service) (*editing.Result, error) {
				return svc.MixAudio(c, projectID, editing.ClipParams{ClipID: clipID})
			})
		},
	}

	audioCmd.AddCommand(updateCmd, deleteCmd, mixCmd)
	return audioCmd
}
