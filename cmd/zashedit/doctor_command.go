package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zash3dit/zashedit/internal/encoder"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg and ffprobe are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			caps, err := encoder.ToolCheck{
				FFmpeg:  cfg.FFmpegPath(),
				FFprobe: cfg.FFprobePath(),
				DryRun:  ctx.dryRun(),
			}.Check(cmd.Context())
			if err != nil {
				return err
			}
			if err := ctx.emit(cmd, caps, func(w io.Writer) { printCapabilities(w, caps) }); err != nil {
				return err
			}
			if !caps.CanEncode() {
				return fmt.Errorf("ffmpeg is not usable; install it or set ffmpeg_path")
			}
			return nil
		},
	}
}

func printCapabilities(w io.Writer, caps *encoder.Capabilities) {
	rows := [][]string{toolRow("ffmpeg", caps.FFmpeg), toolRow("ffprobe", caps.FFprobe)}
	fmt.Fprintln(w, renderTable([]string{"Tool", "Available", "Version", "Path", "Error"}, rows, nil))
	if caps.DryRun {
		fmt.Fprintln(w, "Dry run is on: edits are recorded without running ffmpeg.")
	}
}

func toolRow(name string, t encoder.ToolInfo) []string {
	return []string{name, yesNo(t.Available), t.Version, t.Path, t.Error}
}
