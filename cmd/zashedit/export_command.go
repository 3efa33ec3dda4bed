package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zash3dit/zashedit/internal/editing"
	"github.com/zash3dit/zashedit/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export projects for other editors",
	}

	var outputDir, title string
	edlCmd := &cobra.Command{
		Use:   "edl <project-id>",
		Short: "Write a CMX3600 edit decision list, or print it without --output-dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(c context.Context, svc *editing.Service) error {
				p, err := svc.GetProject(c, projectID)
				if err != nil {
					return err
				}
				if outputDir == "" {
					_, err := io.WriteString(cmd.OutOrStdout(), export.GenerateEDL(p, title))
					return err
				}
				res, err := export.Write(p, export.Request{OutputDir: outputDir, Title: title})
				if err != nil {
					return err
				}
				return ctx.emit(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "Wrote %d events to %s\n", res.EventCount, res.OutputPath)
				})
			})
		},
	}
	edlCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Absolute directory to write <title>.edl into")
	edlCmd.Flags().StringVar(&title, "title", "", "EDL title (defaults to the project name)")

	exportCmd.AddCommand(edlCmd)
	return exportCmd
}
