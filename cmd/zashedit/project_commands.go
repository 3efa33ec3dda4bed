package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zash3dit/zashedit/internal/editing"
)

func parseID(value, name string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, value)
	}
	return id, nil
}

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Create, inspect and remove projects",
	}
	projectCmd.AddCommand(
		newProjectCreateCommand(ctx),
		newProjectListCommand(ctx),
		newProjectShowCommand(ctx),
		newProjectRenameCommand(ctx),
		newProjectDeleteCommand(ctx),
	)
	return projectCmd
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var resolution string
	var frameRate int
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *editing.Service) error {
				p, err := svc.CreateProject(c, args[0], resolution, frameRate)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, p, func(w io.Writer) {
					fmt.Fprintf(w, "Created project %d (%s)\n", p.ID, p.Name)
				})
			})
		},
	}
	cmd.Flags().StringVar(&resolution, "resolution", "", "Frame size as WIDTHxHEIGHT (default 1920x1080)")
	cmd.Flags().IntVar(&frameRate, "fps", 0, "Frame rate (default 30)")
	return cmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects, most recently modified first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *editing.Service) error {
				projects, err := svc.ListProjects(c)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, projects, func(w io.Writer) { printProjectList(w, projects) })
			})
		},
	}
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project's tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(c context.Context, svc *editing.Service) error {
				p, err := svc.GetProject(c, id)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, p, func(w io.Writer) { printProject(w, p) })
			})
		},
	}
}

func newProjectRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <project-id> <name>",
		Short: "Rename a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(c context.Context, svc *editing.Service) error {
				p, err := svc.RenameProject(c, id, args[1])
				if err != nil {
					return err
				}
				return ctx.emit(cmd, p, func(w io.Writer) {
					fmt.Fprintf(w, "Project %d renamed to %s\n", p.ID, p.Name)
				})
			})
		},
	}
}

func newProjectDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <project-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a project and all of its clips",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(c context.Context, svc *editing.Service) error {
				if err := svc.DeleteProject(c, id); err != nil {
					return err
				}
				return ctx.emit(cmd, map[string]any{"deleted": id}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted project %d\n", id)
				})
			})
		},
	}
}
