package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zash3dit/zashedit/internal/editing"
	"github.com/zash3dit/zashedit/internal/store"
)

func newOperationsCommand(ctx *commandContext) *cobra.Command {
	opsCmd := &cobra.Command{
		Use:     "operations",
		Aliases: []string{"ops"},
		Short:   "Inspect and retry encoder operations",
	}

	var projectID int64
	var limit int
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent operations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *editing.Service) error {
				ops, err := svc.Operations(c, projectID, limit)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, ops, func(w io.Writer) { printOperations(w, ops) })
			})
		},
	}
	listCmd.Flags().Int64Var(&projectID, "project", 0, "Only operations of this project")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of operations")

	showCmd := &cobra.Command{
		Use:   "show <operation-id>",
		Short: "Show one operation with its recorded parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *editing.Service) error {
				op, err := svc.Operation(c, args[0])
				if err != nil {
					return err
				}
				return ctx.emit(cmd, op, func(w io.Writer) {
					printOperations(w, []*store.Operation{op})
					fmt.Fprintf(w, "Parameters: %s\n", op.Params)
				})
			})
		},
	}

	retryCmd := &cobra.Command{
		Use:   "retry <operation-id>",
		Short: "Re-issue a failed operation with its recorded parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runEncode(cmd, "retrying", func(c context.Context, svc *editing.Service) (*editing.Result, error) {
				return svc.Retry(c, args[0])
			})
		},
	}

	opsCmd.AddCommand(listCmd, showCmd, retryCmd)
	return opsCmd
}
