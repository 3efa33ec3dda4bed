package main

import (
	"github.com/spf13/cobra"

	"github.com/zash3dit/zashedit/internal/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var jsonFlag bool
	var dryRunFlag bool

	ctx := newCommandContext(&configFlag, &jsonFlag, &dryRunFlag)

	rootCmd := &cobra.Command{
		Use:           "zashedit",
		Short:         "Non-linear video editing projects backed by ffmpeg",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	flags.BoolVar(&jsonFlag, "json", false, "Print results as JSON")
	flags.BoolVar(&dryRunFlag, "dry-run", false, "Record edits without running ffmpeg")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newProjectCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newClipCommands(ctx)...)
	rootCmd.AddCommand(newOverlayCommand(ctx))
	rootCmd.AddCommand(newAudioCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newOperationsCommand(ctx))

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
