package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"episodereel/internal/convert"
	"episodereel/internal/services"
	"episodereel/internal/store"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var inDir string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show dataset length, episode span, and the configured frame range",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("in_dir") {
				cfg.Convert.InDir = inDir
				if err := cfg.Normalize(); err != nil {
					return err
				}
			}
			if cfg.Convert.InDir == "" {
				return services.Wrap(services.ErrConfiguration, "inspect", "config", "convert.in_dir is required (--in_dir)", nil)
			}

			source, err := store.Open(cfg.Convert.InDir)
			if err != nil {
				return err
			}
			defer source.Close()

			length, err := source.DatasetLength()
			if err != nil {
				return err
			}
			fields := [][2]string{
				{"Dataset", source.Path()},
				{"Frames", strconv.Itoa(length)},
			}
			if length > 0 {
				first, err := source.EpisodeIndex(0)
				if err != nil {
					return err
				}
				last, err := source.EpisodeIndex(length - 1)
				if err != nil {
					return err
				}
				fields = append(fields,
					[2]string{"First episode", strconv.Itoa(first)},
					[2]string{"Last episode", strconv.Itoa(last)},
				)
			}
			rng, err := convert.ComputeRange(length, cfg.Convert.StartRatio, cfg.Convert.EndRatio)
			if err != nil {
				return err
			}
			fields = append(fields, [2]string{"Configured range", fmt.Sprintf("%s, %d frames", rng, rng.Len())})

			fmt.Fprintln(cmd.OutOrStdout(), renderFields("Dataset", fields))
			return nil
		},
	}

	cmd.Flags().StringVar(&inDir, "in_dir", "", "LMDB dataset directory")
	return cmd
}
