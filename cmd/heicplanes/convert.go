package main

import (
	"github.com/spf13/cobra"
	"github.com/vearutop/heicplanes"
)

var convertTools toolFlags

var convertCmd = &cobra.Command{
	Use:   "convert <input.heic> [output.exr]",
	Short: "Extract and merge in one step, writing {stem}_acesCG.exr next to the input",
	Args:  usageArgs(cobra.RangeArgs(1, 2)),
	RunE:  runConvert,
}

func init() {
	convertTools.register(convertCmd.Flags())
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	var output string
	if len(args) == 2 {
		output = args[1]
	}
	res, err := heicplanes.Convert(cmd.Context(), args[0], output, func(o *heicplanes.ConvertOptions) {
		convertTools.apply(&o.CompositeOptions)
	})
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}
