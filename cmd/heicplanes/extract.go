package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vearutop/heicplanes"
)

var extractOutputDir string

var extractCmd = &cobra.Command{
	Use:   "extract <input.heic>",
	Short: "Write every plane as lossless TIFF plus a JSON metadata record",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractOutputDir, "output-dir", "", "output directory (default: directory of the input)")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	res, err := heicplanes.ExtractFile(args[0], extractOutputDir, func(o *heicplanes.ExtractOptions) {
		o.Logger = logrus.StandardLogger()
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Extracted images:")
	for _, name := range res.Ordered {
		fmt.Fprintf(out, "%s: %s\n", name, res.Files[name])
	}
	fmt.Fprintf(out, "Metadata saved to: %s\n", res.MetadataPath)
	return nil
}
