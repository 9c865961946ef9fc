package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vearutop/heicplanes"
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Report whether a file is a HEIF container",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	f, err := os.Open(filepath.Clean(args[0]))
	if err != nil {
		return err
	}
	defer f.Close()
	ok, err := heicplanes.IsHEIF(f)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(cmd.OutOrStdout(), "heif")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "not heif")
	return nil
}
