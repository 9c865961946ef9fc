package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/vearutop/heicplanes"
)

var infoCmd = &cobra.Command{
	Use:   "info <input.heic>",
	Short: "Print the items, auxiliary images and metadata of a HEIF container as JSON",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	info, err := heicplanes.InspectFile(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
