package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vearutop/heicplanes"
)

// toolFlags configure the external tools shared by composite and convert.
type toolFlags struct {
	colorConfig    string
	oiiotool       string
	exiftool       string
	headroomSource string
	keepTemp       bool
}

func (t *toolFlags) register(f *pflag.FlagSet) {
	f.StringVar(&t.colorConfig, "color-config", heicplanes.DefaultColorConfig, "OCIO config for color conversions")
	f.StringVar(&t.oiiotool, "oiiotool", "oiiotool", "oiiotool executable")
	f.StringVar(&t.exiftool, "exiftool", "exiftool", "exiftool executable")
	f.StringVar(&t.headroomSource, "headroom-source", heicplanes.HeadroomFromExifTool, "where to read the HDR headroom: exiftool or xmp")
	f.BoolVar(&t.keepTemp, "keep-temp", false, "keep the working directory")
}

func (t *toolFlags) apply(o *heicplanes.CompositeOptions) {
	o.Logger = logrus.StandardLogger()
	o.ColorConfig = t.colorConfig
	o.OIIOTool = t.oiiotool
	o.ExifTool = t.exiftool
	o.HeadroomSource = t.headroomSource
	o.KeepTemp = t.keepTemp
}

func printResult(w io.Writer, res *heicplanes.CompositeResult) {
	fmt.Fprintf(w, "Successfully created: %s (%dx%d, headroom %g, %d channels)\n",
		res.Output, res.Width, res.Height, res.Headroom, len(res.Channels))
}

var compositeFlags struct {
	tools  toolFlags
	stem   string
	byName bool
}

var compositeCmd = &cobra.Command{
	Use:   "composite <input_folder> <original.heic> [output.exr]",
	Short: "Merge extracted planes into a multi-layer ACEScg EXR",
	Args:  usageArgs(cobra.RangeArgs(2, 3)),
	RunE:  runComposite,
}

func init() {
	f := compositeCmd.Flags()
	compositeFlags.tools.register(f)
	f.StringVar(&compositeFlags.stem, "stem", "", "file name stem of the extracted planes (default: original file name)")
	f.BoolVar(&compositeFlags.byName, "by-name", false, "find planes by file name instead of the metadata record")
	rootCmd.AddCommand(compositeCmd)
}

func runComposite(cmd *cobra.Command, args []string) error {
	output := heicplanes.DefaultCompositeOutput
	if len(args) == 3 {
		output = args[2]
	}
	res, err := heicplanes.Composite(cmd.Context(), args[0], args[1], output, func(o *heicplanes.CompositeOptions) {
		compositeFlags.tools.apply(o)
		o.Stem = compositeFlags.stem
		o.DiscoverByName = compositeFlags.byName
	})
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}
