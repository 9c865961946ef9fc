package heicplanes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ConvertOptions controls Convert.
type ConvertOptions struct {
	CompositeOptions
	// Decoder decodes planes; DefaultDecoder() when nil.
	Decoder Decoder
}

// ConvertOutput returns the default Convert output for input:
// {stem}_acesCG.exr next to the input file.
func ConvertOutput(input string) string {
	base := filepath.Base(input)
	return filepath.Join(filepath.Dir(input), strings.TrimSuffix(base, filepath.Ext(base))+"_acesCG.exr")
}

// Convert extracts the planes of the HEIC file at input into a private
// staging directory and composites them into output, ConvertOutput(input)
// when empty. The staging directory is removed on every return path unless
// KeepTemp is set.
func Convert(ctx context.Context, input, output string, opts ...func(o *ConvertOptions)) (*CompositeResult, error) {
	opt := ConvertOptions{}
	for _, applyOpt := range opts {
		applyOpt(&opt)
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	if output == "" {
		output = ConvertOutput(input)
	}

	staging, err := os.MkdirTemp(opt.TempDir, "heicplanes-planes-")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	log := opt.Logger.WithField("staging", staging)
	if opt.KeepTemp {
		log.Info("keeping staging directory")
	} else {
		defer func() {
			if err := os.RemoveAll(staging); err != nil {
				log.WithError(err).Warn("failed to remove staging directory")
			}
		}()
	}

	res, err := ExtractFile(input, staging, func(o *ExtractOptions) {
		o.Decoder = opt.Decoder
		o.Logger = opt.Logger
	})
	if err != nil {
		return nil, err
	}
	log.WithField("planes", len(res.Ordered)).Info("planes staged")

	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return Composite(ctx, staging, input, output, func(o *CompositeOptions) {
		*o = opt.CompositeOptions
		o.Stem = stem
		o.DiscoverByName = false
		if o.OIIOTool == "" {
			o.OIIOTool = "oiiotool"
		}
		if o.ExifTool == "" {
			o.ExifTool = "exiftool"
		}
		if o.ColorConfig == "" {
			o.ColorConfig = DefaultColorConfig
		}
		if o.HeadroomSource == "" {
			o.HeadroomSource = HeadroomFromExifTool
		}
	})
}
