package heicplanes_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/vearutop/heicplanes"
)

func ExampleIsHEIF() {
	f, err := os.Open(filepath.FromSlash("testdata/test8.heic"))
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = heicplanes.IsHEIF(f)
}

func ExampleExtractFile() {
	res, err := heicplanes.ExtractFile(filepath.FromSlash("testdata/test8.heic"), os.TempDir())
	if err != nil {
		return
	}
	_ = res.Record.Auxiliary
}

func ExampleComposite() {
	_, _ = heicplanes.Composite(context.Background(), os.TempDir(), "IMG_0001.HEIC", "IMG_0001_acescg.exr",
		func(o *heicplanes.CompositeOptions) {
			o.HeadroomSource = heicplanes.HeadroomFromXMPRecord
		})
}

func ExampleConvert() {
	res, err := heicplanes.Convert(context.Background(), "IMG_0001.HEIC", "")
	if err != nil {
		return
	}
	_ = res.Channels // written to IMG_0001_acesCG.exr
}

func ExampleInspectFile() {
	info, err := heicplanes.InspectFile(filepath.FromSlash("testdata/test.heic"))
	if err != nil {
		return
	}
	_ = info.Items
}
