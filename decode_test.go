package heicplanes

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/vearutop/heicplanes/internal/heif"
)

// cameraDecode decodes a testdata file directly, skipping the test when the
// build's decoder cannot handle it.
func cameraDecode(t *testing.T, name string) ([]byte, *Raster) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	img, err := DefaultDecoder().DecodeImage(data)
	if err != nil {
		t.Skipf("decoder unavailable for %s: %v", name, err)
	}
	return data, RasterFromImage(img)
}

func TestDefaultDecoderStandalone(t *testing.T) {
	for _, name := range []string{"test8.heic", "gray.heic", "test.heic"} {
		name := name
		t.Run(name, func(t *testing.T) {
			data, direct := cameraDecode(t, name)

			f, err := heif.Parse(data)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			w, h, ok := f.Primary().Size()
			if !ok || direct.Width != w || direct.Height != h {
				t.Fatalf("direct decode is %dx%d, ispe %dx%d", direct.Width, direct.Height, w, h)
			}

			single, err := f.Standalone(f.PrimaryID)
			if err != nil {
				t.Fatalf("standalone: %v", err)
			}
			img, err := DefaultDecoder().DecodeImage(single)
			if err != nil {
				t.Fatalf("decode standalone: %v", err)
			}
			repacked := RasterFromImage(img)
			if repacked.Mode != direct.Mode || repacked.Width != direct.Width || repacked.Height != direct.Height {
				t.Fatalf("repacked %s %dx%d, direct %s %dx%d",
					repacked.Mode, repacked.Width, repacked.Height, direct.Mode, direct.Width, direct.Height)
			}
			if !bytes.Equal(repacked.Pix, direct.Pix) {
				t.Fatal("repacked pixels differ from direct decode")
			}
		})
	}
}

func TestDecodeCameraFile(t *testing.T) {
	data, direct := cameraDecode(t, "test8.heic")

	c, err := Decode(data, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	base := c.Primary()
	if base == nil || base.Type != TypeBase || len(c.Planes) != 1 {
		t.Fatalf("planes: %+v", c.Planes)
	}
	if !bytes.Equal(base.Raster.Pix, direct.Pix) {
		t.Fatal("base plane differs from direct decode")
	}
	if len(c.EXIF) == 0 {
		t.Fatal("exif missing")
	}
	if len(c.PlanesOf(PlaneAuxiliary)) != 0 || len(c.PlanesOf(PlaneDepth)) != 0 {
		t.Fatal("unexpected auxiliary planes")
	}
}

func TestExtractCameraFile(t *testing.T) {
	_, direct := cameraDecode(t, "gray.heic")

	out := t.TempDir()
	res, err := ExtractFile(filepath.Join("testdata", "gray.heic"), out, func(o *ExtractOptions) {
		o.Logger, _ = test.NewNullLogger()
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	r, err := ReadTIFFFile(res.Files[TypeBase])
	if err != nil {
		t.Fatalf("read base: %v", err)
	}
	if r.Mode != direct.Mode || !bytes.Equal(r.Pix, direct.Pix) {
		t.Fatalf("base tiff %s differs from direct %s decode", r.Mode, direct.Mode)
	}
	if res.Record.Base.Size != [2]int{direct.Width, direct.Height} {
		t.Fatalf("record size %v", res.Record.Base.Size)
	}
}
