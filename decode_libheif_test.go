//go:build libheif

package heicplanes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/strukturag/libheif-go"
)

func TestTargetLayout(t *testing.T) {
	cases := map[string]struct {
		alpha      bool
		colorspace libheif.Colorspace
		chroma     libheif.Chroma
	}{
		"gray.heic":  {colorspace: libheif.ColorspaceMonochrome, chroma: libheif.ChromaMonochrome},
		"test8.heic": {colorspace: libheif.ColorspaceRGB, chroma: libheif.ChromaInterleavedRGB},
		"test.heic":  {alpha: true, colorspace: libheif.ColorspaceRGB, chroma: libheif.ChromaInterleavedRGBA},
	}
	for name, tc := range cases {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		if err != nil {
			t.Fatal(err)
		}
		colorspace, chroma := targetLayout(data, tc.alpha)
		if colorspace != tc.colorspace || chroma != tc.chroma {
			t.Fatalf("%s: got %v/%v", name, colorspace, chroma)
		}
	}
	if colorspace, _ := targetLayout([]byte("garbage"), false); colorspace != libheif.ColorspaceRGB {
		t.Fatalf("garbage: got %v", colorspace)
	}
}
