package heicplanes

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func patternRaster(mode string, w, h int) *Raster {
	r := newRaster(mode, w, h)
	for i := range r.Pix {
		r.Pix[i] = byte(i*7 + 3)
	}
	if mode == ModeRGBA {
		// Keep alpha non-opaque so the mode survives conversion.
		for i := 3; i < len(r.Pix); i += 4 {
			r.Pix[i] = 0x80
		}
	}
	if mode == ModeRGBA16 {
		for i := 6; i < len(r.Pix); i += 8 {
			r.Pix[i], r.Pix[i+1] = 0x80, 0x00
		}
	}
	return r
}

func TestRasterFromImageModes(t *testing.T) {
	rect := image.Rect(0, 0, 5, 3)
	translucent := image.NewNRGBA(rect)
	translucent.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 40})
	opaque := image.NewNRGBA(rect)
	for i := 3; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i] = 0xff
	}
	opaque64 := image.NewNRGBA64(rect)
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			opaque64.SetNRGBA64(x, y, color.NRGBA64{R: 1000, G: 2000, B: 3000, A: 0xffff})
		}
	}

	cases := []struct {
		name   string
		img    image.Image
		mode   string
		stride int
	}{
		{"gray", image.NewGray(rect), ModeL, 5},
		{"gray16", image.NewGray16(rect), ModeI16, 10},
		{"opaque nrgba", opaque, ModeRGB, 15},
		{"translucent nrgba", translucent, ModeRGBA, 20},
		{"opaque nrgba64", opaque64, ModeRGB16, 30},
		{"rgba64", image.NewRGBA64(rect), ModeRGBA16, 40},
		{"ycbcr", image.NewYCbCr(rect, image.YCbCrSubsampleRatio420), ModeRGB, 15},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			r := RasterFromImage(tc.img)
			if r.Mode != tc.mode {
				t.Fatalf("mode: got %q want %q", r.Mode, tc.mode)
			}
			if r.Width != 5 || r.Height != 3 || r.Stride != tc.stride {
				t.Fatalf("geometry: got %dx%d stride %d", r.Width, r.Height, r.Stride)
			}
			if len(r.Pix) != tc.stride*3 {
				t.Fatalf("pix len: got %d", len(r.Pix))
			}
		})
	}
}

func TestRasterFromSubImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = byte(i)
	}
	sub := src.SubImage(image.Rect(1, 1, 3, 3))
	r := RasterFromImage(sub)
	want := []byte{5, 6, 9, 10}
	if !bytes.Equal(r.Pix, want) {
		t.Fatalf("pix: got %v want %v", r.Pix, want)
	}
}

func TestRasterImageRoundTrip(t *testing.T) {
	for _, mode := range []string{ModeL, ModeI16, ModeRGB, ModeRGBA, ModeRGB16, ModeRGBA16} {
		mode := mode
		t.Run(mode, func(t *testing.T) {
			r := patternRaster(mode, 7, 4)
			img, err := r.Image()
			if err != nil {
				t.Fatalf("image: %v", err)
			}
			got := RasterFromImage(img)
			if got.Mode != mode {
				t.Fatalf("mode: got %q want %q", got.Mode, mode)
			}
			if !bytes.Equal(got.Pix, r.Pix) {
				t.Fatal("pixels differ after round trip")
			}
		})
	}
}

func TestRasterValidate(t *testing.T) {
	cases := map[string]*Raster{
		"mode":   {Mode: "CMYK", Width: 1, Height: 1, Stride: 4, Pix: make([]byte, 4)},
		"size":   {Mode: ModeL, Width: 0, Height: 1, Stride: 0},
		"stride": {Mode: ModeRGB, Width: 2, Height: 1, Stride: 3, Pix: make([]byte, 6)},
		"buffer": {Mode: ModeL, Width: 2, Height: 2, Stride: 2, Pix: make([]byte, 3)},
	}
	for name, r := range cases {
		if err := r.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
		if _, err := r.Image(); err == nil {
			t.Errorf("%s: expected image error", name)
		}
	}
}
