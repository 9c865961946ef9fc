package heicplanes

import (
	"fmt"
	"image"
	"image/color"
)

// Raster modes. 16-bit modes store big-endian samples.
const (
	ModeL      = "L"
	ModeI16    = "I;16"
	ModeRGB    = "RGB"
	ModeRGBA   = "RGBA"
	ModeRGB16  = "RGB;16"
	ModeRGBA16 = "RGBA;16"
)

// Raster is a tightly packed 2D pixel buffer.
type Raster struct {
	Mode   string
	Width  int
	Height int
	Stride int // bytes per row
	Pix    []byte
}

// BytesPerPixel returns the pixel size of mode, or 0 for unknown modes.
func BytesPerPixel(mode string) int {
	switch mode {
	case ModeL:
		return 1
	case ModeI16:
		return 2
	case ModeRGB:
		return 3
	case ModeRGBA:
		return 4
	case ModeRGB16:
		return 6
	case ModeRGBA16:
		return 8
	default:
		return 0
	}
}

func newRaster(mode string, w, h int) *Raster {
	stride := w * BytesPerPixel(mode)
	return &Raster{
		Mode:   mode,
		Width:  w,
		Height: h,
		Stride: stride,
		Pix:    make([]byte, stride*h),
	}
}

func (r *Raster) row(y int) []byte {
	return r.Pix[y*r.Stride : y*r.Stride+r.Width*BytesPerPixel(r.Mode)]
}

// RasterFromImage copies img into a Raster of the closest mode.
func RasterFromImage(img image.Image) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		r := newRaster(ModeL, w, h)
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(r.row(y), src.Pix[off:off+w])
		}
		return r
	case *image.Gray16:
		r := newRaster(ModeI16, w, h)
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(r.row(y), src.Pix[off:off+2*w])
		}
		return r
	}

	switch img.ColorModel() {
	case color.GrayModel:
		r := newRaster(ModeL, w, h)
		for y := 0; y < h; y++ {
			row := r.row(y)
			for x := 0; x < w; x++ {
				row[x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			}
		}
		return r
	case color.Gray16Model:
		r := newRaster(ModeI16, w, h)
		for y := 0; y < h; y++ {
			row := r.row(y)
			for x := 0; x < w; x++ {
				v := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y
				row[2*x], row[2*x+1] = uint8(v>>8), uint8(v)
			}
		}
		return r
	}

	alpha := !isOpaque(img)
	if is16Bit(img) {
		mode := ModeRGB16
		if alpha {
			mode = ModeRGBA16
		}
		r := newRaster(mode, w, h)
		bpp := BytesPerPixel(mode)
		for y := 0; y < h; y++ {
			row := r.row(y)
			for x := 0; x < w; x++ {
				c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				p := row[x*bpp:]
				p[0], p[1] = uint8(c.R>>8), uint8(c.R)
				p[2], p[3] = uint8(c.G>>8), uint8(c.G)
				p[4], p[5] = uint8(c.B>>8), uint8(c.B)
				if alpha {
					p[6], p[7] = uint8(c.A>>8), uint8(c.A)
				}
			}
		}
		return r
	}

	mode := ModeRGB
	if alpha {
		mode = ModeRGBA
	}
	r := newRaster(mode, w, h)
	bpp := BytesPerPixel(mode)
	for y := 0; y < h; y++ {
		row := r.row(y)
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			p := row[x*bpp:]
			p[0], p[1], p[2] = c.R, c.G, c.B
			if alpha {
				p[3] = c.A
			}
		}
	}
	return r
}

func is16Bit(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64:
		return true
	}
	switch img.ColorModel() {
	case color.RGBA64Model, color.NRGBA64Model:
		return true
	}
	return false
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}

// Validate checks that the buffer matches mode and dimensions.
func (r *Raster) Validate() error {
	bpp := BytesPerPixel(r.Mode)
	if bpp == 0 {
		return fmt.Errorf("unsupported raster mode %q", r.Mode)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid raster size %dx%d", r.Width, r.Height)
	}
	if r.Stride < r.Width*bpp {
		return fmt.Errorf("raster stride %d below row size %d", r.Stride, r.Width*bpp)
	}
	if len(r.Pix) < r.Stride*(r.Height-1)+r.Width*bpp {
		return fmt.Errorf("raster buffer of %d bytes too small", len(r.Pix))
	}
	return nil
}

// Image returns r as a standard library image. RGB modes become opaque
// NRGBA images.
func (r *Raster) Image() (image.Image, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, r.Width, r.Height)
	switch r.Mode {
	case ModeL:
		img := image.NewGray(rect)
		for y := 0; y < r.Height; y++ {
			copy(img.Pix[y*img.Stride:], r.row(y))
		}
		return img, nil
	case ModeI16:
		img := image.NewGray16(rect)
		for y := 0; y < r.Height; y++ {
			copy(img.Pix[y*img.Stride:], r.row(y))
		}
		return img, nil
	case ModeRGBA:
		img := image.NewNRGBA(rect)
		for y := 0; y < r.Height; y++ {
			copy(img.Pix[y*img.Stride:], r.row(y))
		}
		return img, nil
	case ModeRGBA16:
		img := image.NewNRGBA64(rect)
		for y := 0; y < r.Height; y++ {
			copy(img.Pix[y*img.Stride:], r.row(y))
		}
		return img, nil
	case ModeRGB:
		img := image.NewNRGBA(rect)
		for y := 0; y < r.Height; y++ {
			src, dst := r.row(y), img.Pix[y*img.Stride:]
			for x := 0; x < r.Width; x++ {
				copy(dst[4*x:4*x+3], src[3*x:3*x+3])
				dst[4*x+3] = 0xff
			}
		}
		return img, nil
	case ModeRGB16:
		img := image.NewNRGBA64(rect)
		for y := 0; y < r.Height; y++ {
			src, dst := r.row(y), img.Pix[y*img.Stride:]
			for x := 0; x < r.Width; x++ {
				copy(dst[8*x:8*x+6], src[6*x:6*x+6])
				dst[8*x+6], dst[8*x+7] = 0xff, 0xff
			}
		}
		return img, nil
	}
	return nil, fmt.Errorf("raster mode %q: %w", r.Mode, errUnsupportedImage)
}
