//go:build libheif

package heicplanes

import (
	"fmt"
	"image"

	"github.com/strukturag/libheif-go"
	"github.com/vearutop/heicplanes/internal/heif"
)

type libheifDecoder struct{}

// DecodeImage decodes once, straight into the layout the raster needs: luma
// for monochrome coding, interleaved RGB(A) otherwise.
func (libheifDecoder) DecodeImage(container []byte) (image.Image, error) {
	ctx, err := libheif.NewContext()
	if err != nil {
		return nil, err
	}
	if err := ctx.ReadFromMemory(container); err != nil {
		return nil, err
	}
	handle, err := ctx.GetPrimaryImageHandle()
	if err != nil {
		return nil, err
	}

	colorspace, chroma := targetLayout(container, handle.HasAlphaChannel())
	img, err := handle.DecodeImage(colorspace, chroma, nil)
	if err != nil {
		return nil, err
	}
	if img.GetColorspace() == libheif.ColorspaceMonochrome {
		return monochrome(img)
	}
	return img.GetImage()
}

// targetLayout picks the decode target from the hvcC of the primary item.
// Containers without one decode to RGB.
func targetLayout(container []byte, alpha bool) (libheif.Colorspace, libheif.Chroma) {
	if f, err := heif.Parse(container); err == nil {
		if c, ok := f.Coding(f.PrimaryID); ok && c.Monochrome() && !alpha {
			return libheif.ColorspaceMonochrome, libheif.ChromaMonochrome
		}
	}
	if alpha {
		return libheif.ColorspaceRGB, libheif.ChromaInterleavedRGBA
	}
	return libheif.ColorspaceRGB, libheif.ChromaInterleavedRGB
}

// monochrome builds a gray image from the Y plane, which GetImage does not
// convert. Samples wider than 8 bits are little-endian 16-bit words.
func monochrome(img *libheif.Image) (image.Image, error) {
	plane, err := img.GetPlane(libheif.ChannelY)
	if err != nil {
		return nil, err
	}
	w, h := img.GetWidth(libheif.ChannelY), img.GetHeight(libheif.ChannelY)
	bits := img.GetBitsPerPixelRange(libheif.ChannelY)
	if w <= 0 || h <= 0 || bits <= 0 || bits > 16 {
		return nil, fmt.Errorf("monochrome plane %dx%d at %d bits: %w", w, h, bits, errUnsupportedImage)
	}
	rect := image.Rect(0, 0, w, h)

	if bits <= 8 {
		out := image.NewGray(rect)
		for y := 0; y < h; y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+w], plane.Plane[y*plane.Stride:])
		}
		return out, nil
	}

	maxV := uint32(1)<<bits - 1
	out := image.NewGray16(rect)
	for y := 0; y < h; y++ {
		src := plane.Plane[y*plane.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			v := uint32(src[2*x]) | uint32(src[2*x+1])<<8
			if v > maxV {
				v = maxV
			}
			v = v * 0xffff / maxV
			dst[2*x], dst[2*x+1] = uint8(v>>8), uint8(v)
		}
	}
	return out, nil
}

// DefaultDecoder returns the decoder selected at build time, here the system
// libheif through cgo.
func DefaultDecoder() Decoder {
	return libheifDecoder{}
}
