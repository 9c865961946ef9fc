//go:build !libheif

package heicplanes

import (
	"bytes"
	"image"

	"github.com/gen2brain/heic"
)

type wazeroDecoder struct{}

func (wazeroDecoder) DecodeImage(container []byte) (image.Image, error) {
	return heic.Decode(bytes.NewReader(container))
}

// DefaultDecoder returns the decoder selected at build time. Without the
// libheif tag this is libheif compiled to WebAssembly, which needs no cgo.
func DefaultDecoder() Decoder {
	return wazeroDecoder{}
}
