package heicplanes

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"
)

// WriteTIFF encodes r as a Deflate-compressed TIFF. The encoding is lossless:
// ReadTIFF of the result yields the same mode and pixels.
func WriteTIFF(w io.Writer, r *Raster) error {
	img, err := r.Image()
	if err != nil {
		return err
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// ReadTIFF decodes a TIFF into a Raster.
func ReadTIFF(rd io.Reader) (*Raster, error) {
	img, err := tiff.Decode(rd)
	if err != nil {
		return nil, fmt.Errorf("decode tiff: %w", err)
	}
	return RasterFromImage(img), nil
}

// ReadTIFFFile decodes the TIFF file at path.
func ReadTIFFFile(path string) (*Raster, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTIFF(bufio.NewReader(f))
}

func writeTIFFFile(path string, r *Raster) (err error) {
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err := WriteTIFF(bw, r); err != nil {
		return err
	}
	return bw.Flush()
}
