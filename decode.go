package heicplanes

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/vearutop/heicplanes/internal/heif"
)

// Decoder decodes the primary image of a HEIF byte stream.
type Decoder interface {
	DecodeImage(container []byte) (image.Image, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(container []byte) (image.Image, error)

// DecodeImage calls f.
func (f DecoderFunc) DecodeImage(container []byte) (image.Image, error) {
	return f(container)
}

// Decode parses a HEIF container and decodes its primary, auxiliary and
// depth planes with dec. Auxiliary and depth images are re-packed as
// standalone containers so that dec only has to handle primary images.
// Alpha planes are left to dec as part of the primary image.
//
// Errors are of type *DecodeError.
func Decode(data []byte, dec Decoder) (*Container, error) {
	if dec == nil {
		dec = DefaultDecoder()
	}
	f, err := heif.Parse(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	primary := f.Primary()
	c := &Container{ICC: primary.ICC()}
	if c.EXIF, err = f.EXIF(primary.ID); err != nil {
		return nil, &DecodeError{Plane: TypeBase, Err: fmt.Errorf("exif: %w", err)}
	}
	if c.XMP, err = f.XMP(primary.ID); err != nil {
		return nil, &DecodeError{Plane: TypeBase, Err: fmt.Errorf("xmp: %w", err)}
	}

	img, err := dec.DecodeImage(data)
	if err != nil {
		return nil, &DecodeError{Plane: TypeBase, Err: err}
	}
	c.Planes = append(c.Planes, &Plane{
		Kind:   PlanePrimary,
		Type:   TypeBase,
		ItemID: primary.ID,
		Raster: RasterFromImage(img),
	})

	untagged := 0
	for _, it := range f.Auxiliaries(primary.ID) {
		p := &Plane{Kind: PlaneAuxiliary, ItemID: it.ID, URN: it.AuxType()}
		if p.URN == "" {
			p.Type, p.ID = TypeAuxiliary, untagged
			untagged++
		} else {
			p.Type, p.ID = auxTypeTag(p.URN), int(it.ID)
		}
		if err := decodeItem(f, dec, it, p); err != nil {
			return nil, err
		}
		c.Planes = append(c.Planes, p)
	}

	for i, it := range f.Depths(primary.ID) {
		p := &Plane{Kind: PlaneDepth, Type: TypeDepth, ID: i, ItemID: it.ID, URN: it.AuxType()}
		if err := decodeItem(f, dec, it, p); err != nil {
			return nil, err
		}
		c.Planes = append(c.Planes, p)
	}
	return c, nil
}

func decodeItem(f *heif.File, dec Decoder, it *heif.Item, p *Plane) error {
	single, err := f.Standalone(it.ID)
	if err != nil {
		return &DecodeError{Plane: p.Name(), Err: err}
	}
	img, err := dec.DecodeImage(single)
	if err != nil {
		return &DecodeError{Plane: p.Name(), Err: err}
	}
	if p.XMP, err = f.XMP(it.ID); err != nil {
		return &DecodeError{Plane: p.Name(), Err: fmt.Errorf("xmp: %w", err)}
	}
	p.Raster = RasterFromImage(img)
	return nil
}

// auxTypeTag returns the last ':'-separated component of urn.
func auxTypeTag(urn string) string {
	tag := urn
	if i := strings.LastIndexByte(urn, ':'); i >= 0 {
		tag = urn[i+1:]
	}
	if tag == "" {
		return TypeAuxiliary
	}
	return tag
}

// DecodeFile reads and decodes the container at path.
func DecodeFile(path string, dec Decoder) (*Container, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	c, err := Decode(data, dec)
	if err != nil {
		if de, ok := err.(*DecodeError); ok {
			de.Path = path
		}
		return nil, err
	}
	return c, nil
}
