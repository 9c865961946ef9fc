package heicplanes

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Plane kinds as recorded in the metadata record.
const (
	KindAuxiliary = "auxiliary"
	KindDepth     = "depth"
)

// PlaneDescriptor describes the base plane. File is relative to the
// directory holding the record.
type PlaneDescriptor struct {
	Mode   string `json:"mode"`
	Size   [2]int `json:"size"`
	Stride int    `json:"stride"`
	File   string `json:"file"`
}

// AuxiliaryDescriptor describes one auxiliary or depth plane.
type AuxiliaryDescriptor struct {
	Type   string `json:"type"`
	ID     int    `json:"id"`
	Mode   string `json:"mode"`
	Size   [2]int `json:"size"`
	Stride int    `json:"stride"`
	File   string `json:"file"`
	Kind   string `json:"kind"`
	URN    string `json:"urn"`
	ItemID uint32 `json:"item_id"`
	XMP    []byte `json:"xmp"`
}

// MetadataRecord is the JSON sidecar written by Extract.
// Byte fields are base64-encoded in JSON and null when absent.
type MetadataRecord struct {
	Base       PlaneDescriptor       `json:"base"`
	ICCProfile []byte                `json:"icc_profile"`
	EXIF       []byte                `json:"exif"`
	XMP        []byte                `json:"xmp"`
	Auxiliary  []AuxiliaryDescriptor `json:"auxiliary"`
}

// NewMetadataRecord builds the record for c. files maps plane names to the
// file names the planes were written to.
func NewMetadataRecord(c *Container, files map[string]string) *MetadataRecord {
	rec := &MetadataRecord{
		ICCProfile: nonEmpty(c.ICC),
		EXIF:       nonEmpty(c.EXIF),
		XMP:        nonEmpty(c.XMP),
		Auxiliary:  []AuxiliaryDescriptor{},
	}
	if p := c.Primary(); p != nil {
		r := p.Raster
		rec.Base = PlaneDescriptor{
			Mode:   r.Mode,
			Size:   [2]int{r.Width, r.Height},
			Stride: r.Stride,
			File:   files[p.Name()],
		}
	}
	for _, kind := range []PlaneKind{PlaneAuxiliary, PlaneDepth} {
		recKind := KindAuxiliary
		if kind == PlaneDepth {
			recKind = KindDepth
		}
		for _, p := range c.PlanesOf(kind) {
			r := p.Raster
			rec.Auxiliary = append(rec.Auxiliary, AuxiliaryDescriptor{
				Type:   p.Type,
				ID:     p.ID,
				Mode:   r.Mode,
				Size:   [2]int{r.Width, r.Height},
				Stride: r.Stride,
				File:   files[p.Name()],
				Kind:   recKind,
				URN:    p.URN,
				ItemID: p.ItemID,
				XMP:    nonEmpty(p.XMP),
			})
		}
	}
	return rec
}

func nonEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

// Marshal returns the record as two-space indented JSON with a trailing
// newline.
func (m *MetadataRecord) Marshal() ([]byte, error) {
	out := *m
	if out.Auxiliary == nil {
		out.Auxiliary = []AuxiliaryDescriptor{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Validate ensures the record describes a usable set of planes.
func (m *MetadataRecord) Validate() error {
	if m == nil {
		return errors.New("metadata record is nil")
	}
	if err := validateDescriptor(TypeBase, m.Base.Mode, m.Base.Size, m.Base.Stride); err != nil {
		return err
	}
	seen := map[string]bool{}
	for i, d := range m.Auxiliary {
		name := fmt.Sprintf("%s_%d", d.Type, d.ID)
		if d.Type == "" {
			return fmt.Errorf("auxiliary plane %d has no type", i)
		}
		if d.Kind != KindAuxiliary && d.Kind != KindDepth {
			return fmt.Errorf("plane %s has unknown kind %q", name, d.Kind)
		}
		if seen[name] {
			return fmt.Errorf("plane %s: %w", name, errDuplicatePlane)
		}
		seen[name] = true
		if err := validateDescriptor(name, d.Mode, d.Size, d.Stride); err != nil {
			return err
		}
	}
	return nil
}

func validateDescriptor(name, mode string, size [2]int, stride int) error {
	bpp := BytesPerPixel(mode)
	if bpp == 0 {
		return fmt.Errorf("plane %s has unsupported mode %q", name, mode)
	}
	if size[0] <= 0 || size[1] <= 0 {
		return fmt.Errorf("plane %s has invalid size %dx%d", name, size[0], size[1])
	}
	if stride < size[0]*bpp {
		return fmt.Errorf("plane %s stride %d below row size %d", name, stride, size[0]*bpp)
	}
	return nil
}

// ReadMetadataRecord loads and validates a record written by Extract.
func ReadMetadataRecord(path string) (*MetadataRecord, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var m MetadataRecord
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}
