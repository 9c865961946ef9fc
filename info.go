package heicplanes

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/vearutop/heicplanes/internal/heif"
)

// ItemInfo describes one item of a container.
type ItemInfo struct {
	ID          uint32              `json:"id"`
	Type        string              `json:"type"`
	Name        string              `json:"name,omitempty"`
	ContentType string              `json:"content_type,omitempty"`
	Hidden      bool                `json:"hidden,omitempty"`
	Size        [2]int              `json:"size"`
	AuxType     string              `json:"aux_type,omitempty"`
	Properties  []string            `json:"properties"`
	References  map[string][]uint32 `json:"references,omitempty"`
	Bytes       int                 `json:"bytes"`
}

// ContainerInfo summarizes the structure of a HEIF container: its items,
// the auxiliary images grouped by type URN, the depth images and the
// metadata blobs of the primary image.
type ContainerInfo struct {
	Brand       string              `json:"brand"`
	Compatible  []string            `json:"compatible"`
	Primary     uint32              `json:"primary"`
	Items       []ItemInfo          `json:"items"`
	Aux         map[string][]uint32 `json:"aux"`
	DepthImages []uint32            `json:"depth_images"`
	ICCProfile  []byte              `json:"icc_profile"`
	EXIF        []byte              `json:"exif"`
	XMP         []byte              `json:"xmp"`
}

var refTypes = []string{heif.RefAuxiliary, heif.RefDescription, heif.RefDerived, heif.RefThumbnail}

// Inspect parses a container without decoding any image. Errors are of
// type *DecodeError.
func Inspect(data []byte) (*ContainerInfo, error) {
	f, err := heif.Parse(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	primary := f.Primary()
	info := &ContainerInfo{
		Brand:       f.Brand,
		Compatible:  f.Compatible,
		Primary:     f.PrimaryID,
		Aux:         map[string][]uint32{},
		DepthImages: []uint32{},
		ICCProfile:  nonEmpty(primary.ICC()),
	}
	if info.EXIF, err = f.EXIF(primary.ID); err != nil {
		return nil, &DecodeError{Plane: TypeBase, Err: err}
	}
	if info.XMP, err = f.XMP(primary.ID); err != nil {
		return nil, &DecodeError{Plane: TypeBase, Err: err}
	}
	info.EXIF, info.XMP = nonEmpty(info.EXIF), nonEmpty(info.XMP)

	for _, it := range f.Auxiliaries(primary.ID) {
		urn := it.AuxType()
		info.Aux[urn] = append(info.Aux[urn], it.ID)
	}
	for _, it := range f.Depths(primary.ID) {
		info.DepthImages = append(info.DepthImages, it.ID)
	}

	for _, it := range f.Items() {
		ii := ItemInfo{
			ID:          it.ID,
			Type:        it.Type,
			Name:        it.Name,
			ContentType: it.ContentType,
			Hidden:      it.Hidden,
			AuxType:     it.AuxType(),
			Properties:  make([]string, 0, len(it.Properties)),
		}
		if w, h, ok := it.Size(); ok {
			ii.Size = [2]int{w, h}
		}
		for _, p := range it.Properties {
			ii.Properties = append(ii.Properties, p.Type)
		}
		for _, typ := range refTypes {
			for _, ref := range f.References(typ) {
				if ref.From != it.ID {
					continue
				}
				if ii.References == nil {
					ii.References = map[string][]uint32{}
				}
				ii.References[typ] = append(ii.References[typ], ref.To...)
			}
		}
		if payload, err := f.Data(it); err == nil {
			ii.Bytes = len(payload)
		}
		info.Items = append(info.Items, ii)
	}
	sort.Slice(info.Items, func(i, j int) bool { return info.Items[i].ID < info.Items[j].ID })
	return info, nil
}

// InspectFile reads and inspects the container at path.
func InspectFile(path string) (*ContainerInfo, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	info, err := Inspect(data)
	if de, ok := err.(*DecodeError); ok {
		de.Path = path
	}
	return info, err
}
