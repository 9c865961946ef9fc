package heicplanes

import "fmt"

// PlaneKind identifies the role of a plane within a container.
type PlaneKind int

const (
	PlanePrimary PlaneKind = iota
	PlaneAuxiliary
	PlaneDepth
)

func (k PlaneKind) String() string {
	switch k {
	case PlanePrimary:
		return "primary"
	case PlaneAuxiliary:
		return "auxiliary"
	case PlaneDepth:
		return "depth"
	default:
		return fmt.Sprintf("PlaneKind(%d)", int(k))
	}
}

// Type tags of planes that are not derived from an auxiliary URN.
const (
	TypeBase      = "base"
	TypeDepth     = "depth"
	TypeAuxiliary = "auxiliary"
	TypeGainMap   = "hdrgainmap"
)

// Plane is one decoded raster of a container.
type Plane struct {
	Kind PlaneKind
	// Type is "base", "depth", or the last ':'-separated component of the
	// auxiliary URN ("auxiliary" when the container gives none).
	Type string
	// ID is the container item id for tagged auxiliary planes, and a
	// positional index for depth and untagged auxiliary planes.
	ID     int
	ItemID uint32
	URN    string
	XMP    []byte
	Raster *Raster
}

// Name returns the plane part of the output file name, e.g. "base",
// "hdrgainmap_50" or "depth_0".
func (p *Plane) Name() string {
	if p.Kind == PlanePrimary {
		return TypeBase
	}
	return fmt.Sprintf("%s_%d", p.Type, p.ID)
}

// Container is the decoded content of a HEIF file.
type Container struct {
	// Planes holds the primary plane first, then auxiliary planes in
	// container order, then depth planes.
	Planes []*Plane
	ICC    []byte
	EXIF   []byte
	XMP    []byte
}

// Primary returns the primary plane.
func (c *Container) Primary() *Plane {
	for _, p := range c.Planes {
		if p.Kind == PlanePrimary {
			return p
		}
	}
	return nil
}

// PlanesOf returns the planes of the given kind in container order.
func (c *Container) PlanesOf(kind PlaneKind) []*Plane {
	var out []*Plane
	for _, p := range c.Planes {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}
