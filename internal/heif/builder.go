package heif

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ItemSpec describes an item added to a Builder.
type ItemSpec struct {
	ID          uint32
	Type        string
	Name        string
	ContentType string
	Hidden      bool
	Data        []byte
}

type propRef struct {
	index     int // 1-based into Builder.props
	essential bool
}

type builderItem struct {
	spec  ItemSpec
	props []propRef
}

// Builder assembles a HEIF container with all item payloads stored in mdat.
type Builder struct {
	Brand      string
	Compatible []string

	primary uint32
	items   []*builderItem
	byID    map[uint32]*builderItem
	props   [][]byte
	refs    []Reference
}

// NewBuilder returns a Builder producing "heic" branded files.
func NewBuilder() *Builder {
	return &Builder{
		Brand:      "heic",
		Compatible: []string{"mif1", "heic"},
		byID:       make(map[uint32]*builderItem),
	}
}

// AddItem adds an item. Item ids must be unique and non-zero.
func (b *Builder) AddItem(spec ItemSpec) error {
	if spec.ID == 0 {
		return errors.New("heif: item id must be non-zero")
	}
	if _, dup := b.byID[spec.ID]; dup {
		return fmt.Errorf("heif: duplicate item id %d", spec.ID)
	}
	if len(spec.Type) != 4 {
		return fmt.Errorf("heif: item %d: invalid type %q", spec.ID, spec.Type)
	}
	it := &builderItem{spec: spec}
	b.items = append(b.items, it)
	b.byID[spec.ID] = it
	return nil
}

// AddProperty associates a complete property box with an item. Identical
// property boxes are stored once.
func (b *Builder) AddProperty(id uint32, raw []byte, essential bool) error {
	it, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("heif: property for unknown item %d", id)
	}
	index := 0
	for i, p := range b.props {
		if bytes.Equal(p, raw) {
			index = i + 1
			break
		}
	}
	if index == 0 {
		b.props = append(b.props, append([]byte(nil), raw...))
		index = len(b.props)
	}
	it.props = append(it.props, propRef{index: index, essential: essential})
	return nil
}

// AddReference adds a reference of type typ from one item to others.
func (b *Builder) AddReference(typ string, from uint32, to ...uint32) {
	b.refs = append(b.refs, Reference{Type: typ, From: from, To: to})
}

// SetPrimary sets the primary item id.
func (b *Builder) SetPrimary(id uint32) {
	b.primary = id
}

// Bytes serializes the container.
func (b *Builder) Bytes() ([]byte, error) {
	if _, ok := b.byID[b.primary]; !ok {
		return nil, ErrNoPrimary
	}
	ftyp := b.ftyp()

	// iloc uses fixed-width fields, so the meta size does not depend on
	// the offsets written into it.
	meta := b.meta(nil)
	mdatStart := uint64(len(ftyp) + len(meta) + 8)
	offsets := make(map[uint32]uint64, len(b.items))
	var payload bytes.Buffer
	for _, it := range b.items {
		if len(it.spec.Data) == 0 {
			continue
		}
		offsets[it.spec.ID] = mdatStart + uint64(payload.Len())
		payload.Write(it.spec.Data)
	}
	if mdatStart+uint64(payload.Len()) > math.MaxUint32 {
		return nil, errors.New("heif: container exceeds 4 GiB")
	}
	meta = b.meta(offsets)

	var out bytes.Buffer
	out.Write(ftyp)
	out.Write(meta)
	out.Write(makeBox("mdat", payload.Bytes()))
	return out.Bytes(), nil
}

func (b *Builder) wideIDs() bool {
	for _, it := range b.items {
		if it.spec.ID > math.MaxUint16 {
			return true
		}
	}
	return false
}

func (b *Builder) ftyp() []byte {
	w := &writer{}
	w.fourCC(b.Brand)
	w.u32(0)
	for _, c := range b.Compatible {
		w.fourCC(c)
	}
	return makeBox("ftyp", w.Bytes())
}

func (b *Builder) meta(offsets map[uint32]uint64) []byte {
	wide := b.wideIDs()
	var version uint8
	if wide {
		version = 1
	}

	hdlr := &writer{}
	hdlr.fullBox(0, 0)
	hdlr.u32(0)
	hdlr.fourCC("pict")
	hdlr.u32(0)
	hdlr.u32(0)
	hdlr.u32(0)
	hdlr.cstring("")

	pitm := &writer{}
	pitm.fullBox(version, 0)
	pitm.id(b.primary, wide)

	iinf := &writer{}
	iinf.fullBox(0, 0)
	iinf.u16(uint16(len(b.items)))
	for _, it := range b.items {
		iinf.Write(infe(it.spec, wide))
	}

	children := [][]byte{
		makeBox("hdlr", hdlr.Bytes()),
		makeBox("pitm", pitm.Bytes()),
		makeBox("iinf", iinf.Bytes()),
	}
	if len(b.refs) > 0 {
		iref := &writer{}
		iref.fullBox(version, 0)
		for _, ref := range b.refs {
			r := &writer{}
			r.id(ref.From, wide)
			r.u16(uint16(len(ref.To)))
			for _, to := range ref.To {
				r.id(to, wide)
			}
			iref.Write(makeBox(ref.Type, r.Bytes()))
		}
		children = append(children, makeBox("iref", iref.Bytes()))
	}
	if len(b.props) > 0 {
		children = append(children, b.iprp(wide))
	}
	children = append(children, b.iloc(offsets, wide))

	w := &writer{}
	w.fullBox(0, 0)
	for _, c := range children {
		w.Write(c)
	}
	return makeBox("meta", w.Bytes())
}

func infe(spec ItemSpec, wide bool) []byte {
	var version uint8 = 2
	if wide {
		version = 3
	}
	var flags uint32
	if spec.Hidden {
		flags = 1
	}
	w := &writer{}
	w.fullBox(version, flags)
	w.id(spec.ID, wide)
	w.u16(0)
	w.fourCC(spec.Type)
	w.cstring(spec.Name)
	if spec.Type == "mime" {
		w.cstring(spec.ContentType)
	}
	return makeBox("infe", w.Bytes())
}

func (b *Builder) iprp(wide bool) []byte {
	ipco := &writer{}
	for _, p := range b.props {
		ipco.Write(p)
	}
	large := len(b.props) > 0x7F
	var flags uint32
	if large {
		flags = 1
	}
	var version uint8
	if wide {
		version = 1
	}
	ipma := &writer{}
	ipma.fullBox(version, flags)
	var entries []*builderItem
	for _, it := range b.items {
		if len(it.props) > 0 {
			entries = append(entries, it)
		}
	}
	ipma.u32(uint32(len(entries)))
	for _, it := range entries {
		ipma.id(it.spec.ID, wide)
		ipma.u8(uint8(len(it.props)))
		for _, p := range it.props {
			if large {
				v := uint16(p.index)
				if p.essential {
					v |= 0x8000
				}
				ipma.u16(v)
				continue
			}
			v := uint8(p.index)
			if p.essential {
				v |= 0x80
			}
			ipma.u8(v)
		}
	}
	w := &writer{}
	w.Write(makeBox("ipco", ipco.Bytes()))
	w.Write(makeBox("ipma", ipma.Bytes()))
	return makeBox("iprp", w.Bytes())
}

func (b *Builder) iloc(offsets map[uint32]uint64, wide bool) []byte {
	var version uint8
	if wide {
		version = 2
	}
	var located []*builderItem
	for _, it := range b.items {
		if len(it.spec.Data) > 0 {
			located = append(located, it)
		}
	}
	w := &writer{}
	w.fullBox(version, 0)
	w.u16(4<<12 | 4<<8) // offset_size=4, length_size=4, base_offset_size=0
	if wide {
		w.u32(uint32(len(located)))
	} else {
		w.u16(uint16(len(located)))
	}
	for _, it := range located {
		w.id(it.spec.ID, wide)
		if wide {
			w.u16(0) // construction_method 0
		}
		w.u16(0) // data_reference_index
		w.u16(1)
		w.u32(uint32(offsets[it.spec.ID]))
		w.u32(uint32(len(it.spec.Data)))
	}
	return makeBox("iloc", w.Bytes())
}

// ISPE returns an image spatial extents property box.
func ISPE(width, height int) []byte {
	w := &writer{}
	w.fullBox(0, 0)
	w.u32(uint32(width))
	w.u32(uint32(height))
	return makeBox("ispe", w.Bytes())
}

// AuxC returns an auxiliary type property box.
func AuxC(urn string) []byte {
	w := &writer{}
	w.fullBox(0, 0)
	w.cstring(urn)
	return makeBox("auxC", w.Bytes())
}

// ColrICC returns a colour information property box holding an ICC profile.
func ColrICC(icc []byte) []byte {
	w := &writer{}
	w.fourCC("prof")
	w.Write(icc)
	return makeBox("colr", w.Bytes())
}

// EXIFPayload prefixes raw EXIF data with a zero TIFF header offset, as
// stored in Exif items.
func EXIFPayload(exif []byte) []byte {
	out := make([]byte, 4, 4+len(exif))
	return append(out, exif...)
}

func makeBox(typ string, payload []byte) []byte {
	out := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(payload)))
	copy(out[4:8], typ)
	return append(out, payload...)
}

type writer struct {
	bytes.Buffer
}

func (w *writer) u8(v uint8) {
	w.WriteByte(v)
}

func (w *writer) u16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func (w *writer) id(v uint32, wide bool) {
	if wide {
		w.u32(v)
		return
	}
	w.u16(uint16(v))
}

func (w *writer) fourCC(s string) {
	var b [4]byte
	copy(b[:], s)
	w.Write(b[:])
}

func (w *writer) cstring(s string) {
	w.WriteString(s)
	w.WriteByte(0)
}

func (w *writer) fullBox(version uint8, flags uint32) {
	w.u32(uint32(version)<<24 | flags&0x00FFFFFF)
}
