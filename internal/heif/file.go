// Package heif reads and writes the item structure of HEIF containers.
//
// It does not decode images. It locates image items, their properties,
// references and payloads, and can re-pack a single image item into a
// standalone container that any primary-image decoder accepts.
package heif

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Reference types used by HEIF image collections.
const (
	RefAuxiliary   = "auxl"
	RefDescription = "cdsc"
	RefDerived     = "dimg"
	RefThumbnail   = "thmb"
)

// ErrNoPrimary is returned when a container lacks a primary item.
var ErrNoPrimary = errors.New("heif: primary item missing")

// Property is one entry of the item property container.
type Property struct {
	Type      string
	Raw       []byte // complete box including header
	Essential bool
}

func (p Property) payload() []byte {
	if len(p.Raw) >= 16 && binary.BigEndian.Uint32(p.Raw) == 1 {
		return p.Raw[16:]
	}
	if len(p.Raw) < 8 {
		return nil
	}
	return p.Raw[8:]
}

// Reference is one single-type item reference.
type Reference struct {
	Type string
	From uint32
	To   []uint32
}

type extent struct {
	offset uint64
	length uint64
}

type location struct {
	method     uint16
	baseOffset uint64
	extents    []extent
}

// Item is an entry of the item information box.
type Item struct {
	ID              uint32
	Type            string
	Name            string
	ContentType     string
	ContentEncoding string
	Hidden          bool
	Properties      []Property

	loc *location
}

// Property returns the first associated property of the given box type.
func (it *Item) Property(typ string) (Property, bool) {
	for _, p := range it.Properties {
		if p.Type == typ {
			return p, true
		}
	}
	return Property{}, false
}

// Size returns the image spatial extents (ispe) of the item.
func (it *Item) Size() (width, height int, ok bool) {
	p, found := it.Property("ispe")
	if !found {
		return 0, 0, false
	}
	r := newReader(p.payload())
	r.fullBox()
	w, h := r.u32(), r.u32()
	if r.err != nil {
		return 0, 0, false
	}
	return int(w), int(h), true
}

// AuxType returns the auxiliary type URN from the auxC property, or "".
func (it *Item) AuxType() string {
	p, found := it.Property("auxC")
	if !found {
		return ""
	}
	r := newReader(p.payload())
	r.fullBox()
	return r.cstring()
}

// Coding is the sample layout an HEVC item is coded with.
type Coding struct {
	// ChromaFormat is chroma_format_idc: 0 monochrome, 1 4:2:0, 2 4:2:2, 3 4:4:4.
	ChromaFormat uint8
	LumaBits     int
	ChromaBits   int
}

// Monochrome reports whether the item carries luma only.
func (c Coding) Monochrome() bool {
	return c.ChromaFormat == 0
}

// Coding returns the layout from the hvcC property of id, or of the first
// tile id is derived from for grid items.
func (f *File) Coding(id uint32) (Coding, bool) {
	seen := make(map[uint32]bool)
	for !seen[id] {
		seen[id] = true
		it, ok := f.items[id]
		if !ok {
			return Coding{}, false
		}
		if p, found := it.Property("hvcC"); found {
			r := newReader(p.payload())
			r.take(16)
			chroma, luma, chromaBits := r.u8(), r.u8(), r.u8()
			if r.err != nil {
				return Coding{}, false
			}
			return Coding{ChromaFormat: chroma & 0x03, LumaBits: int(luma&0x07) + 8, ChromaBits: int(chromaBits&0x07) + 8}, true
		}
		tiles := f.derivedFrom(id)
		if len(tiles) == 0 {
			break
		}
		id = tiles[0]
	}
	return Coding{}, false
}

// ICC returns the embedded ICC profile from a colr property, or nil.
func (it *Item) ICC() []byte {
	for _, p := range it.Properties {
		if p.Type != "colr" {
			continue
		}
		r := newReader(p.payload())
		switch r.fourCC() {
		case "prof", "rICC":
			if icc := r.remaining(); len(icc) > 0 {
				return append([]byte(nil), icc...)
			}
		}
	}
	return nil
}

// File is a parsed HEIF container. Methods must not be called concurrently.
type File struct {
	data []byte

	Brand      string
	Compatible []string
	PrimaryID  uint32

	order []uint32
	items map[uint32]*Item
	refs  []Reference
	props []Property
	idat  []byte
}

// Parse reads the container structure from data. The returned File keeps a
// reference to data.
func Parse(data []byte) (*File, error) {
	top, err := readBoxes(data)
	if err != nil {
		return nil, err
	}
	f := &File{data: data, items: make(map[uint32]*Item)}

	ftyp, ok := findBox(top, "ftyp")
	if !ok {
		return nil, errors.New("heif: ftyp box missing")
	}
	r := newReader(ftyp.payload)
	f.Brand = r.fourCC()
	r.u32()
	for len(r.remaining()) >= 4 {
		f.Compatible = append(f.Compatible, r.fourCC())
	}
	if r.err != nil {
		return nil, fmt.Errorf("heif: ftyp: %w", r.err)
	}

	meta, ok := findBox(top, "meta")
	if !ok {
		return nil, errors.New("heif: meta box missing")
	}
	if len(meta.payload) < 4 {
		return nil, fmt.Errorf("heif: meta: %w", errTruncated)
	}
	children, err := readBoxes(meta.payload[4:])
	if err != nil {
		return nil, fmt.Errorf("heif: meta: %w", err)
	}

	if hdlr, ok := findBox(children, "hdlr"); ok {
		hr := newReader(hdlr.payload)
		hr.fullBox()
		hr.u32()
		if h := hr.fourCC(); hr.err == nil && h != "pict" {
			return nil, fmt.Errorf("heif: unsupported handler %q", h)
		}
	}

	steps := []struct {
		typ      string
		required bool
		parse    func([]byte) error
	}{
		{typ: "pitm", required: true, parse: f.parsePitm},
		{typ: "iinf", required: true, parse: f.parseIinf},
		{typ: "iloc", required: true, parse: f.parseIloc},
		{typ: "iref", parse: f.parseIref},
		{typ: "iprp", parse: f.parseIprp},
	}
	for _, s := range steps {
		b, ok := findBox(children, s.typ)
		if !ok {
			if s.required {
				return nil, fmt.Errorf("heif: %s box missing", s.typ)
			}
			continue
		}
		if err := s.parse(b.payload); err != nil {
			return nil, fmt.Errorf("heif: %s: %w", s.typ, err)
		}
	}
	if idat, ok := findBox(children, "idat"); ok {
		f.idat = idat.payload
	}

	if _, ok := f.items[f.PrimaryID]; !ok {
		return nil, ErrNoPrimary
	}
	return f, nil
}

func (f *File) parsePitm(p []byte) error {
	r := newReader(p)
	v, _ := r.fullBox()
	f.PrimaryID = r.id(v != 0)
	return r.err
}

func (f *File) parseIinf(p []byte) error {
	r := newReader(p)
	v, _ := r.fullBox()
	if v == 0 {
		r.u16()
	} else {
		r.u32()
	}
	if r.err != nil {
		return r.err
	}
	entries, err := readBoxes(r.remaining())
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.typ != "infe" {
			continue
		}
		it, err := parseInfe(e.payload)
		if err != nil {
			return err
		}
		if _, dup := f.items[it.ID]; dup {
			return fmt.Errorf("duplicate item id %d", it.ID)
		}
		f.items[it.ID] = it
		f.order = append(f.order, it.ID)
	}
	return nil
}

func parseInfe(p []byte) (*Item, error) {
	r := newReader(p)
	v, flags := r.fullBox()
	it := &Item{Hidden: flags&1 != 0}
	switch {
	case v < 2:
		it.ID = uint32(r.u16())
		r.u16()
		it.Name = r.cstring()
		it.ContentType = r.cstring()
		it.ContentEncoding = r.cstring()
	default:
		it.ID = r.id(v >= 3)
		r.u16()
		it.Type = r.fourCC()
		it.Name = r.cstring()
		if it.Type == "mime" {
			it.ContentType = r.cstring()
			it.ContentEncoding = r.cstring()
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("infe: %w", r.err)
	}
	return it, nil
}

func (f *File) parseIloc(p []byte) error {
	r := newReader(p)
	v, _ := r.fullBox()
	if v > 2 {
		return fmt.Errorf("unsupported version %d", v)
	}
	sizes := r.u16()
	offsetSize := int(sizes >> 12)
	lengthSize := int(sizes >> 8 & 0xF)
	baseOffsetSize := int(sizes >> 4 & 0xF)
	indexSize := 0
	if v == 1 || v == 2 {
		indexSize = int(sizes & 0xF)
	}
	var count uint32
	if v < 2 {
		count = uint32(r.u16())
	} else {
		count = r.u32()
	}
	for i := uint32(0); i < count && r.err == nil; i++ {
		id := r.id(v == 2)
		loc := &location{}
		if v == 1 || v == 2 {
			loc.method = r.u16() & 0xF
		}
		r.u16() // data_reference_index
		loc.baseOffset = r.uN(baseOffsetSize)
		n := r.u16()
		for j := uint16(0); j < n && r.err == nil; j++ {
			if indexSize > 0 {
				r.uN(indexSize)
			}
			loc.extents = append(loc.extents, extent{
				offset: r.uN(offsetSize),
				length: r.uN(lengthSize),
			})
		}
		if it, ok := f.items[id]; ok {
			it.loc = loc
		}
	}
	return r.err
}

func (f *File) parseIref(p []byte) error {
	r := newReader(p)
	v, _ := r.fullBox()
	if r.err != nil {
		return r.err
	}
	boxes, err := readBoxes(r.remaining())
	if err != nil {
		return err
	}
	for _, b := range boxes {
		br := newReader(b.payload)
		ref := Reference{Type: b.typ, From: br.id(v != 0)}
		n := br.u16()
		for i := uint16(0); i < n && br.err == nil; i++ {
			ref.To = append(ref.To, br.id(v != 0))
		}
		if br.err != nil {
			return fmt.Errorf("%s reference: %w", b.typ, br.err)
		}
		f.refs = append(f.refs, ref)
	}
	return nil
}

func (f *File) parseIprp(p []byte) error {
	children, err := readBoxes(p)
	if err != nil {
		return err
	}
	if ipco, ok := findBox(children, "ipco"); ok {
		props, err := readBoxes(ipco.payload)
		if err != nil {
			return fmt.Errorf("ipco: %w", err)
		}
		for _, pb := range props {
			f.props = append(f.props, Property{Type: pb.typ, Raw: pb.raw})
		}
	}
	for _, b := range children {
		if b.typ != "ipma" {
			continue
		}
		if err := f.parseIpma(b.payload); err != nil {
			return fmt.Errorf("ipma: %w", err)
		}
	}
	return nil
}

func (f *File) parseIpma(p []byte) error {
	r := newReader(p)
	v, flags := r.fullBox()
	count := r.u32()
	for i := uint32(0); i < count && r.err == nil; i++ {
		id := r.id(v >= 1)
		n := r.u8()
		it := f.items[id]
		for j := uint8(0); j < n && r.err == nil; j++ {
			var essential bool
			var index int
			if flags&1 != 0 {
				a := r.u16()
				essential, index = a&0x8000 != 0, int(a&0x7FFF)
			} else {
				a := r.u8()
				essential, index = a&0x80 != 0, int(a&0x7F)
			}
			if index == 0 || it == nil {
				continue
			}
			if index > len(f.props) {
				return fmt.Errorf("item %d references property %d of %d", id, index, len(f.props))
			}
			prop := f.props[index-1]
			prop.Essential = essential
			it.Properties = append(it.Properties, prop)
		}
	}
	return r.err
}

// Item returns the item with the given id.
func (f *File) Item(id uint32) (*Item, bool) {
	it, ok := f.items[id]
	return it, ok
}

// Items returns all items in item information order.
func (f *File) Items() []*Item {
	out := make([]*Item, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.items[id])
	}
	return out
}

// Primary returns the primary image item.
func (f *File) Primary() *Item {
	return f.items[f.PrimaryID]
}

// References returns the references of the given type.
func (f *File) References(typ string) []Reference {
	var out []Reference
	for _, ref := range f.refs {
		if ref.Type == typ {
			out = append(out, ref)
		}
	}
	return out
}

// referencing returns items holding a reference of type typ to target, in
// reference order.
func (f *File) referencing(typ string, target uint32) []*Item {
	var out []*Item
	seen := make(map[uint32]bool)
	for _, ref := range f.References(typ) {
		for _, to := range ref.To {
			if to != target || seen[ref.From] {
				continue
			}
			if it, ok := f.items[ref.From]; ok {
				seen[ref.From] = true
				out = append(out, it)
			}
		}
	}
	return out
}

// derivedFrom returns the items that id is derived from through dimg.
func (f *File) derivedFrom(id uint32) []uint32 {
	var out []uint32
	for _, ref := range f.References(RefDerived) {
		if ref.From == id {
			out = append(out, ref.To...)
		}
	}
	return out
}

// Data returns the concatenated payload of an item.
func (f *File) Data(it *Item) ([]byte, error) {
	if it.loc == nil {
		return nil, fmt.Errorf("heif: item %d has no location", it.ID)
	}
	var src []byte
	switch it.loc.method {
	case 0:
		src = f.data
	case 1:
		src = f.idat
	default:
		return nil, fmt.Errorf("heif: item %d uses unsupported construction method %d", it.ID, it.loc.method)
	}
	var buf bytes.Buffer
	for _, e := range it.loc.extents {
		start := it.loc.baseOffset + e.offset
		end := start + e.length
		if e.length == 0 {
			end = uint64(len(src))
		}
		if start > end || end > uint64(len(src)) {
			return nil, fmt.Errorf("heif: item %d extent [%d,%d) out of bounds", it.ID, start, end)
		}
		buf.Write(src[start:end])
	}
	return buf.Bytes(), nil
}

// IsAlphaURN reports whether an auxiliary type denotes an alpha plane.
func IsAlphaURN(urn string) bool {
	switch urn {
	case "urn:mpeg:hevc:2015:auxid:1", "urn:mpeg:avc:2015:auxid:1", "urn:mpeg:mpegB:cicp:systems:auxiliary:alpha":
		return true
	}
	return false
}

// IsDepthURN reports whether an auxiliary type denotes a depth plane.
func IsDepthURN(urn string) bool {
	switch urn {
	case "urn:mpeg:hevc:2015:auxid:2", "urn:mpeg:avc:2015:auxid:2", "urn:mpeg:mpegB:cicp:systems:auxiliary:depth":
		return true
	}
	return false
}

// Auxiliaries returns the auxiliary images of target, excluding alpha and
// depth planes, in reference order.
func (f *File) Auxiliaries(target uint32) []*Item {
	var out []*Item
	for _, it := range f.referencing(RefAuxiliary, target) {
		urn := it.AuxType()
		if IsAlphaURN(urn) || IsDepthURN(urn) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Depths returns the depth images of target in reference order.
func (f *File) Depths(target uint32) []*Item {
	var out []*Item
	for _, it := range f.referencing(RefAuxiliary, target) {
		if IsDepthURN(it.AuxType()) {
			out = append(out, it)
		}
	}
	return out
}

// EXIF returns the EXIF block describing target without the leading TIFF
// header offset field, or nil if there is none.
func (f *File) EXIF(target uint32) ([]byte, error) {
	for _, it := range f.referencing(RefDescription, target) {
		if it.Type != "Exif" {
			continue
		}
		data, err := f.Data(it)
		if err != nil {
			return nil, err
		}
		if len(data) < 4 {
			return nil, fmt.Errorf("heif: exif item %d: %w", it.ID, errTruncated)
		}
		return data[4:], nil
	}
	return nil, nil
}

// XMP returns the XMP packet describing target, or nil if there is none.
func (f *File) XMP(target uint32) ([]byte, error) {
	for _, it := range f.referencing(RefDescription, target) {
		if it.Type != "mime" || !strings.EqualFold(it.ContentType, "application/rdf+xml") {
			continue
		}
		return f.Data(it)
	}
	return nil, nil
}
