package heif

import "fmt"

// Standalone re-packs the image item id, together with the items it is
// derived from (grid tiles), into a self-contained container with id as the
// primary item. The auxC property of the root is dropped so that decoders
// treat it as a regular image.
func (f *File) Standalone(id uint32) ([]byte, error) {
	if _, ok := f.items[id]; !ok {
		return nil, fmt.Errorf("heif: unknown item %d", id)
	}
	closure := f.closure(id)

	b := NewBuilder()
	if f.Brand != "" {
		b.Brand = f.Brand
	}
	for _, itemID := range closure {
		it := f.items[itemID]
		data, err := f.Data(it)
		if err != nil {
			return nil, err
		}
		spec := ItemSpec{
			ID:          it.ID,
			Type:        it.Type,
			Name:        it.Name,
			ContentType: it.ContentType,
			Hidden:      itemID != id,
			Data:        data,
		}
		if err := b.AddItem(spec); err != nil {
			return nil, err
		}
		for _, p := range it.Properties {
			if itemID == id && p.Type == "auxC" {
				continue
			}
			if err := b.AddProperty(itemID, p.Raw, p.Essential); err != nil {
				return nil, err
			}
		}
		if tiles := f.derivedFrom(itemID); len(tiles) > 0 {
			b.AddReference(RefDerived, itemID, tiles...)
		}
	}
	b.SetPrimary(id)
	return b.Bytes()
}

// closure returns id followed by every item reachable through dimg, each once.
func (f *File) closure(id uint32) []uint32 {
	var out []uint32
	seen := make(map[uint32]bool)
	var walk func(uint32)
	walk = func(cur uint32) {
		if seen[cur] {
			return
		}
		if _, ok := f.items[cur]; !ok {
			return
		}
		seen[cur] = true
		out = append(out, cur)
		for _, next := range f.derivedFrom(cur) {
			walk(next)
		}
	}
	walk(id)
	return out
}
