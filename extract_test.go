package heicplanes

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/vearutop/heicplanes/internal/heif"
)

const (
	urnGainMap = "urn:com:apple:photo:2020:aux:hdrgainmap"
	urnSkin    = "urn:com:apple:photo:2019:aux:semanticskinmatte"
	urnDepth   = "urn:mpeg:hevc:2015:auxid:2"
	urnAlpha   = "urn:mpeg:hevc:2015:auxid:1"
)

// fixtureDecoder stands in for an HEVC decoder. Item payloads are
// "<kind> <width> <height>" and decode to a deterministic pattern.
var fixtureDecoder = DecoderFunc(func(data []byte) (image.Image, error) {
	f, err := heif.Parse(data)
	if err != nil {
		return nil, err
	}
	payload, err := f.Data(f.Primary())
	if err != nil {
		return nil, err
	}
	return fixtureImage(string(payload))
})

func fixtureImage(payload string) (image.Image, error) {
	var (
		kind string
		w, h int
	)
	if _, err := fmt.Sscanf(payload, "%s %d %d", &kind, &w, &h); err != nil {
		return nil, fmt.Errorf("bad fixture payload %q: %w", payload, err)
	}
	rect := image.Rect(0, 0, w, h)
	switch kind {
	case "gray":
		img := image.NewGray(rect)
		for i := range img.Pix {
			img.Pix[i] = byte(i * 3)
		}
		return img, nil
	case "gray16":
		img := image.NewGray16(rect)
		for i := range img.Pix {
			img.Pix[i] = byte(i*11 + 1)
		}
		return img, nil
	case "rgb":
		img := image.NewNRGBA(rect)
		for i := range img.Pix {
			img.Pix[i] = byte(i * 5)
			if i%4 == 3 {
				img.Pix[i] = 0xff
			}
		}
		return img, nil
	}
	return nil, errors.New("corrupt bitstream")
}

const gainXMP = `<rdf:Description HDRGainMap:HDRGainMapHeadroom="2.25"/>`

func fixtureHEIC(t *testing.T, gainPayload string) []byte {
	t.Helper()
	b := heif.NewBuilder()
	add := func(spec heif.ItemSpec, props ...[]byte) {
		if err := b.AddItem(spec); err != nil {
			t.Fatalf("add item %d: %v", spec.ID, err)
		}
		for _, p := range props {
			if err := b.AddProperty(spec.ID, p, false); err != nil {
				t.Fatalf("add property: %v", err)
			}
		}
	}
	add(heif.ItemSpec{ID: 1, Type: "hvc1", Data: []byte("rgb 8 6")}, heif.ISPE(8, 6), heif.ColrICC([]byte("Display P3 profile")))
	add(heif.ItemSpec{ID: 50, Type: "hvc1", Hidden: true, Data: []byte(gainPayload)}, heif.ISPE(4, 3), heif.AuxC(urnGainMap))
	add(heif.ItemSpec{ID: 51, Type: "hvc1", Hidden: true, Data: []byte("gray 4 3")}, heif.ISPE(4, 3), heif.AuxC(urnSkin))
	add(heif.ItemSpec{ID: 52, Type: "hvc1", Hidden: true, Data: []byte("gray 2 2")}, heif.ISPE(2, 2))
	add(heif.ItemSpec{ID: 60, Type: "hvc1", Hidden: true, Data: []byte("gray16 2 2")}, heif.ISPE(2, 2), heif.AuxC(urnDepth))
	add(heif.ItemSpec{ID: 61, Type: "hvc1", Hidden: true, Data: []byte("gray 8 6")}, heif.ISPE(8, 6), heif.AuxC(urnAlpha))
	add(heif.ItemSpec{ID: 70, Type: "Exif", Data: heif.EXIFPayload([]byte("Exif\x00\x00MM\x00\x2a"))})
	add(heif.ItemSpec{ID: 71, Type: "mime", ContentType: "application/rdf+xml", Data: []byte("<x:xmpmeta/>")})
	add(heif.ItemSpec{ID: 72, Type: "mime", ContentType: "application/rdf+xml", Data: []byte(gainXMP)})
	for _, id := range []uint32{50, 51, 52, 60, 61} {
		b.AddReference(heif.RefAuxiliary, id, 1)
	}
	b.AddReference(heif.RefDescription, 70, 1)
	b.AddReference(heif.RefDescription, 71, 1)
	b.AddReference(heif.RefDescription, 72, 50)
	b.SetPrimary(1)
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return data
}

func extractOpts(o *ExtractOptions) {
	logger, _ := test.NewNullLogger()
	o.Decoder = fixtureDecoder
	o.Logger = logger
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestExtract(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	res, err := Extract(fixtureHEIC(t, "gray 4 3"), "IMG_0001", out, extractOpts)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	wantOrder := []string{"base", "hdrgainmap_50", "semanticskinmatte_51", "auxiliary_0", "depth_0"}
	if !reflect.DeepEqual(res.Ordered, wantOrder) {
		t.Fatalf("planes: got %v want %v", res.Ordered, wantOrder)
	}
	wantFiles := []string{
		"IMG_0001_auxiliary_0.tiff",
		"IMG_0001_base.tiff",
		"IMG_0001_depth_0.tiff",
		"IMG_0001_hdrgainmap_50.tiff",
		"IMG_0001_metadata.json",
		"IMG_0001_semanticskinmatte_51.tiff",
	}
	if got := dirNames(t, out); !reflect.DeepEqual(got, wantFiles) {
		t.Fatalf("files: got %v", got)
	}

	base, err := ReadTIFFFile(res.Files["base"])
	if err != nil {
		t.Fatalf("read base: %v", err)
	}
	img, _ := fixtureImage("rgb 8 6")
	if want := RasterFromImage(img); base.Mode != ModeRGB || !bytes.Equal(base.Pix, want.Pix) {
		t.Fatalf("base plane differs: mode %s", base.Mode)
	}
	depth, err := ReadTIFFFile(res.Files["depth_0"])
	if err != nil {
		t.Fatalf("read depth: %v", err)
	}
	if depth.Mode != ModeI16 || depth.Stride != 4 {
		t.Fatalf("depth: %s stride %d", depth.Mode, depth.Stride)
	}

	rec, err := ReadMetadataRecord(res.MetadataPath)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if rec.Base != (PlaneDescriptor{Mode: ModeRGB, Size: [2]int{8, 6}, Stride: 24, File: "IMG_0001_base.tiff"}) {
		t.Fatalf("base descriptor: %+v", rec.Base)
	}
	if string(rec.ICCProfile) != "Display P3 profile" || string(rec.EXIF) != "Exif\x00\x00MM\x00\x2a" || string(rec.XMP) != "<x:xmpmeta/>" {
		t.Fatalf("metadata blobs: %q %q %q", rec.ICCProfile, rec.EXIF, rec.XMP)
	}
	if len(rec.Auxiliary) != 4 {
		t.Fatalf("auxiliary: %+v", rec.Auxiliary)
	}
	gain := rec.Auxiliary[0]
	if gain.Type != TypeGainMap || gain.ID != 50 || gain.Kind != KindAuxiliary || gain.URN != urnGainMap ||
		gain.ItemID != 50 || string(gain.XMP) != gainXMP || gain.File != "IMG_0001_hdrgainmap_50.tiff" {
		t.Fatalf("gain map descriptor: %+v", gain)
	}
	if untagged := rec.Auxiliary[2]; untagged.Type != TypeAuxiliary || untagged.ID != 0 || untagged.ItemID != 52 || untagged.URN != "" {
		t.Fatalf("untagged descriptor: %+v", untagged)
	}
	if d := rec.Auxiliary[3]; d.Kind != KindDepth || d.Type != TypeDepth || d.Mode != ModeI16 || d.Size != [2]int{2, 2} {
		t.Fatalf("depth descriptor: %+v", d)
	}
	if h, err := HeadroomFromXMP(gain.XMP); err != nil || h != 2.25 {
		t.Fatalf("headroom from recorded xmp: %v, %v", h, err)
	}
}

func TestExtractFileDefaultsToInputDir(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "IMG_0002.HEIC")
	if err := os.WriteFile(in, fixtureHEIC(t, "gray 4 3"), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := ExtractFile(in, "", func(o *ExtractOptions) {
		extractOpts(o)
		o.Ext = "tif"
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if want := filepath.Join(dir, "IMG_0002_metadata.json"); res.MetadataPath != want {
		t.Fatalf("metadata path: got %s", res.MetadataPath)
	}
	if want := filepath.Join(dir, "IMG_0002_base.tif"); res.Files["base"] != want {
		t.Fatalf("base path: got %s", res.Files["base"])
	}
	if got := len(dirNames(t, dir)); got != 7 {
		t.Fatalf("files in input dir: %d", got)
	}
}

func TestExtractCorruptInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "broken.heic")
	if err := os.WriteFile(in, []byte("definitely not a heif"), 0o600); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")
	_, err := ExtractFile(in, out, extractOpts)
	var de *DecodeError
	if !errors.As(err, &de) || de.Path != in {
		t.Fatalf("expected DecodeError for %s, got %v", in, err)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("output directory created: %v", err)
	}
}

func TestExtractPlaneDecodeFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	_, err := Extract(fixtureHEIC(t, "garbage"), "IMG_0001", out, extractOpts)
	var de *DecodeError
	if !errors.As(err, &de) || de.Plane != "hdrgainmap_50" {
		t.Fatalf("expected DecodeError for hdrgainmap_50, got %v", err)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("output directory created: %v", err)
	}
}

func TestExtractMetadataWriteFailure(t *testing.T) {
	out := t.TempDir()
	if err := os.Mkdir(filepath.Join(out, "IMG_0001_metadata.json"), 0o700); err != nil {
		t.Fatal(err)
	}
	_, err := Extract(fixtureHEIC(t, "gray 4 3"), "IMG_0001", out, extractOpts)
	var we *WriteError
	if !errors.As(err, &we) || we.Plane != "metadata" {
		t.Fatalf("expected metadata WriteError, got %v", err)
	}
	if got := dirNames(t, out); !reflect.DeepEqual(got, []string{"IMG_0001_metadata.json"}) {
		t.Fatalf("partial output left: %v", got)
	}
}

func TestExtractRejectsExtension(t *testing.T) {
	_, err := Extract(fixtureHEIC(t, "gray 4 3"), "IMG_0001", t.TempDir(), extractOpts, func(o *ExtractOptions) {
		o.Ext = "png"
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
