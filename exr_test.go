package heicplanes

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"
)

// exrHeader returns a minimal scanline OpenEXR header with half channels.
func exrHeader(channels []string, width, height int) []byte {
	var buf bytes.Buffer
	le := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	attr := func(name, typ string, payload []byte) {
		buf.WriteString(name)
		buf.WriteByte(0)
		buf.WriteString(typ)
		buf.WriteByte(0)
		le(uint32(len(payload)))
		buf.Write(payload)
	}

	le(exrMagic)
	le(2)

	var ch bytes.Buffer
	for _, name := range channels {
		ch.WriteString(name)
		ch.WriteByte(0)
		var rec [16]byte
		binary.LittleEndian.PutUint32(rec[0:4], exrPixelHalf)
		binary.LittleEndian.PutUint32(rec[8:12], 1)
		binary.LittleEndian.PutUint32(rec[12:16], 1)
		ch.Write(rec[:])
	}
	ch.WriteByte(0)
	attr("channels", "chlist", ch.Bytes())
	attr("compression", "compression", []byte{3})

	var win [16]byte
	binary.LittleEndian.PutUint32(win[8:12], uint32(width-1))
	binary.LittleEndian.PutUint32(win[12:16], uint32(height-1))
	attr("dataWindow", "box2i", win[:])
	attr("displayWindow", "box2i", win[:])
	buf.WriteByte(0)
	return buf.Bytes()
}

func TestReadEXRHeader(t *testing.T) {
	channels := []string{"R", "G", "B", "sdr.R", "sdr.G", "sdr.B", "mattes.semanticskin51.Y"}
	h, err := ReadEXRHeader(bytes.NewReader(exrHeader(channels, 64, 48)))
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if !reflect.DeepEqual(h.ChannelNames(), channels) {
		t.Fatalf("channels: got %v want %v", h.ChannelNames(), channels)
	}
	if h.Width != 64 || h.Height != 48 {
		t.Fatalf("size: got %dx%d", h.Width, h.Height)
	}
	if h.Compression != 3 {
		t.Fatalf("compression: got %d", h.Compression)
	}
	if h.Channels[0].PixelType != exrPixelHalf || h.Channels[0].XSampling != 1 {
		t.Fatalf("channel record: %+v", h.Channels[0])
	}
}

func TestReadEXRHeaderInvalid(t *testing.T) {
	valid := exrHeader([]string{"R"}, 4, 4)
	cases := map[string][]byte{
		"empty":       nil,
		"not exr":     []byte("this is not an exr file"),
		"truncated":   valid[:len(valid)-20],
		"no channels": exrHeader(nil, 4, 4),
	}
	for name, data := range cases {
		name, data := name, data
		t.Run(name, func(t *testing.T) {
			if _, err := ReadEXRHeader(bytes.NewReader(data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
