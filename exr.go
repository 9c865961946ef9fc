package heicplanes

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const exrMagic = 20000630

const (
	exrPixelUint  = 0
	exrPixelHalf  = 1
	exrPixelFloat = 2
)

// Header attributes are small; anything larger is treated as corrupt.
const exrMaxAttribute = 1 << 20

// EXRChannel is one entry of an OpenEXR channel list.
type EXRChannel struct {
	Name      string
	PixelType int32 // 0 uint, 1 half, 2 float
	XSampling int32
	YSampling int32
}

// EXRHeader holds the header attributes of a single-part scanline OpenEXR
// file that the compositor checks.
type EXRHeader struct {
	Channels    []EXRChannel
	Width       int
	Height      int
	Compression byte
}

// ChannelNames returns the channel names in file order.
func (h *EXRHeader) ChannelNames() []string {
	names := make([]string, 0, len(h.Channels))
	for _, ch := range h.Channels {
		names = append(names, ch.Name)
	}
	return names
}

// ReadEXRHeader reads the header of an OpenEXR file without touching the
// pixel data.
func ReadEXRHeader(rd io.Reader) (*EXRHeader, error) {
	r := bufio.NewReader(rd)
	magic, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if magic != exrMagic {
		return nil, errors.New("not an OpenEXR file")
	}
	version, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if version&0x00000800 != 0 {
		return nil, errors.New("multipart OpenEXR not supported")
	}

	h := &EXRHeader{}
	var hasDataWindow bool
	for {
		name, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		typ, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		size, err := readI32(r)
		if err != nil {
			return nil, err
		}
		if size < 0 || size > exrMaxAttribute {
			return nil, fmt.Errorf("invalid EXR attribute %q size %d", name, size)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}

		switch name {
		case "channels":
			if typ != "chlist" {
				return nil, errors.New("unexpected channels attribute type")
			}
			if h.Channels, err = parseEXRChannels(payload); err != nil {
				return nil, err
			}
		case "dataWindow":
			if typ != "box2i" || len(payload) != 16 {
				return nil, errors.New("invalid dataWindow attribute")
			}
			xMin := int32(binary.LittleEndian.Uint32(payload[0:4]))
			yMin := int32(binary.LittleEndian.Uint32(payload[4:8]))
			xMax := int32(binary.LittleEndian.Uint32(payload[8:12]))
			yMax := int32(binary.LittleEndian.Uint32(payload[12:16]))
			h.Width = int(xMax-xMin) + 1
			h.Height = int(yMax-yMin) + 1
			hasDataWindow = true
		case "compression":
			if typ != "compression" || len(payload) < 1 {
				return nil, errors.New("invalid compression attribute")
			}
			h.Compression = payload[0]
		}
	}

	if len(h.Channels) == 0 {
		return nil, errors.New("OpenEXR missing channels")
	}
	if !hasDataWindow || h.Width <= 0 || h.Height <= 0 {
		return nil, errors.New("OpenEXR missing or invalid dataWindow")
	}
	return h, nil
}

// ReadEXRHeaderFile reads the header of the OpenEXR file at path.
func ReadEXRHeaderFile(path string) (*EXRHeader, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadEXRHeader(f)
}

func parseEXRChannels(data []byte) ([]EXRChannel, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	var channels []EXRChannel
	for {
		name, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		pixelType, err := readI32(r)
		if err != nil {
			return nil, err
		}
		if pixelType != exrPixelHalf && pixelType != exrPixelFloat && pixelType != exrPixelUint {
			return nil, fmt.Errorf("unsupported OpenEXR pixel type %d", pixelType)
		}
		// pLinear and three reserved bytes.
		if _, err := r.Discard(4); err != nil {
			return nil, err
		}
		xSampling, err := readI32(r)
		if err != nil {
			return nil, err
		}
		ySampling, err := readI32(r)
		if err != nil {
			return nil, err
		}
		channels = append(channels, EXRChannel{
			Name:      name,
			PixelType: pixelType,
			XSampling: xSampling,
			YSampling: ySampling,
		})
	}
	return channels, nil
}

func readNullString(r *bufio.Reader) (string, error) {
	s, err := r.ReadString(0)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return s[:len(s)-1], nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readI32(r io.Reader) (int32, error) {
	v, err := readU32(r)
	return int32(v), err
}
