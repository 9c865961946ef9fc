package heicplanes

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// ftyp payloads are short; brands past this are ignored.
const maxFtypScan = 256

var heifBrands = map[string]bool{
	"heic": true, "heix": true, "hevc": true, "hevx": true,
	"heim": true, "heis": true, "mif1": true, "msf1": true,
}

// IsHEIF performs a streaming check of the leading ftyp box. It reads at
// most a few hundred bytes and reports false, without error, for data that
// is not a HEIF container.
func IsHEIF(r io.Reader) (bool, error) {
	br := bufio.NewReader(r)
	var hdr [8]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	if string(hdr[4:8]) != "ftyp" {
		return false, nil
	}
	size := int(binary.BigEndian.Uint32(hdr[0:4]))
	if size < 16 {
		return false, nil
	}
	n := size - 8
	if n > maxFtypScan {
		n = maxFtypScan
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(br, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	if heifBrands[string(payload[0:4])] {
		return true, nil
	}
	// payload[4:8] is the minor version.
	for off := 8; off+4 <= len(payload); off += 4 {
		if heifBrands[string(payload[off:off+4])] {
			return true, nil
		}
	}
	return false, nil
}
