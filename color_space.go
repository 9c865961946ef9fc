package heicplanes

import (
	"bytes"
	"unicode/utf16"
)

// Gamut is the color gamut guessed from an ICC profile.
type Gamut int

const (
	GamutSRGB Gamut = iota
	GamutDisplayP3
	GamutAdobeRGB
)

func (g Gamut) String() string {
	switch g {
	case GamutDisplayP3:
		return "Display P3"
	case GamutAdobeRGB:
		return "Adobe RGB"
	default:
		return "sRGB"
	}
}

var (
	p3Names    = [][]byte{[]byte("display p3"), []byte("dci-p3"), []byte("p3 d65")}
	adobeNames = [][]byte{[]byte("adobe rgb"), []byte("adobergb")}
)

// DetectGamut guesses the gamut from the profile description. Version 4
// profiles store it UTF-16BE encoded in an mluc tag, so both encodings are
// searched. An empty profile is sRGB.
func DetectGamut(icc []byte) Gamut {
	if len(icc) == 0 {
		return GamutSRGB
	}
	lower := bytes.ToLower(icc)
	if containsAny(lower, p3Names) {
		return GamutDisplayP3
	}
	if containsAny(lower, adobeNames) {
		return GamutAdobeRGB
	}
	return GamutSRGB
}

func containsAny(profile []byte, names [][]byte) bool {
	for _, n := range names {
		if bytes.Contains(profile, n) || bytes.Contains(profile, utf16BE(n)) {
			return true
		}
	}
	return false
}

func utf16BE(s []byte) []byte {
	units := utf16.Encode([]rune(string(s)))
	out := make([]byte, 0, 2*len(units))
	for _, u := range units {
		out = append(out, byte(u>>8), byte(u))
	}
	return out
}
