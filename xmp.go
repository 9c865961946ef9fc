package heicplanes

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reHeadroomAttr = regexp.MustCompile(`HDRGainMapHeadroom="([^"]+)"`)
	reHeadroomElem = regexp.MustCompile(`HDRGainMapHeadroom>([^<]+)<`)
	reHDRCapMax    = regexp.MustCompile(`hdrgm:HDRCapacityMax="([^"]+)"`)
)

// HeadroomFromXMP reads the HDR headroom from an XMP packet. Apple gain map
// packets carry HDRGainMap:HDRGainMapHeadroom directly; Adobe style packets
// carry hdrgm:HDRCapacityMax as a log2 value.
func HeadroomFromXMP(xmp []byte) (float64, error) {
	s := string(xmp)
	for _, re := range []*regexp.Regexp{reHeadroomAttr, reHeadroomElem} {
		if m := re.FindStringSubmatch(s); len(m) == 2 {
			return parseHeadroom(m[1])
		}
	}
	if m := reHDRCapMax.FindStringSubmatch(s); len(m) == 2 {
		v, err := parseHeadroom(m[1])
		if err != nil {
			return 0, err
		}
		return math.Exp2(v), nil
	}
	return 0, errNoHeadroom
}

func parseHeadroom(s string) (float64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite headroom %q", s)
	}
	return v, nil
}
