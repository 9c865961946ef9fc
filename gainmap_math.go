package heicplanes

import "fmt"

// GainCoefficients returns the multiply and add constants that turn a
// normalized gain map sample g into the HDR multiplier scale*g+offset, i.e.
// 1+(headroom-1)*g.
func GainCoefficients(headroom float64) (scale, offset float64) {
	return headroom - 1, 1
}

// expandHDR applies hdr = base * (1 + (headroom-1) * gain) per channel. base
// holds interleaved RGB samples and gain one sample per pixel, which is
// broadcast to all three channels.
func expandHDR(base, gain []float32, headroom float64) ([]float32, error) {
	if len(base) != 3*len(gain) {
		return nil, fmt.Errorf("base has %d samples, want 3 per gain sample (%d)", len(base), 3*len(gain))
	}
	scale, offset := GainCoefficients(headroom)
	out := make([]float32, len(base))
	for i, g := range gain {
		m := float32(offset + scale*float64(g))
		j := 3 * i
		out[j] = base[j] * m
		out[j+1] = base[j+1] * m
		out[j+2] = base[j+2] * m
	}
	return out, nil
}
