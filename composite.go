package heicplanes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultColorConfig is the OCIO config passed to oiiotool --colorconfig.
	DefaultColorConfig = "studio-config-v1.0.0_aces-v1.3_ocio-v2.1.ocio"
	// DefaultCompositeOutput is written in the working directory when no
	// output path is given.
	DefaultCompositeOutput = "output_acesCG.exr"
)

// Headroom sources.
const (
	HeadroomFromExifTool  = "exiftool"
	HeadroomFromXMPRecord = "xmp"
)

// CompositeOptions controls Composite.
type CompositeOptions struct {
	Runner   Runner
	Logger   logrus.FieldLogger
	OIIOTool string
	ExifTool string
	// ColorConfig is the OCIO config used for color conversions.
	ColorConfig string
	// HeadroomSource is HeadroomFromExifTool (default) or
	// HeadroomFromXMPRecord, which reads the gain map XMP kept in the
	// metadata record and spares the exiftool call.
	HeadroomSource string
	// Stem overrides the file name stem derived from the original file.
	Stem string
	// DiscoverByName locates planes by file name patterns instead of the
	// metadata record.
	DiscoverByName bool
	// KeepTemp leaves the working directory in place for inspection.
	KeepTemp bool
	// TempDir is the parent of the working directory, os.TempDir() if empty.
	TempDir string
}

// CompositeResult describes a written multi-layer EXR.
type CompositeResult struct {
	Output   string
	Width    int
	Height   int
	Headroom float64
	Channels []string
}

type mattePlane struct {
	name string
	path string
}

type compositeInputs struct {
	stem       string
	record     string // metadata record path, empty when discovered by name
	base       string
	icc        []byte
	gainmap    string
	gainmapXMP []byte
	depth      string
	mattes     []mattePlane
}

// Composite merges a directory written by Extract into a multi-layer ACEScg
// OpenEXR at output. The layers are, in order: the HDR reconstruction as
// R,G,B, then sdr.*, gainmap.*, depth.Y and one mattes.<name>.Y per matte.
//
// The first failing step ends the run. Intermediate files live in a private
// temporary directory that is removed on every return path.
func Composite(ctx context.Context, inputDir, original, output string, opts ...func(o *CompositeOptions)) (*CompositeResult, error) {
	opt := CompositeOptions{
		OIIOTool:       "oiiotool",
		ExifTool:       "exiftool",
		ColorConfig:    DefaultColorConfig,
		HeadroomSource: HeadroomFromExifTool,
	}
	for _, applyOpt := range opts {
		applyOpt(&opt)
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	if opt.Runner == nil {
		opt.Runner = ExecRunner{Logger: opt.Logger}
	}
	if opt.HeadroomSource != HeadroomFromExifTool && opt.HeadroomSource != HeadroomFromXMPRecord {
		return nil, fmt.Errorf("unknown headroom source %q", opt.HeadroomSource)
	}
	if output == "" {
		output = DefaultCompositeOutput
	}

	in, err := discoverInputs(inputDir, original, opt)
	if err != nil {
		return nil, err
	}

	log := opt.Logger.WithFields(logrus.Fields{"run": uuid.NewString(), "stem": in.stem})
	tmp, err := os.MkdirTemp(opt.TempDir, "heicplanes-")
	if err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	if opt.KeepTemp {
		log.WithField("dir", tmp).Info("keeping working directory")
	} else {
		defer func() {
			if err := os.RemoveAll(tmp); err != nil {
				log.WithError(err).WithField("dir", tmp).Warn("failed to remove working directory")
			}
		}()
	}

	c := &compositor{ctx: ctx, opt: opt, log: log, tmp: tmp}
	return c.run(in, original, output)
}

type compositor struct {
	ctx context.Context
	opt CompositeOptions
	log logrus.FieldLogger
	tmp string
}

func (c *compositor) oiio(args ...string) error {
	_, err := c.opt.Runner.Run(c.ctx, c.opt.OIIOTool, args...)
	return err
}

func (c *compositor) work(name string) string {
	return filepath.Join(c.tmp, name)
}

func (c *compositor) run(in *compositeInputs, original, output string) (*CompositeResult, error) {
	width, height, err := c.dimensions(in.base)
	if err != nil {
		return nil, err
	}
	headroom, err := c.headroom(in, original)
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{
		"size":     fmt.Sprintf("%dx%d", width, height),
		"headroom": headroom,
	}).Info("base measured")
	if len(in.icc) > 0 {
		if g := DetectGamut(in.icc); g != GamutDisplayP3 {
			c.log.WithField("gamut", g.String()).Warn("base profile is not Display P3, primaries remap assumes it is")
		}
	}

	cfg := c.opt.ColorConfig
	size := fmt.Sprintf("%dx%d", width, height)

	baseEXR := c.work("base.exr")
	if err := c.oiio(in.base,
		"--ch", "R,G,B",
		"--chnames", "sdr.R,sdr.G,sdr.B",
		"--colorconfig", cfg,
		"--colorconvert", "sRGB - Texture", "Linear Rec.709 (sRGB)",
		"--colorconvert", "Linear P3-D65", "ACES - ACEScg",
		"-o", baseEXR); err != nil {
		return nil, fmt.Errorf("convert base: %w", err)
	}
	c.log.WithField("file", in.base).Info("base converted")

	var gainEXR string
	if in.gainmap != "" {
		gainEXR = c.work("gainmap.exr")
		if err := c.oiio(in.gainmap,
			"--ch", "Y",
			"--chnames", "gainmap.Y",
			"--resize", size,
			"--colorconfig", cfg,
			"--ocionamedtransform", "Rec.709 - Curve",
			"-o", gainEXR); err != nil {
			return nil, fmt.Errorf("convert gain map: %w", err)
		}
		c.log.WithField("file", in.gainmap).Info("gain map converted")
	} else {
		c.log.Info("no gain map, HDR layer repeats the base")
	}

	var depthEXR string
	if in.depth != "" {
		depthEXR = c.work("depth.exr")
		if err := c.oiio(in.depth,
			"--ch", "Y",
			"--chnames", "depth.Y",
			"--resize", size,
			"-o", depthEXR); err != nil {
			return nil, fmt.Errorf("convert depth: %w", err)
		}
		c.log.WithField("file", in.depth).Info("depth converted")
	}

	matteEXR := make([]string, len(in.mattes))
	for i, m := range in.mattes {
		matteEXR[i] = c.work(fmt.Sprintf("matte_%d.exr", i))
		if err := c.oiio(m.path,
			"--ch", "Y",
			"--chnames", "mattes."+m.name+".Y",
			"--resize", size,
			"-o", matteEXR[i]); err != nil {
			return nil, fmt.Errorf("convert matte %s: %w", m.name, err)
		}
		c.log.WithFields(logrus.Fields{"matte": m.name, "file": m.path}).Info("matte converted")
	}

	hdrEXR := c.work("hdr_base.exr")
	var gainRGB string
	if gainEXR != "" {
		gainRGB = c.work("gainmap_rgb.exr")
		if err := c.oiio(gainEXR,
			"--ch", "gainmap.Y,gainmap.Y,gainmap.Y",
			"--chnames", "gainmap.R,gainmap.G,gainmap.B",
			"-o", gainRGB); err != nil {
			return nil, fmt.Errorf("broadcast gain map: %w", err)
		}
		scale, offset := GainCoefficients(headroom)
		scaled := c.work("gainmap_scaled.exr")
		if err := c.oiio(gainRGB,
			"--mulc", formatFloat(scale),
			"--addc", formatFloat(offset),
			"-o", scaled); err != nil {
			return nil, fmt.Errorf("scale gain map: %w", err)
		}
		if err := c.oiio(baseEXR, scaled,
			"--mul",
			"--chnames", "R,G,B",
			"-o", hdrEXR); err != nil {
			return nil, fmt.Errorf("expand hdr: %w", err)
		}
	} else if err := c.oiio(baseEXR, "--chnames", "R,G,B", "-o", hdrEXR); err != nil {
		return nil, fmt.Errorf("copy base as hdr: %w", err)
	}
	c.log.Info("hdr base computed")

	final := c.work("final.exr")
	if err := c.oiio(hdrEXR, "--ch", "R,G,B", "-o", final); err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	channels := []string{"R", "G", "B"}
	appendLayer := func(src string, layer ...string) error {
		if err := c.oiio(final, src, "--ch", strings.Join(layer, ","), "--siappend", "-o", final); err != nil {
			return fmt.Errorf("append %s: %w", strings.Join(layer, ","), err)
		}
		channels = append(channels, layer...)
		return nil
	}
	if err := appendLayer(baseEXR, "sdr.R", "sdr.G", "sdr.B"); err != nil {
		return nil, err
	}
	if gainRGB != "" {
		if err := appendLayer(gainRGB, "gainmap.R", "gainmap.G", "gainmap.B"); err != nil {
			return nil, err
		}
	}
	if depthEXR != "" {
		if err := appendLayer(depthEXR, "depth.Y"); err != nil {
			return nil, err
		}
	}
	for i, m := range in.mattes {
		if err := appendLayer(matteEXR[i], "mattes."+m.name+".Y"); err != nil {
			return nil, err
		}
	}

	if err := c.verify(final, channels, width, height); err != nil {
		return nil, err
	}
	if err := moveFile(final, output); err != nil {
		return nil, &WriteError{Path: output, Err: err}
	}
	c.log.WithFields(logrus.Fields{"file": output, "channels": len(channels)}).Info("exr written")

	return &CompositeResult{
		Output:   output,
		Width:    width,
		Height:   height,
		Headroom: headroom,
		Channels: channels,
	}, nil
}

var reInfoSize = regexp.MustCompile(`(\d+)\s*x\s*(\d+)`)

func (c *compositor) dimensions(base string) (int, int, error) {
	out, err := c.opt.Runner.Run(c.ctx, c.opt.OIIOTool, "--info", base)
	if err != nil {
		return 0, 0, &DimensionError{Path: base, Output: string(out), Err: err}
	}
	w, h, err := parseInfoDimensions(string(out))
	if err != nil {
		return 0, 0, &DimensionError{Path: base, Output: string(out), Err: err}
	}
	return w, h, nil
}

// parseInfoDimensions reads "W x H" from "name : W x H, N channel, ...".
func parseInfoDimensions(out string) (int, int, error) {
	if i := strings.Index(out, " : "); i >= 0 {
		out = out[i+3:]
	}
	m := reInfoSize.FindStringSubmatch(out)
	if m == nil {
		return 0, 0, errNoDimensions
	}
	w, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, err
	}
	if w <= 0 || h <= 0 {
		return 0, 0, errNoDimensions
	}
	return w, h, nil
}

func (c *compositor) headroom(in *compositeInputs, original string) (float64, error) {
	if c.opt.HeadroomSource == HeadroomFromXMPRecord {
		if len(in.gainmapXMP) == 0 {
			return 0, &HeadroomMissingError{Path: in.record, Err: errNoGainMapXMP}
		}
		v, err := HeadroomFromXMP(in.gainmapXMP)
		if err != nil {
			return 0, &HeadroomMissingError{Path: in.record, Err: err}
		}
		return v, nil
	}

	out, err := c.opt.Runner.Run(c.ctx, c.opt.ExifTool, "-HDRGainMapHeadroom", "-b", original)
	if err != nil {
		return 0, &HeadroomMissingError{Path: original, Err: err}
	}
	s := strings.TrimSpace(string(out))
	if s == "" {
		return 0, &HeadroomMissingError{Path: original, Err: errNoHeadroom}
	}
	v, err := parseHeadroom(s)
	if err != nil {
		return 0, &HeadroomMissingError{Path: original, Value: s, Err: err}
	}
	return v, nil
}

func (c *compositor) verify(path string, channels []string, width, height int) error {
	h, err := ReadEXRHeaderFile(path)
	if err != nil {
		return &ExternalToolError{Tool: c.opt.OIIOTool, Err: fmt.Errorf("read assembled %s: %w", filepath.Base(path), err)}
	}
	names := h.ChannelNames()
	have := make(map[string]bool, len(names))
	for _, name := range names {
		have[name] = true
	}
	var missing []string
	for _, ch := range channels {
		if !have[ch] {
			missing = append(missing, ch)
		}
	}
	if len(missing) > 0 {
		return &ExternalToolError{Tool: c.opt.OIIOTool, Err: fmt.Errorf("assembled output lacks channels %s", strings.Join(missing, ","))}
	}
	if h.Width != width || h.Height != height {
		return &ExternalToolError{Tool: c.opt.OIIOTool, Err: fmt.Errorf("assembled output is %dx%d, want %dx%d", h.Width, h.Height, width, height)}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func discoverInputs(dir, original string, opt CompositeOptions) (*compositeInputs, error) {
	stem := opt.Stem
	if stem == "" {
		base := filepath.Base(original)
		stem = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if opt.DiscoverByName {
		return discoverByName(dir, stem)
	}

	metaPath := filepath.Join(dir, stem+"_metadata.json")
	if _, err := os.Stat(metaPath); errors.Is(err, os.ErrNotExist) && opt.Stem == "" {
		matches, _ := filepath.Glob(filepath.Join(dir, "*_metadata.json"))
		if len(matches) == 1 {
			metaPath = matches[0]
			stem = strings.TrimSuffix(filepath.Base(metaPath), "_metadata.json")
		}
	}
	rec, err := ReadMetadataRecord(metaPath)
	if err != nil {
		return nil, fmt.Errorf("read metadata record: %w", err)
	}

	in := &compositeInputs{
		stem:   stem,
		record: metaPath,
		icc:    rec.ICCProfile,
		base:   planeFile(dir, rec.Base.File, stem+"_base.tiff"),
	}
	for _, d := range rec.Auxiliary {
		name := fmt.Sprintf("%s_%d", d.Type, d.ID)
		path := planeFile(dir, d.File, stem+"_"+name+".tiff")
		switch {
		case d.Kind == KindDepth || d.Type == TypeDepth:
			if in.depth == "" {
				in.depth = path
			}
		case d.Type == TypeGainMap:
			if in.gainmap == "" {
				in.gainmap = path
				in.gainmapXMP = d.XMP
			}
		case strings.Contains(strings.ToLower(d.Type), "matte"):
			in.mattes = append(in.mattes, mattePlane{name: matteLayerName(name), path: path})
		}
	}
	return in, nil
}

func discoverByName(dir, stem string) (*compositeInputs, error) {
	in := &compositeInputs{stem: stem, base: filepath.Join(dir, stem+"_base.tiff")}

	gainmaps, err := filepath.Glob(filepath.Join(dir, stem+"_"+TypeGainMap+"_*.tiff"))
	if err != nil {
		return nil, err
	}
	sort.Strings(gainmaps)
	if len(gainmaps) > 0 {
		in.gainmap = gainmaps[0]
	}

	if depth := filepath.Join(dir, stem+"_depth_0.tiff"); fileExists(depth) {
		in.depth = depth
	}

	mattes, err := filepath.Glob(filepath.Join(dir, stem+"_*matte_*.tiff"))
	if err != nil {
		return nil, err
	}
	sort.Strings(mattes)
	for _, m := range mattes {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), stem+"_"), ".tiff")
		in.mattes = append(in.mattes, mattePlane{name: matteLayerName(name), path: m})
	}
	return in, nil
}

// matteLayerName drops the first "matte_" from a plane name, so
// "semanticskinmatte_51" becomes "semanticskin51".
func matteLayerName(plane string) string {
	return strings.Replace(plane, "matte_", "", 1)
}

func planeFile(dir, recorded, fallback string) string {
	if recorded != "" {
		return filepath.Join(dir, filepath.Base(recorded))
	}
	return filepath.Join(dir, fallback)
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
