package heicplanes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ExtractOptions controls Extract.
type ExtractOptions struct {
	// Decoder decodes primary images; DefaultDecoder() when nil.
	Decoder Decoder
	// Logger receives progress; the logrus standard logger when nil.
	Logger logrus.FieldLogger
	// Ext is the raster file extension, "tiff" (default) or "tif".
	Ext string
}

// ExtractResult lists the files written by Extract.
type ExtractResult struct {
	// Files maps plane names ("base", "hdrgainmap_50", "depth_0") to paths.
	Files map[string]string
	// Ordered holds the plane names in write order.
	Ordered      []string
	MetadataPath string
	Record       *MetadataRecord
}

// ExtractFile extracts the planes of the container at inPath into outDir,
// which defaults to the directory of inPath. File names use the input file
// name without extension as stem.
func ExtractFile(inPath, outDir string, opts ...func(o *ExtractOptions)) (*ExtractResult, error) {
	data, err := os.ReadFile(filepath.Clean(inPath))
	if err != nil {
		return nil, &DecodeError{Path: inPath, Err: err}
	}
	if outDir == "" {
		outDir = filepath.Dir(inPath)
	}
	base := filepath.Base(inPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	res, err := Extract(data, stem, outDir, opts...)
	var de *DecodeError
	if errors.As(err, &de) && de.Path == "" {
		de.Path = inPath
	}
	return res, err
}

// Extract decodes a container and writes {stem}_base, one file per
// auxiliary plane ({stem}_{type}_{id}), one per depth plane
// ({stem}_depth_{index}) and {stem}_metadata.json into outDir.
//
// Every plane is decoded before anything is written, so a container that
// fails to decode leaves outDir untouched. A failed write removes the files
// written so far and returns a *WriteError naming the plane.
func Extract(data []byte, stem, outDir string, opts ...func(o *ExtractOptions)) (*ExtractResult, error) {
	opt := ExtractOptions{Ext: "tiff"}
	for _, applyOpt := range opts {
		applyOpt(&opt)
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	if opt.Decoder == nil {
		opt.Decoder = DefaultDecoder()
	}
	if opt.Ext != "tiff" && opt.Ext != "tif" {
		return nil, fmt.Errorf("unsupported raster extension %q", opt.Ext)
	}
	if stem == "" {
		return nil, errors.New("empty file stem")
	}
	log := opt.Logger.WithField("stem", stem)

	c, err := Decode(data, opt.Decoder)
	if err != nil {
		return nil, err
	}
	log.WithField("planes", len(c.Planes)).Debug("container decoded")

	res := &ExtractResult{Files: make(map[string]string, len(c.Planes))}
	names := make(map[string]string, len(c.Planes))
	for _, p := range c.Planes {
		name := p.Name()
		file := fmt.Sprintf("%s_%s.%s", stem, name, opt.Ext)
		path := filepath.Join(outDir, file)
		if _, dup := res.Files[name]; dup {
			return nil, &WriteError{Path: path, Plane: name, Err: errDuplicatePlane}
		}
		res.Files[name] = path
		res.Ordered = append(res.Ordered, name)
		names[name] = file
	}
	res.MetadataPath = filepath.Join(outDir, stem+"_metadata.json")
	res.Record = NewMetadataRecord(c, names)

	meta, err := res.Record.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	if err := os.MkdirAll(filepath.Clean(outDir), 0o755); err != nil {
		return nil, &WriteError{Path: outDir, Err: err}
	}

	var written []string
	cleanup := func() {
		for _, p := range written {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.WithError(err).WithField("file", p).Warn("failed to remove partial output")
			}
		}
	}

	for _, p := range c.Planes {
		name := p.Name()
		path := res.Files[name]
		written = append(written, path)
		if err := writeTIFFFile(path, p.Raster); err != nil {
			cleanup()
			return nil, &WriteError{Path: path, Plane: name, Err: err}
		}
		log.WithFields(logrus.Fields{
			"plane": name,
			"mode":  p.Raster.Mode,
			"size":  fmt.Sprintf("%dx%d", p.Raster.Width, p.Raster.Height),
			"file":  path,
		}).Info("plane written")
	}

	if err := os.WriteFile(filepath.Clean(res.MetadataPath), meta, 0o644); err != nil {
		if fileExists(res.MetadataPath) {
			written = append(written, res.MetadataPath)
		}
		cleanup()
		return nil, &WriteError{Path: res.MetadataPath, Plane: "metadata", Err: err}
	}
	log.WithField("file", res.MetadataPath).Info("metadata written")
	return res, nil
}
