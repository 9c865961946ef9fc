package heicplanes

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errDuplicatePlane   = errors.New("duplicate plane name")
	errNoDimensions     = errors.New("no dimensions in tool output")
	errNoHeadroom       = errors.New("headroom tag absent")
	errNoGainMapXMP     = errors.New("gain map XMP not recorded")
	errUnsupportedImage = errors.New("unsupported image layout")
)

// DecodeError reports a container that could not be parsed or a plane that
// could not be decoded.
type DecodeError struct {
	Path  string
	Plane string
	Err   error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("decode")
	if e.Path != "" {
		b.WriteString(" " + e.Path)
	}
	if e.Plane != "" {
		b.WriteString(" plane " + e.Plane)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// WriteError reports a failure to write one output file.
type WriteError struct {
	Path  string
	Plane string
	Err   error
}

func (e *WriteError) Error() string {
	if e.Plane == "" {
		return fmt.Sprintf("write %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("write plane %s to %s: %v", e.Plane, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// DimensionError reports that the size of the base raster could not be
// determined. Output holds what the info query printed.
type DimensionError struct {
	Path   string
	Output string
	Err    error
}

func (e *DimensionError) Error() string {
	msg := "dimensions of " + e.Path + " unavailable"
	if e.Output != "" {
		msg += fmt.Sprintf(" (info output %q)", strings.TrimSpace(e.Output))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DimensionError) Unwrap() error { return e.Err }

// HeadroomMissingError reports an absent or non-numeric HDR headroom.
type HeadroomMissingError struct {
	Path  string
	Value string
	Err   error
}

func (e *HeadroomMissingError) Error() string {
	msg := "hdr headroom of " + e.Path
	if e.Value != "" {
		msg += fmt.Sprintf(" invalid (%q)", e.Value)
	} else {
		msg += " missing"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *HeadroomMissingError) Unwrap() error { return e.Err }

// ExternalToolError reports an external command that failed or produced an
// unexpected result. ExitCode is -1 when the process did not exit normally.
type ExternalToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	var b strings.Builder
	b.WriteString(e.Tool)
	if len(e.Args) > 0 {
		b.WriteString(" " + strings.Join(e.Args, " "))
	}
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, ": exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	if e.Stderr != "" {
		b.WriteString(": " + e.Stderr)
	}
	return b.String()
}

func (e *ExternalToolError) Unwrap() error { return e.Err }
