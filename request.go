package transcode

import (
	"errors"
	"fmt"
)

// resolutionKind tags the Resolution variant.
type resolutionKind int

const (
	resolutionOriginal resolutionKind = iota
	resolutionPreset
	resolutionCustom
)

// Resolution selects the target resolution: the source's natural size, a
// named preset, or explicit custom dimensions. The zero value keeps the
// original size.
type Resolution struct {
	kind   resolutionKind
	name   string
	width  int
	height int
}

// Named presets. Presets are bounding boxes: the resolved size preserves
// the source aspect ratio and never exceeds either preset dimension.
var (
	ResolutionOriginal = Resolution{}
	Resolution2160p    = Resolution{resolutionPreset, "2160p", 3840, 2160}
	Resolution1440p    = Resolution{resolutionPreset, "1440p", 2560, 1440}
	Resolution1080p    = Resolution{resolutionPreset, "1080p", 1920, 1080}
	Resolution720p     = Resolution{resolutionPreset, "720p", 1280, 720}
	Resolution480p     = Resolution{resolutionPreset, "480p", 854, 480}
)

// CustomResolution selects an explicit bounding box.
func CustomResolution(width, height int) Resolution {
	return Resolution{kind: resolutionCustom, width: width, height: height}
}

// IsOriginal reports whether the selector keeps the source size.
func (r Resolution) IsOriginal() bool {
	return r.kind == resolutionOriginal
}

// Bounds returns the target bounding box. Only meaningful for non-original
// selectors.
func (r Resolution) Bounds() (width, height int) {
	return r.width, r.height
}

func (r Resolution) String() string {
	switch r.kind {
	case resolutionOriginal:
		return "original"
	case resolutionPreset:
		return r.name
	default:
		return fmt.Sprintf("%dx%d", r.width, r.height)
	}
}

// FrameRate selects the target frame rate: the source's nominal rate or an
// explicit value. The zero value keeps the original rate.
type FrameRate struct {
	fps float64
}

// FrameRateOriginal keeps the source's nominal frame rate.
var FrameRateOriginal = FrameRate{}

// FrameRateOf selects an explicit frame rate.
func FrameRateOf(fps float64) FrameRate {
	return FrameRate{fps: fps}
}

// IsOriginal reports whether the selector keeps the source rate.
func (f FrameRate) IsOriginal() bool {
	return f.fps == 0
}

// Value returns the explicit frame rate, or 0 for the original selector.
func (f FrameRate) Value() float64 {
	return f.fps
}

func (f FrameRate) String() string {
	if f.IsOriginal() {
		return "original"
	}
	return fmt.Sprintf("%g fps", f.fps)
}

// Request describes one transcode. It is consumed once; a Request is never
// mutated by the pipeline.
//
// The caller is responsible for path-level validation: the input path must
// exist and be readable, the output path's parent must be writable, and
// the output path must not already exist. The pipeline never overwrites an
// existing output file.
type Request struct {
	InputPath  string
	OutputPath string

	Container Container  // Output container kind
	Codec     VideoCodec // Output video codec

	// HardwareAccel is a preference, not a guarantee: it takes effect only
	// for codecs with hardware encoder support.
	HardwareAccel bool

	// Quality in (0, 1]. Scales the target bitrate linearly.
	Quality float64

	Resolution Resolution
	FrameRate  FrameRate
}

// Validate checks the request's field-level invariants. Path-level checks
// stay with the caller.
func (r Request) Validate() error {
	if r.InputPath == "" {
		return errors.New("input path is empty")
	}
	if r.OutputPath == "" {
		return errors.New("output path is empty")
	}
	if !r.Codec.Valid() {
		return fmt.Errorf("unsupported video codec %d", int(r.Codec))
	}
	if !r.Container.Writable() {
		return fmt.Errorf("container %s is not a supported output kind", r.Container)
	}
	if r.Quality <= 0 || r.Quality > 1 {
		return fmt.Errorf("quality %g outside (0, 1]", r.Quality)
	}
	if r.Resolution.kind == resolutionCustom && (r.Resolution.width <= 0 || r.Resolution.height <= 0) {
		return fmt.Errorf("custom resolution %s has non-positive dimensions", r.Resolution)
	}
	if !r.FrameRate.IsOriginal() && r.FrameRate.Value() <= 0 {
		return fmt.Errorf("frame rate %g is not positive", r.FrameRate.Value())
	}
	return nil
}
