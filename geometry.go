package transcode

import (
	"fmt"
	"math"
)

// Size is a pixel size.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Area returns the pixel count.
func (s Size) Area() int {
	return s.Width * s.Height
}

// AspectRatio returns width/height.
func (s Size) AspectRatio() float64 {
	return float64(s.Width) / float64(s.Height)
}

// ResolveSize fits the source's natural size into the target bounding box,
// preserving the source aspect ratio. Neither resolved dimension exceeds
// the corresponding target dimension; dimensions are rounded to whole
// pixels. An original selector passes the natural size through untouched.
//
// A zero-area natural size indicates a degenerate or corrupt video track
// and fails fast instead of dividing by zero.
func ResolveSize(natural Size, target Resolution) (Size, error) {
	if natural.Width <= 0 || natural.Height <= 0 {
		return Size{}, fmt.Errorf("video track has degenerate size %s", natural)
	}
	if target.IsOriginal() {
		return natural, nil
	}

	boxW, boxH := target.Bounds()
	if boxW <= 0 || boxH <= 0 {
		return Size{}, fmt.Errorf("target bounding box has degenerate size %dx%d", boxW, boxH)
	}

	srcAspect := natural.AspectRatio()
	boxAspect := float64(boxW) / float64(boxH)

	if srcAspect > boxAspect {
		// Source is wider: pin width, derive height.
		return Size{
			Width:  boxW,
			Height: int(math.Round(float64(boxW) / srcAspect)),
		}, nil
	}
	// Source is taller or equal: pin height, derive width.
	return Size{
		Width:  int(math.Round(float64(boxH) * srcAspect)),
		Height: boxH,
	}, nil
}
