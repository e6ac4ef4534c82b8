// Core sample types shared by the demux and mux sides of the pipeline.
package transcode

import "time"

// PixelFormat represents decoded video pixel formats.
type PixelFormat int

const (
	PixelFormatI420 PixelFormat = iota // YUV 4:2:0 planar, video range (Y + U + V)
	PixelFormatNV12                    // YUV 4:2:0 semi-planar (Y + interleaved UV)
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatNV12:
		return "NV12"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420:
		return 3 // Y, U, V
	case PixelFormatNV12:
		return 2 // Y, UV
	default:
		return 0
	}
}

// Sample is one decoded unit of media data with a presentation timestamp.
// Video samples carry planar pixel data; audio samples carry interleaved
// signed 16-bit PCM in Data.
type Sample struct {
	Kind MediaKind

	// Video fields
	Planes [][]byte    // Plane data (per PixelFormat.PlaneCount)
	Stride []int       // Stride for each plane in bytes
	Width  int         // Frame width in pixels
	Height int         // Frame height in pixels
	Format PixelFormat // Pixel format

	// Audio fields
	Data        []byte // Interleaved S16 PCM
	SampleRate  int    // Samples per second per channel
	Channels    int    // 1 = mono, 2 = stereo
	SampleCount int    // Samples per channel in Data

	PTS      time.Duration // Presentation timestamp on the track timeline
	Duration time.Duration // Sample duration (optional)
}

// Clone creates a deep copy of the sample.
// Use this when sample data must outlive the cursor that produced it.
func (s *Sample) Clone() *Sample {
	clone := *s
	clone.Planes = make([][]byte, len(s.Planes))
	clone.Stride = make([]int, len(s.Stride))
	copy(clone.Stride, s.Stride)
	for i, plane := range s.Planes {
		if plane != nil {
			clone.Planes[i] = make([]byte, len(plane))
			copy(clone.Planes[i], plane)
		}
	}
	if s.Data != nil {
		clone.Data = make([]byte, len(s.Data))
		copy(clone.Data, s.Data)
	}
	return &clone
}

// I420Size returns the total buffer size needed for an I420 frame.
func I420Size(width, height int) int {
	ySize := width * height
	uvSize := (width / 2) * (height / 2)
	return ySize + uvSize*2
}
