package transcode

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrNotSupported is returned when an optional operation is not supported.
var ErrNotSupported = errors.New("operation not supported")

// TrackInfo describes one track of an opened source container.
type TrackInfo struct {
	Kind MediaKind

	// Video fields
	Width     int
	Height    int
	FrameRate float64 // nominal frames per second

	// Audio fields
	SampleRate int
	Channels   int

	Codec string // source codec name, informational
}

// Backend provides the demux/decode and encode/mux capability the pipeline
// is built on. Implementations wrap a media framework (native backend) or
// synthesize media in memory (MemoryBackend).
type Backend interface {
	// OpenRead opens the container at path for demuxing and decoding.
	OpenRead(path string) (ContainerReader, error)

	// OpenWrite creates the container at path for the given kind. The file
	// must not already exist; implementations never overwrite.
	OpenWrite(path string, container Container) (ContainerWriter, error)
}

// ContainerReader is a read-only handle over an input container. Opened
// once per transcode and never reused.
type ContainerReader interface {
	io.Closer

	// Duration returns the container's reported duration.
	Duration() time.Duration

	// Tracks lists the container's tracks.
	Tracks() []TrackInfo

	// AttachOutput requests decoded samples for the track at index in the
	// given pixel format (audio tracks decode to S16 PCM and ignore the
	// format). Must be called before Start.
	AttachOutput(index int, format PixelFormat) (SampleCursor, error)

	// Start begins reading. Attached cursors yield samples afterwards.
	Start() error
}

// SampleCursor is a stateful pull cursor over one track's decoded samples.
type SampleCursor interface {
	// Next returns the next complete decoded sample, or io.EOF once the
	// track is exhausted. Partial samples are never returned.
	Next() (*Sample, error)

	// Cancel aborts further reads on this track.
	Cancel()
}

// ContainerWriter is a write-only handle over an output container. Tracks
// are added while Unopened/Configured; writing starts after Start; Finalize
// is valid only once every input has been marked finished.
type ContainerWriter interface {
	// AddVideoInput registers the video track with its encoder settings.
	AddVideoInput(settings VideoSettings) (TrackInput, error)

	// AddAudioInput registers the audio track with its encoder settings.
	AddAudioInput(settings AudioSettings) (TrackInput, error)

	// Start begins writing, opening a session at the zero timestamp of the
	// output timeline.
	Start() error

	// Finalize flushes every track and closes the container, blocking
	// until the backend reports a terminal status. A non-nil error means
	// the output is not usable.
	Finalize() error

	// Cancel aborts the writer, discarding any partial output where the
	// backend allows it.
	Cancel() error
}

// TrackInput accepts one track's samples under producer-side backpressure.
type TrackInput interface {
	// ReadyForMore reports whether the input can accept a sample now.
	ReadyForMore() bool

	// Ready returns a channel signaled when the input may accept more
	// data. Signals may be spurious; callers must recheck ReadyForMore.
	// Implementations must also signal on failure so a parked producer
	// wakes, attempts an append, and observes the failure.
	Ready() <-chan struct{}

	// Append submits one sample. A false return means the write failed;
	// the caller must stop the track, not retry the same sample.
	Append(sample *Sample) bool

	// MarkFinished signals that no more samples will be appended.
	MarkFinished()
}

// BackendFactory creates a backend instance.
type BackendFactory func() (Backend, error)

// backendRegistry holds registered backend factories.
type backendRegistry struct {
	factories map[string]BackendFactory
	mu        sync.RWMutex
}

var globalBackendRegistry = &backendRegistry{
	factories: make(map[string]BackendFactory),
}

// RegisterBackend registers a backend factory under a name.
func RegisterBackend(name string, factory BackendFactory) {
	globalBackendRegistry.mu.Lock()
	defer globalBackendRegistry.mu.Unlock()
	globalBackendRegistry.factories[name] = factory
}

// NewBackend creates a backend by registered name.
func NewBackend(name string) (Backend, error) {
	globalBackendRegistry.mu.RLock()
	factory, ok := globalBackendRegistry.factories[name]
	globalBackendRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("backend not available: %s", name)
	}
	return factory()
}

// Backends returns the registered backend names.
func Backends() []string {
	globalBackendRegistry.mu.RLock()
	defer globalBackendRegistry.mu.RUnlock()
	names := make([]string, 0, len(globalBackendRegistry.factories))
	for name := range globalBackendRegistry.factories {
		names = append(names, name)
	}
	return names
}

// DefaultBackend returns the production backend: the native backend when
// its library is loadable.
func DefaultBackend() (Backend, error) {
	if IsNativeBackendAvailable() {
		return NewNativeBackend()
	}
	return nil, errors.New("no backend available: native library not loadable")
}
