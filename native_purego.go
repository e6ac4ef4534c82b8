//go:build (darwin || linux) && !nonative

// Native backend binding libtranscode_av via purego.

package transcode

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	nativeOnce    sync.Once
	nativeHandle  uintptr
	nativeInitErr error
	nativeLoaded  bool
)

// libtranscode_av function pointers
var (
	taVersion   func() int32
	taLastError func(buf uintptr, capacity int32) int32

	taOpenInput       func(path string) uint64
	taCloseInput      func(handle uint64)
	taInputDurationNs func(handle uint64) int64
	taInputTrackCount func(handle uint64) int32
	taTrackKind       func(handle uint64, track int32) int32
	taTrackWidth      func(handle uint64, track int32) int32
	taTrackHeight     func(handle uint64, track int32) int32
	taTrackFPSx1000   func(handle uint64, track int32) int32
	taTrackSampleRate func(handle uint64, track int32) int32
	taTrackChannels   func(handle uint64, track int32) int32
	taTrackCodecName  func(handle uint64, track int32, buf uintptr, capacity int32) int32
	taAttachOutput    func(handle uint64, track, pixelFormat int32) int32
	taStartReading    func(handle uint64) int32
	taCopyNextSample  func(handle uint64, track int32, buf uintptr, capacity int32, outPtsNs uintptr) int32
	taCancelReading   func(handle uint64, track int32)

	taOpenOutput        func(path string, container int32) uint64
	taCloseOutput       func(handle uint64)
	taAddVideoStream    func(handle uint64, fourcc string, width, height, fpsX1000, bitrate, qualityX1000, hardware int32) int32
	taAddAudioStream    func(handle uint64, channels, sampleRate, bitrate int32) int32
	taStartWriting      func(handle uint64) int32
	taReadyForMore      func(handle uint64, stream int32) int32
	taAppendVideoSample func(handle uint64, stream int32, y, u, v uintptr, yStride, uvStride int32, ptsNs int64) int32
	taAppendAudioSample func(handle uint64, stream int32, data uintptr, length int32, ptsNs int64) int32
	taMarkFinished      func(handle uint64, stream int32)
	taFinalize          func(handle uint64) int32
	taCancelOutput      func(handle uint64)
)

func nativeLibName() string {
	if runtime.GOOS == "darwin" {
		return "libtranscode_av.dylib"
	}
	return "libtranscode_av.so"
}

// nativeLibCandidates returns search paths for the native library:
// TRANSCODE_LIB_PATH, the module's build/ directory, then the system
// loader path.
func nativeLibCandidates() []string {
	name := nativeLibName()
	var candidates []string
	if dir := os.Getenv("TRANSCODE_LIB_PATH"); dir != "" {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	if root := findModuleRoot(); root != "" {
		candidates = append(candidates, filepath.Join(root, "build", name))
	}
	return append(candidates, name)
}

// findModuleRoot walks up from the working directory to the directory
// containing go.mod.
func findModuleRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func loadNativeLib() {
	var lastErr error
	for _, candidate := range nativeLibCandidates() {
		handle, err := purego.Dlopen(candidate, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		nativeHandle = handle
		registerNativeFuncs(handle)
		nativeLoaded = true
		return
	}
	nativeInitErr = fmt.Errorf("load %s: %w", nativeLibName(), lastErr)
}

func registerNativeFuncs(handle uintptr) {
	purego.RegisterLibFunc(&taVersion, handle, "ta_version")
	purego.RegisterLibFunc(&taLastError, handle, "ta_last_error")

	purego.RegisterLibFunc(&taOpenInput, handle, "ta_open_input")
	purego.RegisterLibFunc(&taCloseInput, handle, "ta_close_input")
	purego.RegisterLibFunc(&taInputDurationNs, handle, "ta_input_duration_ns")
	purego.RegisterLibFunc(&taInputTrackCount, handle, "ta_input_track_count")
	purego.RegisterLibFunc(&taTrackKind, handle, "ta_track_kind")
	purego.RegisterLibFunc(&taTrackWidth, handle, "ta_track_width")
	purego.RegisterLibFunc(&taTrackHeight, handle, "ta_track_height")
	purego.RegisterLibFunc(&taTrackFPSx1000, handle, "ta_track_fps_x1000")
	purego.RegisterLibFunc(&taTrackSampleRate, handle, "ta_track_sample_rate")
	purego.RegisterLibFunc(&taTrackChannels, handle, "ta_track_channels")
	purego.RegisterLibFunc(&taTrackCodecName, handle, "ta_track_codec_name")
	purego.RegisterLibFunc(&taAttachOutput, handle, "ta_attach_output")
	purego.RegisterLibFunc(&taStartReading, handle, "ta_start_reading")
	purego.RegisterLibFunc(&taCopyNextSample, handle, "ta_copy_next_sample")
	purego.RegisterLibFunc(&taCancelReading, handle, "ta_cancel_reading")

	purego.RegisterLibFunc(&taOpenOutput, handle, "ta_open_output")
	purego.RegisterLibFunc(&taCloseOutput, handle, "ta_close_output")
	purego.RegisterLibFunc(&taAddVideoStream, handle, "ta_add_video_stream")
	purego.RegisterLibFunc(&taAddAudioStream, handle, "ta_add_audio_stream")
	purego.RegisterLibFunc(&taStartWriting, handle, "ta_start_writing")
	purego.RegisterLibFunc(&taReadyForMore, handle, "ta_ready_for_more")
	purego.RegisterLibFunc(&taAppendVideoSample, handle, "ta_append_video_sample")
	purego.RegisterLibFunc(&taAppendAudioSample, handle, "ta_append_audio_sample")
	purego.RegisterLibFunc(&taMarkFinished, handle, "ta_mark_finished")
	purego.RegisterLibFunc(&taFinalize, handle, "ta_finalize")
	purego.RegisterLibFunc(&taCancelOutput, handle, "ta_cancel_output")
}

// IsNativeBackendAvailable reports whether libtranscode_av is loadable.
func IsNativeBackendAvailable() bool {
	nativeOnce.Do(loadNativeLib)
	return nativeLoaded
}

// NewNativeBackend creates the production backend backed by the native
// media framework.
func NewNativeBackend() (Backend, error) {
	nativeOnce.Do(loadNativeLib)
	if !nativeLoaded {
		return nil, nativeInitErr
	}
	return &nativeBackend{}, nil
}

func init() {
	RegisterBackend("native", NewNativeBackend)
}

// nativeLastError fetches the thread-local diagnostic message from the
// native layer.
func nativeLastError() string {
	buf := make([]byte, 512)
	n := taLastError(uintptr(unsafe.Pointer(&buf[0])), int32(len(buf)))
	runtime.KeepAlive(buf)
	if n <= 0 {
		return "unknown native error"
	}
	if int(n) > len(buf) {
		n = int32(len(buf))
	}
	return string(buf[:n])
}

type nativeBackend struct{}

func (b *nativeBackend) OpenRead(path string) (ContainerReader, error) {
	// Fail fast on files that are visibly not a supported container
	// rather than handing garbage to the native demuxer.
	container, err := DetectContainerFile(path)
	if err != nil {
		return nil, err
	}
	if container == ContainerUnknown {
		return nil, fmt.Errorf("cannot parse container %q: unrecognized format", path)
	}

	handle := taOpenInput(path)
	if handle == 0 {
		return nil, fmt.Errorf("open input %q: %s", path, nativeLastError())
	}

	reader := &nativeReader{handle: handle}
	count := int(taInputTrackCount(handle))
	for i := 0; i < count; i++ {
		reader.tracks = append(reader.tracks, nativeTrackInfo(handle, int32(i)))
	}
	return reader, nil
}

func (b *nativeBackend) OpenWrite(path string, container Container) (ContainerWriter, error) {
	if !container.Writable() {
		return nil, fmt.Errorf("container %s is not writable", container)
	}
	// The output path must not already exist; never overwrite.
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("output %q already exists", path)
	}
	handle := taOpenOutput(path, int32(container))
	if handle == 0 {
		return nil, fmt.Errorf("open output %q: %s", path, nativeLastError())
	}
	return &nativeWriter{handle: handle, path: path}, nil
}

func nativeTrackInfo(handle uint64, track int32) TrackInfo {
	info := TrackInfo{}
	switch taTrackKind(handle, track) {
	case 1:
		info.Kind = MediaKindVideo
		info.Width = int(taTrackWidth(handle, track))
		info.Height = int(taTrackHeight(handle, track))
		info.FrameRate = float64(taTrackFPSx1000(handle, track)) / 1000
	case 2:
		info.Kind = MediaKindAudio
		info.SampleRate = int(taTrackSampleRate(handle, track))
		info.Channels = int(taTrackChannels(handle, track))
	}
	buf := make([]byte, 64)
	if n := taTrackCodecName(handle, track, uintptr(unsafe.Pointer(&buf[0])), int32(len(buf))); n > 0 && int(n) <= len(buf) {
		info.Codec = string(buf[:n])
	}
	runtime.KeepAlive(buf)
	return info
}

// =============================================================================
// Reader Side
// =============================================================================

type nativeReader struct {
	handle uint64
	tracks []TrackInfo

	mu     sync.Mutex
	closed bool
}

func (r *nativeReader) Duration() time.Duration {
	return time.Duration(taInputDurationNs(r.handle))
}

func (r *nativeReader) Tracks() []TrackInfo {
	tracks := make([]TrackInfo, len(r.tracks))
	copy(tracks, r.tracks)
	return tracks
}

func (r *nativeReader) AttachOutput(index int, format PixelFormat) (SampleCursor, error) {
	if index < 0 || index >= len(r.tracks) {
		return nil, fmt.Errorf("track index %d out of range", index)
	}
	if taAttachOutput(r.handle, int32(index), int32(format)) != 0 {
		return nil, fmt.Errorf("attach output for track %d: %s", index, nativeLastError())
	}

	track := r.tracks[index]
	capacity := 256 * 1024 // audio PCM chunk headroom
	if track.Kind == MediaKindVideo {
		capacity = I420Size(track.Width, track.Height)
	}
	return &nativeCursor{
		reader: r,
		track:  int32(index),
		info:   track,
		buf:    make([]byte, capacity),
	}, nil
}

func (r *nativeReader) Start() error {
	if taStartReading(r.handle) != 0 {
		return fmt.Errorf("start reading: %s", nativeLastError())
	}
	return nil
}

func (r *nativeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	taCloseInput(r.handle)
	return nil
}

// nativeCursor pulls decoded samples for one track. The returned sample's
// data aliases the cursor's buffer and is valid until the next call.
type nativeCursor struct {
	reader *nativeReader
	track  int32
	info   TrackInfo
	buf    []byte
}

func (c *nativeCursor) Next() (*Sample, error) {
	var ptsNs int64
	n := taCopyNextSample(c.reader.handle, c.track,
		uintptr(unsafe.Pointer(&c.buf[0])), int32(len(c.buf)),
		uintptr(unsafe.Pointer(&ptsNs)))
	runtime.KeepAlive(c.buf)

	switch {
	case n == -1:
		return nil, io.EOF
	case n < 0:
		return nil, fmt.Errorf("read %s sample: %s", c.info.Kind, nativeLastError())
	}

	pts := time.Duration(ptsNs)
	if c.info.Kind == MediaKindVideo {
		w, h := c.info.Width, c.info.Height
		ySize := w * h
		uvSize := (w / 2) * (h / 2)
		return &Sample{
			Kind:   MediaKindVideo,
			Planes: [][]byte{c.buf[:ySize], c.buf[ySize : ySize+uvSize], c.buf[ySize+uvSize : ySize+2*uvSize]},
			Stride: []int{w, w / 2, w / 2},
			Width:  w,
			Height: h,
			Format: PixelFormatI420,
			PTS:    pts,
		}, nil
	}
	return &Sample{
		Kind:        MediaKindAudio,
		Data:        c.buf[:n],
		SampleRate:  c.info.SampleRate,
		Channels:    c.info.Channels,
		SampleCount: int(n) / (2 * c.info.Channels),
		PTS:         pts,
	}, nil
}

func (c *nativeCursor) Cancel() {
	taCancelReading(c.reader.handle, c.track)
}

// =============================================================================
// Writer Side
// =============================================================================

type nativeWriter struct {
	handle uint64
	path   string

	mu     sync.Mutex
	closed bool
}

func (w *nativeWriter) AddVideoInput(settings VideoSettings) (TrackInput, error) {
	hardware := int32(0)
	if settings.Hardware {
		hardware = 1
	}
	stream := taAddVideoStream(w.handle, settings.Codec.FourCC(),
		int32(settings.Width), int32(settings.Height),
		int32(settings.FrameRate*1000), int32(settings.AverageBitrate),
		int32(settings.Quality*1000), hardware)
	if stream < 0 {
		return nil, fmt.Errorf("add video stream: %s", nativeLastError())
	}
	return &nativeInput{writer: w, stream: stream, kind: MediaKindVideo}, nil
}

func (w *nativeWriter) AddAudioInput(settings AudioSettings) (TrackInput, error) {
	stream := taAddAudioStream(w.handle, int32(settings.Channels),
		int32(settings.SampleRate), int32(settings.Bitrate))
	if stream < 0 {
		return nil, fmt.Errorf("add audio stream: %s", nativeLastError())
	}
	return &nativeInput{writer: w, stream: stream, kind: MediaKindAudio}, nil
}

func (w *nativeWriter) Start() error {
	if taStartWriting(w.handle) != 0 {
		return fmt.Errorf("start writing: %s", nativeLastError())
	}
	return nil
}

func (w *nativeWriter) Finalize() error {
	defer w.close()
	if taFinalize(w.handle) != 0 {
		return fmt.Errorf("finalize %q: %s", w.path, nativeLastError())
	}
	return nil
}

func (w *nativeWriter) Cancel() error {
	taCancelOutput(w.handle)
	w.close()
	return nil
}

func (w *nativeWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	taCloseOutput(w.handle)
}

// nativeInput feeds one output stream. The native layer keeps a stream
// "ready" once it has failed so a producer observes the failure on the
// next append.
type nativeInput struct {
	writer *nativeWriter
	stream int32
	kind   MediaKind
}

// nativeReadyPollInterval bounds how often a parked producer re-checks
// the native readiness flag.
const nativeReadyPollInterval = 2 * time.Millisecond

func (in *nativeInput) ReadyForMore() bool {
	return taReadyForMore(in.writer.handle, in.stream) != 0
}

func (in *nativeInput) Ready() <-chan struct{} {
	ch := make(chan struct{}, 1)
	go func() {
		for !in.ReadyForMore() {
			time.Sleep(nativeReadyPollInterval)
		}
		ch <- struct{}{}
	}()
	return ch
}

func (in *nativeInput) Append(sample *Sample) bool {
	var ret int32
	if in.kind == MediaKindVideo {
		if len(sample.Planes) < 3 {
			return false
		}
		ret = taAppendVideoSample(in.writer.handle, in.stream,
			uintptr(unsafe.Pointer(&sample.Planes[0][0])),
			uintptr(unsafe.Pointer(&sample.Planes[1][0])),
			uintptr(unsafe.Pointer(&sample.Planes[2][0])),
			int32(sample.Stride[0]), int32(sample.Stride[1]),
			int64(sample.PTS))
	} else {
		if len(sample.Data) == 0 {
			return false
		}
		ret = taAppendAudioSample(in.writer.handle, in.stream,
			uintptr(unsafe.Pointer(&sample.Data[0])),
			int32(len(sample.Data)), int64(sample.PTS))
	}
	runtime.KeepAlive(sample)
	return ret == 1
}

func (in *nativeInput) MarkFinished() {
	taMarkFinished(in.writer.handle, in.stream)
}
