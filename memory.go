package transcode

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// MemorySourceConfig describes a synthetic source registered with a
// MemoryBackend: a video track with evenly spaced frames over a known
// duration, plus an optional S16 PCM audio track.
type MemorySourceConfig struct {
	Width      int           // Frame width (default: 1280)
	Height     int           // Frame height (default: 720)
	FrameRate  float64       // Frames per second (default: 30)
	Duration   time.Duration // Track duration (default: 2s)
	FrameCount int           // Video frames (default: Duration * FrameRate)

	HasAudio   bool
	SampleRate int // Audio sample rate (default: 48000)
	Channels   int // Audio channels (default: 2)
}

func (c MemorySourceConfig) withDefaults() MemorySourceConfig {
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 720
	}
	if c.FrameRate <= 0 {
		c.FrameRate = 30
	}
	if c.Duration <= 0 {
		c.Duration = 2 * time.Second
	}
	if c.FrameCount <= 0 {
		c.FrameCount = int(c.Duration.Seconds() * c.FrameRate)
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.Channels <= 0 {
		c.Channels = 2
	}
	return c
}

// SampleRecord summarizes one sample accepted by a memory sink input.
type SampleRecord struct {
	Kind  MediaKind
	PTS   time.Duration
	Bytes int
}

// MemoryOutput is the finalized result of one memory-backend transcode.
type MemoryOutput struct {
	Path      string
	Container Container
	Video     VideoSettings
	Audio     *AudioSettings

	VideoSamples []SampleRecord
	AudioSamples []SampleRecord
	Finalized    bool
}

// MemoryBackend synthesizes sources and collects sink output in memory.
// It still creates a real file at the output path (exclusively, never
// overwriting) so artifact-level behavior matches the production backend.
type MemoryBackend struct {
	mu      sync.Mutex
	sources map[string]MemorySourceConfig
	outputs map[string]*MemoryOutput
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		sources: make(map[string]MemorySourceConfig),
		outputs: make(map[string]*MemoryOutput),
	}
}

// AddSource registers a synthetic source under a path.
func (b *MemoryBackend) AddSource(path string, config MemorySourceConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources[path] = config.withDefaults()
}

// Output returns the finalized output written to path, if any.
func (b *MemoryBackend) Output(path string) (*MemoryOutput, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out, ok := b.outputs[path]
	return out, ok
}

// OpenRead implements Backend.
func (b *MemoryBackend) OpenRead(path string) (ContainerReader, error) {
	b.mu.Lock()
	config, ok := b.sources[path]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("cannot parse container %q: no such media", path)
	}
	return &memoryReader{config: config}, nil
}

// OpenWrite implements Backend.
func (b *MemoryBackend) OpenWrite(path string, container Container) (ContainerWriter, error) {
	if !container.Writable() {
		return nil, fmt.Errorf("container %s is not writable", container)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return &memoryWriter{
		backend:   b,
		path:      path,
		container: container,
		file:      file,
	}, nil
}

// =============================================================================
// Reader Side
// =============================================================================

type memoryReader struct {
	config  MemorySourceConfig
	started bool
	cursors []*memoryCursor
	mu      sync.Mutex
}

func (r *memoryReader) Duration() time.Duration {
	return r.config.Duration
}

func (r *memoryReader) Tracks() []TrackInfo {
	tracks := []TrackInfo{{
		Kind:      MediaKindVideo,
		Width:     r.config.Width,
		Height:    r.config.Height,
		FrameRate: r.config.FrameRate,
		Codec:     "raw",
	}}
	if r.config.HasAudio {
		tracks = append(tracks, TrackInfo{
			Kind:       MediaKindAudio,
			SampleRate: r.config.SampleRate,
			Channels:   r.config.Channels,
			Codec:      "pcm_s16le",
		})
	}
	return tracks
}

func (r *memoryReader) AttachOutput(index int, format PixelFormat) (SampleCursor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil, fmt.Errorf("reader already started")
	}
	tracks := r.Tracks()
	if index < 0 || index >= len(tracks) {
		return nil, fmt.Errorf("track index %d out of range", index)
	}
	if tracks[index].Kind == MediaKindVideo && format != PixelFormatI420 {
		return nil, fmt.Errorf("unsupported output format %s for video track", format)
	}
	cursor := &memoryCursor{reader: r, kind: tracks[index].Kind}
	r.cursors = append(r.cursors, cursor)
	return cursor, nil
}

func (r *memoryReader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cursors) == 0 {
		return fmt.Errorf("no outputs attached")
	}
	r.started = true
	return nil
}

func (r *memoryReader) Close() error {
	return nil
}

// memoryCursor generates the synthetic samples for one track.
type memoryCursor struct {
	reader *memoryReader
	kind   MediaKind

	next     int
	canceled bool
	mu       sync.Mutex
}

// audioChunkSamples is the number of PCM samples per generated audio
// sample buffer.
const audioChunkSamples = 1024

func (c *memoryCursor) Next() (*Sample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reader.mu.Lock()
	started := c.reader.started
	c.reader.mu.Unlock()
	if !started {
		return nil, fmt.Errorf("reader not started")
	}
	if c.canceled {
		return nil, io.EOF
	}

	config := c.reader.config
	if c.kind == MediaKindVideo {
		if c.next >= config.FrameCount {
			return nil, io.EOF
		}
		index := c.next
		c.next++
		return syntheticVideoSample(config, index), nil
	}

	totalSamples := int(config.Duration.Seconds() * float64(config.SampleRate))
	offset := c.next * audioChunkSamples
	if offset >= totalSamples {
		return nil, io.EOF
	}
	count := audioChunkSamples
	if offset+count > totalSamples {
		count = totalSamples - offset
	}
	c.next++
	return syntheticAudioSample(config, offset, count), nil
}

func (c *memoryCursor) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canceled = true
}

// syntheticVideoSample builds an I420 frame whose luma varies with the
// frame index, so consecutive frames are distinguishable.
func syntheticVideoSample(config MemorySourceConfig, index int) *Sample {
	ySize := config.Width * config.Height
	uvW := config.Width / 2
	uvH := config.Height / 2
	uvSize := uvW * uvH

	y := make([]byte, ySize)
	u := make([]byte, uvSize)
	v := make([]byte, uvSize)
	luma := byte(16 + (index*8)%220)
	for i := range y {
		y[i] = luma
	}
	for i := range u {
		u[i] = 128
		v[i] = 128
	}

	frameDuration := config.Duration / time.Duration(config.FrameCount)
	return &Sample{
		Kind:     MediaKindVideo,
		Planes:   [][]byte{y, u, v},
		Stride:   []int{config.Width, uvW, uvW},
		Width:    config.Width,
		Height:   config.Height,
		Format:   PixelFormatI420,
		PTS:      time.Duration(index) * frameDuration,
		Duration: frameDuration,
	}
}

// syntheticAudioSample builds a silent S16 PCM chunk.
func syntheticAudioSample(config MemorySourceConfig, offset, count int) *Sample {
	duration := time.Duration(float64(count) / float64(config.SampleRate) * float64(time.Second))
	return &Sample{
		Kind:        MediaKindAudio,
		Data:        make([]byte, count*config.Channels*2),
		SampleRate:  config.SampleRate,
		Channels:    config.Channels,
		SampleCount: count,
		PTS:         time.Duration(float64(offset) / float64(config.SampleRate) * float64(time.Second)),
		Duration:    duration,
	}
}

// =============================================================================
// Writer Side
// =============================================================================

type memoryWriter struct {
	backend   *MemoryBackend
	path      string
	container Container
	file      *os.File

	video *memoryInput
	audio *memoryInput

	videoSettings VideoSettings
	audioSettings *AudioSettings

	started   bool
	finalized bool
	canceled  bool
	mu        sync.Mutex
}

func (w *memoryWriter) AddVideoInput(settings VideoSettings) (TrackInput, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil, fmt.Errorf("writing already started")
	}
	if w.video != nil {
		return nil, fmt.Errorf("video input already added")
	}
	if !settings.Codec.Valid() {
		return nil, fmt.Errorf("unsupported codec %s", settings.Codec)
	}
	if settings.Width <= 0 || settings.Height <= 0 {
		return nil, fmt.Errorf("degenerate frame size %dx%d", settings.Width, settings.Height)
	}
	if settings.AverageBitrate <= 0 {
		return nil, fmt.Errorf("target bitrate %d is not positive", settings.AverageBitrate)
	}
	w.videoSettings = settings
	w.video = newMemoryInput(MediaKindVideo)
	return w.video, nil
}

func (w *memoryWriter) AddAudioInput(settings AudioSettings) (TrackInput, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil, fmt.Errorf("writing already started")
	}
	if w.audio != nil {
		return nil, fmt.Errorf("audio input already added")
	}
	if settings.Codec != AudioCodecAAC {
		return nil, fmt.Errorf("unsupported audio codec %s", settings.Codec)
	}
	if settings.Channels <= 0 || settings.SampleRate <= 0 || settings.Bitrate <= 0 {
		return nil, fmt.Errorf("degenerate audio settings %+v", settings)
	}
	audio := settings
	w.audioSettings = &audio
	w.audio = newMemoryInput(MediaKindAudio)
	return w.audio, nil
}

func (w *memoryWriter) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.video == nil {
		return fmt.Errorf("no video input added")
	}
	w.started = true
	w.video.startDraining()
	if w.audio != nil {
		w.audio.startDraining()
	}
	return nil
}

func (w *memoryWriter) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.canceled {
		return fmt.Errorf("writer canceled")
	}
	if !w.started {
		return fmt.Errorf("writing never started")
	}
	inputs := []*memoryInput{w.video}
	if w.audio != nil {
		inputs = append(inputs, w.audio)
	}
	for _, in := range inputs {
		if !in.isFinished() {
			return fmt.Errorf("%s input not marked finished", in.kind)
		}
		in.waitDrained()
	}

	output := &MemoryOutput{
		Path:         w.path,
		Container:    w.container,
		Video:        w.videoSettings,
		Audio:        w.audioSettings,
		VideoSamples: w.video.drained(),
		Finalized:    true,
	}
	if w.audio != nil {
		output.AudioSamples = w.audio.drained()
	}

	fmt.Fprintf(w.file, "%s %s %dx%d video=%d audio=%d\n",
		w.container, w.videoSettings.Codec, w.videoSettings.Width,
		w.videoSettings.Height, len(output.VideoSamples), len(output.AudioSamples))
	if err := w.file.Close(); err != nil {
		return err
	}

	w.backend.mu.Lock()
	w.backend.outputs[w.path] = output
	w.backend.mu.Unlock()
	w.finalized = true
	return nil
}

func (w *memoryWriter) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.canceled || w.finalized {
		return nil
	}
	w.canceled = true
	if w.video != nil {
		w.video.abort()
	}
	if w.audio != nil {
		w.audio.abort()
	}
	w.file.Close()
	return os.Remove(w.path)
}

// memoryInput is a bounded-queue TrackInput: appends land in a channel
// with fixed capacity and a drainer goroutine moves them to the record
// list, signaling readiness after each move.
type memoryInput struct {
	kind  MediaKind
	queue chan SampleRecord
	ready chan struct{}

	mu       sync.Mutex
	records  []SampleRecord
	finished bool
	failed   bool

	drainDone chan struct{}
}

// memoryInputCapacity is the in-flight sample budget per track input.
const memoryInputCapacity = 16

func newMemoryInput(kind MediaKind) *memoryInput {
	return &memoryInput{
		kind:      kind,
		queue:     make(chan SampleRecord, memoryInputCapacity),
		ready:     make(chan struct{}, 1),
		drainDone: make(chan struct{}),
	}
}

func (in *memoryInput) ReadyForMore() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	// A failed input stays "ready" so a parked producer wakes, attempts
	// an append, and observes the failure.
	if in.failed {
		return true
	}
	if in.finished {
		return false
	}
	return len(in.queue) < cap(in.queue)
}

func (in *memoryInput) Ready() <-chan struct{} {
	return in.ready
}

func (in *memoryInput) Append(sample *Sample) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.finished || in.failed {
		return false
	}

	size := len(sample.Data)
	for _, plane := range sample.Planes {
		size += len(plane)
	}
	// Held under in.mu so the queue cannot close mid-send. The drainer
	// receives without the lock, so a momentarily full queue still makes
	// progress.
	in.queue <- SampleRecord{Kind: sample.Kind, PTS: sample.PTS, Bytes: size}
	return true
}

func (in *memoryInput) MarkFinished() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.finished || in.failed {
		return
	}
	in.finished = true
	close(in.queue)
	in.signalReady()
}

func (in *memoryInput) isFinished() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.finished
}

// startDraining launches the consumer that empties the bounded queue.
func (in *memoryInput) startDraining() {
	go func() {
		defer close(in.drainDone)
		for record := range in.queue {
			in.mu.Lock()
			in.records = append(in.records, record)
			in.mu.Unlock()
			in.signalReady()
		}
	}()
}

func (in *memoryInput) waitDrained() {
	<-in.drainDone
}

func (in *memoryInput) drained() []SampleRecord {
	in.mu.Lock()
	defer in.mu.Unlock()
	records := make([]SampleRecord, len(in.records))
	copy(records, in.records)
	return records
}

// abort fails the input so parked producers wake and observe the failure.
// The queue closes so any running drainer exits.
func (in *memoryInput) abort() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.failed || in.finished {
		return
	}
	in.failed = true
	close(in.queue)
	in.signalReady()
}

// signalReady is a non-blocking wakeup; callers hold in.mu or are the
// sole drainer.
func (in *memoryInput) signalReady() {
	select {
	case in.ready <- struct{}{}:
	default:
	}
}
