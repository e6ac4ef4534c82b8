package transcode

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
)

func discardLogger() logging.LeveledLogger {
	factory := logging.NewDefaultLoggerFactory()
	factory.Writer = io.Discard
	return factory.NewLogger("test")
}

// =============================================================================
// Fakes
// =============================================================================

type fakeBackend struct {
	reader      *fakeReader
	writer      *fakeWriter
	openReadErr error
	writeErr    error
}

func (b *fakeBackend) OpenRead(path string) (ContainerReader, error) {
	if b.openReadErr != nil {
		return nil, b.openReadErr
	}
	return b.reader, nil
}

func (b *fakeBackend) OpenWrite(path string, container Container) (ContainerWriter, error) {
	if b.writeErr != nil {
		return nil, b.writeErr
	}
	return b.writer, nil
}

type fakeReader struct {
	tracks   []TrackInfo
	duration time.Duration
	cursors  map[int]*fakeCursor

	attachErr error
	startErr  error

	mu      sync.Mutex
	closed  bool
	started bool
}

func (r *fakeReader) Duration() time.Duration { return r.duration }
func (r *fakeReader) Tracks() []TrackInfo     { return r.tracks }

func (r *fakeReader) AttachOutput(index int, format PixelFormat) (SampleCursor, error) {
	if r.attachErr != nil {
		return nil, r.attachErr
	}
	cursor, ok := r.cursors[index]
	if !ok {
		return nil, fmt.Errorf("no cursor for track %d", index)
	}
	return cursor, nil
}

func (r *fakeReader) Start() error {
	if r.startErr != nil {
		return r.startErr
	}
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type fakeCursor struct {
	samples []*Sample
	failAt  int // inject a read error before this sample index; -1 = never
	readErr error

	mu       sync.Mutex
	next     int
	canceled bool
}

func (c *fakeCursor) Next() (*Sample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAt >= 0 && c.next == c.failAt {
		return nil, c.readErr
	}
	if c.next >= len(c.samples) {
		return nil, io.EOF
	}
	sample := c.samples[c.next]
	c.next++
	return sample, nil
}

func (c *fakeCursor) Cancel() {
	c.mu.Lock()
	c.canceled = true
	c.mu.Unlock()
}

func (c *fakeCursor) isCanceled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canceled
}

type fakeWriter struct {
	video *fakeInput
	audio *fakeInput

	addVideoErr error
	addAudioErr error
	startErr    error
	finalizeErr error

	mu        sync.Mutex
	started   bool
	finalized bool
	canceled  bool
}

func (w *fakeWriter) AddVideoInput(settings VideoSettings) (TrackInput, error) {
	if w.addVideoErr != nil {
		return nil, w.addVideoErr
	}
	return w.video, nil
}

func (w *fakeWriter) AddAudioInput(settings AudioSettings) (TrackInput, error) {
	if w.addAudioErr != nil {
		return nil, w.addAudioErr
	}
	return w.audio, nil
}

func (w *fakeWriter) Start() error {
	if w.startErr != nil {
		return w.startErr
	}
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	return nil
}

func (w *fakeWriter) Finalize() error {
	w.mu.Lock()
	w.finalized = true
	w.mu.Unlock()
	return w.finalizeErr
}

func (w *fakeWriter) Cancel() error {
	w.mu.Lock()
	w.canceled = true
	w.mu.Unlock()
	return nil
}

func (w *fakeWriter) isCanceled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canceled
}

// fakeInput is always ready; it rejects appends past rejectAfter when set.
type fakeInput struct {
	rejectAfter int // -1 = accept everything

	mu       sync.Mutex
	appended []*Sample
	finished bool
}

func (in *fakeInput) ReadyForMore() bool { return true }

func (in *fakeInput) Ready() <-chan struct{} {
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	return ch
}

func (in *fakeInput) Append(sample *Sample) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.rejectAfter >= 0 && len(in.appended) >= in.rejectAfter {
		return false
	}
	in.appended = append(in.appended, sample)
	return true
}

func (in *fakeInput) MarkFinished() {
	in.mu.Lock()
	in.finished = true
	in.mu.Unlock()
}

func (in *fakeInput) count() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.appended)
}

func (in *fakeInput) isFinished() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.finished
}

// =============================================================================
// Fixtures
// =============================================================================

// videoFixture builds n evenly spaced video samples ending exactly at the
// track duration.
func videoFixture(n int, duration time.Duration) []*Sample {
	samples := make([]*Sample, n)
	for i := range samples {
		samples[i] = &Sample{
			Kind: MediaKindVideo,
			PTS:  time.Duration(i+1) * duration / time.Duration(n),
		}
	}
	return samples
}

func audioFixture(n int, duration time.Duration) []*Sample {
	samples := make([]*Sample, n)
	for i := range samples {
		samples[i] = &Sample{
			Kind: MediaKindAudio,
			PTS:  time.Duration(i) * duration / time.Duration(n),
		}
	}
	return samples
}

func fixtureBackend(hasAudio bool) *fakeBackend {
	duration := 2 * time.Second
	tracks := []TrackInfo{{
		Kind: MediaKindVideo, Width: 1280, Height: 720, FrameRate: 30, Codec: "h264",
	}}
	cursors := map[int]*fakeCursor{
		0: {samples: videoFixture(60, duration), failAt: -1},
	}
	if hasAudio {
		tracks = append(tracks, TrackInfo{
			Kind: MediaKindAudio, SampleRate: 48000, Channels: 2, Codec: "aac",
		})
		cursors[1] = &fakeCursor{samples: audioFixture(90, duration), failAt: -1}
	}
	return &fakeBackend{
		reader: &fakeReader{tracks: tracks, duration: duration, cursors: cursors},
		writer: &fakeWriter{
			video: &fakeInput{rejectAfter: -1},
			audio: &fakeInput{rejectAfter: -1},
		},
	}
}

func runPipeline(t *testing.T, backend *fakeBackend, progress func(float64)) (string, error) {
	t.Helper()
	req := baseRequest()
	pl := newPipeline(backend, req, discardLogger(), progress)
	return pl.run()
}

// =============================================================================
// Tests
// =============================================================================

func TestPipelineSuccess(t *testing.T) {
	backend := fixtureBackend(true)
	path, err := runPipeline(t, backend, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if path != "/out/result.mp4" {
		t.Errorf("path = %q", path)
	}
	if got := backend.writer.video.count(); got != 60 {
		t.Errorf("video samples appended = %d, want 60", got)
	}
	if got := backend.writer.audio.count(); got != 90 {
		t.Errorf("audio samples appended = %d, want 90", got)
	}
	if !backend.writer.video.isFinished() || !backend.writer.audio.isFinished() {
		t.Error("inputs not marked finished before finalize")
	}
	if !backend.writer.finalized {
		t.Error("writer not finalized")
	}
	if !backend.reader.isClosed() {
		t.Error("reader not closed after success")
	}
}

func TestPipelineVideoOnly(t *testing.T) {
	backend := fixtureBackend(false)
	if _, err := runPipeline(t, backend, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := backend.writer.audio.count(); got != 0 {
		t.Errorf("audio input received %d samples from audio-less source", got)
	}
}

func TestPipelineStatsCount(t *testing.T) {
	backend := fixtureBackend(true)
	pl := newPipeline(backend, baseRequest(), discardLogger(), nil)
	if _, err := pl.run(); err != nil {
		t.Fatal(err)
	}
	stats := pl.Stats()
	if stats.VideoSamples != 60 || stats.AudioSamples != 90 {
		t.Errorf("stats = %d video, %d audio; want 60, 90", stats.VideoSamples, stats.AudioSamples)
	}
	if stats.Duration <= 0 {
		t.Error("stats duration not recorded")
	}
}

func TestPipelineReaderCreationFailed(t *testing.T) {
	backend := &fakeBackend{openReadErr: errors.New("cannot parse container")}
	_, err := runPipeline(t, backend, nil)
	if KindOf(err) != KindReaderCreationFailed {
		t.Errorf("kind = %v, want KindReaderCreationFailed", KindOf(err))
	}
}

func TestPipelineNoVideoTrack(t *testing.T) {
	backend := fixtureBackend(false)
	backend.reader.tracks = []TrackInfo{{Kind: MediaKindAudio, SampleRate: 48000, Channels: 2}}
	_, err := runPipeline(t, backend, nil)
	if KindOf(err) != KindNoVideoTrack {
		t.Errorf("kind = %v, want KindNoVideoTrack", KindOf(err))
	}
	if !backend.reader.isClosed() {
		t.Error("reader leaked after track rejection")
	}
}

func TestPipelineDegenerateVideoTrack(t *testing.T) {
	backend := fixtureBackend(false)
	backend.reader.tracks[0].Width = 0
	_, err := runPipeline(t, backend, nil)
	if KindOf(err) != KindNoVideoTrack {
		t.Errorf("kind = %v, want KindNoVideoTrack", KindOf(err))
	}
}

func TestPipelineAttachFailure(t *testing.T) {
	backend := fixtureBackend(false)
	backend.reader.attachErr = errors.New("decoder unavailable")
	_, err := runPipeline(t, backend, nil)
	if KindOf(err) != KindCannotAttachOutput {
		t.Errorf("kind = %v, want KindCannotAttachOutput", KindOf(err))
	}
}

func TestPipelineReaderStartFailed(t *testing.T) {
	backend := fixtureBackend(false)
	backend.reader.startErr = errors.New("demuxer refused")
	_, err := runPipeline(t, backend, nil)
	if KindOf(err) != KindReaderStartFailed {
		t.Errorf("kind = %v, want KindReaderStartFailed", KindOf(err))
	}
}

func TestPipelineWriterCreationFailed(t *testing.T) {
	backend := fixtureBackend(false)
	backend.writeErr = errors.New("permission denied")
	_, err := runPipeline(t, backend, nil)
	if KindOf(err) != KindWriterCreationFailed {
		t.Errorf("kind = %v, want KindWriterCreationFailed", KindOf(err))
	}
	if !backend.reader.isClosed() {
		t.Error("reader leaked after writer creation failure")
	}
}

func TestPipelineAddVideoInputFailed(t *testing.T) {
	backend := fixtureBackend(false)
	backend.writer.addVideoErr = errors.New("encoder init failed")
	_, err := runPipeline(t, backend, nil)
	if KindOf(err) != KindCannotAddVideoInput {
		t.Errorf("kind = %v, want KindCannotAddVideoInput", KindOf(err))
	}
	if !backend.writer.isCanceled() {
		t.Error("writer not canceled after input rejection")
	}
}

func TestPipelineAddAudioInputFailed(t *testing.T) {
	backend := fixtureBackend(true)
	backend.writer.addAudioErr = errors.New("aac encoder missing")
	_, err := runPipeline(t, backend, nil)
	if KindOf(err) != KindCannotAddAudioInput {
		t.Errorf("kind = %v, want KindCannotAddAudioInput", KindOf(err))
	}
	if !backend.writer.isCanceled() {
		t.Error("writer not canceled after input rejection")
	}
}

func TestPipelineZeroBitrateRejected(t *testing.T) {
	backend := fixtureBackend(false)
	// A 1x1 source at quality 0.5 estimates to zero bits per second.
	backend.reader.tracks[0].Width = 1
	backend.reader.tracks[0].Height = 1
	req := baseRequest()
	req.Quality = 0.5
	pl := newPipeline(backend, req, discardLogger(), nil)
	_, err := pl.run()
	if KindOf(err) != KindCannotAddVideoInput {
		t.Errorf("kind = %v, want KindCannotAddVideoInput", KindOf(err))
	}
}

func TestPipelineWriterStartFailed(t *testing.T) {
	backend := fixtureBackend(false)
	backend.writer.startErr = errors.New("session refused")
	_, err := runPipeline(t, backend, nil)
	if KindOf(err) != KindWriterStartFailed {
		t.Errorf("kind = %v, want KindWriterStartFailed", KindOf(err))
	}
	if !backend.writer.isCanceled() {
		t.Error("writer not canceled after start failure")
	}
}

func TestPipelineMidReadFailure(t *testing.T) {
	backend := fixtureBackend(false)
	cursor := backend.reader.cursors[0]
	cursor.failAt = 10
	cursor.readErr = errors.New("corrupt packet")

	_, err := runPipeline(t, backend, nil)
	if KindOf(err) != KindReaderFailed {
		t.Errorf("kind = %v, want KindReaderFailed", KindOf(err))
	}
	if !errors.Is(err, cursor.readErr) {
		t.Error("reader diagnostic not preserved")
	}
	if !backend.writer.isCanceled() {
		t.Error("writer not canceled after mid-read failure")
	}
	if backend.writer.finalized {
		t.Error("writer finalized despite failure")
	}
}

func TestPipelineAppendRejectedStopsReads(t *testing.T) {
	backend := fixtureBackend(false)
	backend.writer.video.rejectAfter = 5
	backend.writer.finalizeErr = errors.New("encoder died")

	_, err := runPipeline(t, backend, nil)
	// The rejection itself is not the error; the sink's terminal status is.
	if KindOf(err) != KindWriterFailed {
		t.Errorf("kind = %v, want KindWriterFailed", KindOf(err))
	}
	if !backend.reader.cursors[0].isCanceled() {
		t.Error("cursor not canceled after append rejection")
	}
	if got := backend.writer.video.count(); got != 5 {
		t.Errorf("appended %d samples after rejection point, want 5", got)
	}
}

func TestPipelineFinalizeFailure(t *testing.T) {
	backend := fixtureBackend(false)
	backend.writer.finalizeErr = errors.New("moov write failed")
	_, err := runPipeline(t, backend, nil)
	if KindOf(err) != KindWriterFailed {
		t.Errorf("kind = %v, want KindWriterFailed", KindOf(err))
	}
}

func TestPipelineProgress(t *testing.T) {
	backend := fixtureBackend(false)

	var mu sync.Mutex
	var fractions []float64
	progress := func(f float64) {
		mu.Lock()
		fractions = append(fractions, f)
		mu.Unlock()
	}

	if _, err := runPipeline(t, backend, progress); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(fractions) == 0 {
		t.Fatal("no progress emitted")
	}
	prev := -1.0
	for i, f := range fractions {
		if f < 0 || f > 1 {
			t.Errorf("fraction[%d] = %g outside [0,1]", i, f)
		}
		if f < prev {
			t.Errorf("fraction[%d] = %g decreased from %g", i, f, prev)
		}
		prev = f
	}
	if last := fractions[len(fractions)-1]; last != 1.0 {
		t.Errorf("final fraction = %g, want 1.0", last)
	}
}

func TestPipelineProgressClamped(t *testing.T) {
	backend := fixtureBackend(false)
	// Last sample's timestamp overshoots the reported duration.
	samples := backend.reader.cursors[0].samples
	samples[len(samples)-1].PTS = 3 * time.Second

	var mu sync.Mutex
	max := 0.0
	progress := func(f float64) {
		mu.Lock()
		if f > max {
			max = f
		}
		mu.Unlock()
	}

	if _, err := runPipeline(t, backend, progress); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if max > 1.0 {
		t.Errorf("progress exceeded 1.0: %g", max)
	}
}

func TestPipelineUnknownDurationSkipsProgress(t *testing.T) {
	backend := fixtureBackend(false)
	backend.reader.duration = 0

	called := false
	progress := func(float64) { called = true }

	if _, err := runPipeline(t, backend, progress); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("progress emitted for a source with unknown duration")
	}
}
