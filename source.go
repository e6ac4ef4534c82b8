package transcode

import (
	"time"
)

// sourceState tracks the demux/decode side's lifecycle.
type sourceState int

const (
	sourceUnopened sourceState = iota
	sourceOpened
	sourceReading
	sourceExhausted
	sourceFailed
)

func (s sourceState) String() string {
	switch s {
	case sourceUnopened:
		return "unopened"
	case sourceOpened:
		return "opened"
	case sourceReading:
		return "reading"
	case sourceExhausted:
		return "exhausted"
	case sourceFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// demuxSource wraps a backend ContainerReader with the demux/decode state
// machine and classifies its failures. Exclusively owned by one pipeline.
type demuxSource struct {
	reader ContainerReader
	state  sourceState

	duration time.Duration

	videoIndex int
	videoTrack TrackInfo
	audioIndex int
	audioTrack *TrackInfo

	videoCursor SampleCursor
	audioCursor SampleCursor
}

// openSource opens the input container and locates the video track and the
// optional audio track. The first track of each kind wins; additional
// tracks are ignored.
func openSource(backend Backend, path string) (*demuxSource, *Error) {
	reader, err := backend.OpenRead(path)
	if err != nil {
		return nil, newError(KindReaderCreationFailed, err)
	}

	src := &demuxSource{
		reader:     reader,
		state:      sourceOpened,
		duration:   reader.Duration(),
		videoIndex: -1,
		audioIndex: -1,
	}

	for i, track := range reader.Tracks() {
		switch track.Kind {
		case MediaKindVideo:
			if src.videoIndex < 0 {
				src.videoIndex = i
				src.videoTrack = track
			}
		case MediaKindAudio:
			if src.audioIndex < 0 {
				audio := track
				src.audioIndex = i
				src.audioTrack = &audio
			}
		}
	}

	if src.videoIndex < 0 {
		reader.Close()
		src.state = sourceFailed
		return nil, errorf(KindNoVideoTrack, "container %q has no video track", path)
	}
	return src, nil
}

// attach requests decoded outputs for each planned track: the video track
// in decoder-native 4:2:0 planar video range, the audio track as PCM.
func (s *demuxSource) attach() *Error {
	cursor, err := s.reader.AttachOutput(s.videoIndex, PixelFormatI420)
	if err != nil {
		s.state = sourceFailed
		return newError(KindCannotAttachOutput, err)
	}
	s.videoCursor = cursor

	if s.audioTrack != nil {
		cursor, err = s.reader.AttachOutput(s.audioIndex, PixelFormatI420)
		if err != nil {
			s.state = sourceFailed
			return newError(KindCannotAttachOutput, err)
		}
		s.audioCursor = cursor
	}
	return nil
}

// start begins reading.
func (s *demuxSource) start() *Error {
	if err := s.reader.Start(); err != nil {
		s.state = sourceFailed
		return newError(KindReaderStartFailed, err)
	}
	s.state = sourceReading
	return nil
}

// close releases the reader. Safe to call in any state.
func (s *demuxSource) close() error {
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	return err
}
