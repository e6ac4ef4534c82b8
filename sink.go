package transcode

// sinkState tracks the encode/mux side's lifecycle.
type sinkState int

const (
	sinkUnopened sinkState = iota
	sinkConfigured
	sinkWriting
	sinkFinalizing
	sinkCompleted
	sinkFailed
)

func (s sinkState) String() string {
	switch s {
	case sinkUnopened:
		return "unopened"
	case sinkConfigured:
		return "configured"
	case sinkWriting:
		return "writing"
	case sinkFinalizing:
		return "finalizing"
	case sinkCompleted:
		return "completed"
	case sinkFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// muxSink wraps a backend ContainerWriter with the encode/mux state
// machine and classifies its failures. Exclusively owned by one pipeline.
type muxSink struct {
	writer ContainerWriter
	state  sinkState

	videoInput TrackInput
	audioInput TrackInput
}

// openSink creates the output container and adds one input per planned
// track. Tracks must all be added before writing starts, so this happens
// in one step.
func openSink(backend Backend, path string, container Container, settings OutputSettings) (*muxSink, *Error) {
	writer, err := backend.OpenWrite(path, container)
	if err != nil {
		return nil, newError(KindWriterCreationFailed, err)
	}

	sink := &muxSink{writer: writer, state: sinkConfigured}

	// The estimator applies no floor; degenerate settings are rejected
	// here, at the encoder boundary.
	if settings.Video.AverageBitrate <= 0 {
		sink.fail()
		return nil, errorf(KindCannotAddVideoInput, "target bitrate %d is not positive", settings.Video.AverageBitrate)
	}

	sink.videoInput, err = writer.AddVideoInput(settings.Video)
	if err != nil {
		sink.fail()
		return nil, newError(KindCannotAddVideoInput, err)
	}

	if settings.Audio != nil {
		sink.audioInput, err = writer.AddAudioInput(*settings.Audio)
		if err != nil {
			sink.fail()
			return nil, newError(KindCannotAddAudioInput, err)
		}
	}
	return sink, nil
}

// start begins writing a session at the zero timestamp of the output
// timeline.
func (s *muxSink) start() *Error {
	if err := s.writer.Start(); err != nil {
		s.fail()
		return newError(KindWriterStartFailed, err)
	}
	s.state = sinkWriting
	return nil
}

// finalize flushes and closes the container. Valid only after every track
// input has been marked finished.
func (s *muxSink) finalize() *Error {
	s.state = sinkFinalizing
	if err := s.writer.Finalize(); err != nil {
		s.state = sinkFailed
		return newError(KindWriterFailed, err)
	}
	s.state = sinkCompleted
	return nil
}

// fail cancels the writer, discarding partial output where the backend
// allows it. Safe to call in any non-terminal state.
func (s *muxSink) fail() {
	if s.state == sinkCompleted || s.state == sinkFailed {
		return
	}
	s.state = sinkFailed
	if s.writer != nil {
		s.writer.Cancel()
	}
}
