package transcode

// VideoSettings is the concrete encoder configuration for the video track.
// Immutable once computed: it is derived exactly once per transcode,
// before the sink opens, because recomputing it mid-transcode would change
// the meaning of the already-opened sink.
type VideoSettings struct {
	Codec  VideoCodec
	Width  int
	Height int

	Quality        float64 // quality factor handed to the encoder
	AverageBitrate int     // target average bitrate in bits/second
	FrameRate      float64 // effective frames per second

	// Hardware reports eligibility, not a guarantee: true only when the
	// caller asked for hardware acceleration and the codec supports it.
	Hardware bool
}

// AudioSettings is the encoder configuration for the audio track. The
// output audio profile is fixed: source audio is always re-encoded; codec
// passthrough is not supported.
type AudioSettings struct {
	Codec      AudioCodec
	Channels   int
	SampleRate int
	Bitrate    int // bits/second
}

// DefaultAudioSettings returns the fixed output audio profile:
// AAC, stereo, 44.1 kHz, 128 kbps.
func DefaultAudioSettings() AudioSettings {
	return AudioSettings{
		Codec:      AudioCodecAAC,
		Channels:   2,
		SampleRate: 44100,
		Bitrate:    128_000,
	}
}

// OutputSettings is the full sink configuration for one transcode.
// Audio is nil when the source has no audio track.
type OutputSettings struct {
	Video VideoSettings
	Audio *AudioSettings
}

// BuildOutputSettings derives the sink configuration from the request and
// the source's video track metadata. Pure: no side effects, and the only
// failure mode is a degenerate source size surfacing from ResolveSize.
func BuildOutputSettings(req Request, natural Size, nominalFPS float64, hasAudio bool) (OutputSettings, error) {
	size, err := ResolveSize(natural, req.Resolution)
	if err != nil {
		return OutputSettings{}, err
	}

	fps := nominalFPS
	if !req.FrameRate.IsOriginal() {
		fps = req.FrameRate.Value()
	}

	settings := OutputSettings{
		Video: VideoSettings{
			Codec:          req.Codec,
			Width:          size.Width,
			Height:         size.Height,
			Quality:        req.Quality,
			AverageBitrate: EstimateBitrate(size, fps, req.Quality),
			FrameRate:      fps,
			Hardware:       req.HardwareAccel && req.Codec.HardwareCapable(),
		},
	}
	if hasAudio {
		audio := DefaultAudioSettings()
		settings.Audio = &audio
	}
	return settings, nil
}
