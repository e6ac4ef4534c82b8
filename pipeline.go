package transcode

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pion/logging"
)

// PipelineStats provides per-transcode counters.
type PipelineStats struct {
	VideoSamples   uint64 // samples appended to the video input
	AudioSamples   uint64 // samples appended to the audio input
	ProgressEvents uint64 // progress values emitted
	Duration       time.Duration
}

// trackPlan pairs one track's cursor with its sink input. Owned
// exclusively by the pipeline; never shared across tracks.
type trackPlan struct {
	kind   MediaKind
	cursor SampleCursor
	input  TrackInput
}

// pipeline wires one source to one sink, runs the backpressure-gated copy
// loop per track, and resolves the terminal outcome. It lives for exactly
// one transcode: no entity survives past run().
type pipeline struct {
	backend  Backend
	req      Request
	log      logging.LeveledLogger
	progress func(float64)

	source *demuxSource
	sink   *muxSink
	plans  []*trackPlan

	lastProgress float64
	progressMu   sync.Mutex

	stats   PipelineStats
	statsMu sync.Mutex
}

func newPipeline(backend Backend, req Request, log logging.LeveledLogger, progress func(float64)) *pipeline {
	return &pipeline{
		backend:  backend,
		req:      req,
		log:      log,
		progress: progress,
	}
}

// run executes the transcode and returns the output path or a classified
// error. Exactly one of the two is meaningful.
func (p *pipeline) run() (string, error) {
	started := time.Now()
	defer func() {
		p.statsMu.Lock()
		p.stats.Duration = time.Since(started)
		p.statsMu.Unlock()
	}()

	// Demux side first: output settings derive from the source's track
	// metadata, and the sink must not open until they are final.
	source, terr := openSource(p.backend, p.req.InputPath)
	if terr != nil {
		return "", terr
	}
	p.source = source
	defer p.teardownSource()

	p.log.Debugf("opened source %q: %s, video %dx%d @ %g fps, audio=%v",
		p.req.InputPath, source.duration, source.videoTrack.Width,
		source.videoTrack.Height, source.videoTrack.FrameRate,
		source.audioTrack != nil)

	natural := Size{Width: source.videoTrack.Width, Height: source.videoTrack.Height}
	settings, err := BuildOutputSettings(p.req, natural, source.videoTrack.FrameRate, source.audioTrack != nil)
	if err != nil {
		// A zero-area video track is an input-track defect, not a
		// writer problem.
		return "", newError(KindNoVideoTrack, err)
	}

	if terr := source.attach(); terr != nil {
		return "", terr
	}
	if terr := source.start(); terr != nil {
		return "", terr
	}

	sink, terr := openSink(p.backend, p.req.OutputPath, p.req.Container, settings)
	if terr != nil {
		return "", terr
	}
	p.sink = sink

	p.log.Infof("transcoding to %s/%s %dx%d @ %g fps, %d bps, hardware=%v",
		p.req.Container, settings.Video.Codec, settings.Video.Width,
		settings.Video.Height, settings.Video.FrameRate,
		settings.Video.AverageBitrate, settings.Video.Hardware)

	if terr := sink.start(); terr != nil {
		return "", terr
	}

	p.plans = []*trackPlan{{
		kind:   MediaKindVideo,
		cursor: source.videoCursor,
		input:  sink.videoInput,
	}}
	if source.audioTrack != nil {
		p.plans = append(p.plans, &trackPlan{
			kind:   MediaKindAudio,
			cursor: source.audioCursor,
			input:  sink.audioInput,
		})
	}

	// One worker per track so video and audio drain independently, each
	// bounded by its own readiness gate. The join below is the
	// precondition for finalizing the sink.
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr *Error
	)
	for _, plan := range p.plans {
		wg.Add(1)
		go func(plan *trackPlan) {
			defer wg.Done()
			if terr := p.pumpTrack(plan); terr != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = terr
				}
				errMu.Unlock()
			}
		}(plan)
	}
	wg.Wait()

	if firstErr != nil {
		source.state = sourceFailed
		sink.fail()
		return "", firstErr
	}
	source.state = sourceExhausted

	if terr := sink.finalize(); terr != nil {
		return "", terr
	}

	p.log.Infof("finished %q (%d video, %d audio samples)",
		p.req.OutputPath, p.stats.VideoSamples, p.stats.AudioSamples)
	return p.req.OutputPath, nil
}

// pumpTrack is the copy loop for one track: drain the cursor into the sink
// input while the input is ready, park on the readiness gate otherwise.
// Samples are appended in demux order; the loop never reorders.
func (p *pipeline) pumpTrack(plan *trackPlan) *Error {
	for {
		for plan.input.ReadyForMore() {
			sample, err := plan.cursor.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					// Normal exhaustion.
					plan.input.MarkFinished()
					p.log.Debugf("%s track exhausted", plan.kind)
					return nil
				}
				plan.cursor.Cancel()
				plan.input.MarkFinished()
				return newError(KindReaderFailed, err)
			}

			if !plan.input.Append(sample) {
				// The write failed; stop feeding doomed data. The
				// sink's terminal status carries the diagnostic.
				plan.cursor.Cancel()
				plan.input.MarkFinished()
				p.log.Warnf("%s append rejected, stopping track", plan.kind)
				return nil
			}
			p.countSample(plan.kind)

			if plan.kind == MediaKindVideo {
				p.emitProgress(sample.PTS)
			}
		}
		<-plan.input.Ready()
	}
}

// emitProgress reports the fraction of the source consumed, derived from
// the sample's presentation timestamp against the container duration.
// Values are clamped to [0,1] and never decrease: a final sample whose
// timestamp slightly exceeds the reported duration is legitimate and must
// not push the fraction past 1.
func (p *pipeline) emitProgress(pts time.Duration) {
	if p.progress == nil || p.source.duration <= 0 {
		return
	}
	fraction := float64(pts) / float64(p.source.duration)
	if fraction > 1 {
		fraction = 1
	}

	p.progressMu.Lock()
	if fraction < p.lastProgress {
		p.progressMu.Unlock()
		return
	}
	p.lastProgress = fraction
	p.progressMu.Unlock()

	p.statsMu.Lock()
	p.stats.ProgressEvents++
	p.statsMu.Unlock()

	p.progress(fraction)
}

func (p *pipeline) countSample(kind MediaKind) {
	p.statsMu.Lock()
	if kind == MediaKindVideo {
		p.stats.VideoSamples++
	} else {
		p.stats.AudioSamples++
	}
	p.statsMu.Unlock()
}

// teardownSource releases the reader. Release failures cannot change the
// transcode outcome at this point, so they are logged, not returned.
func (p *pipeline) teardownSource() {
	var errs *multierror.Error
	if p.source != nil {
		errs = multierror.Append(errs, p.source.close())
	}
	if err := errs.ErrorOrNil(); err != nil {
		p.log.Warnf("source teardown: %v", err)
	}
}

// Stats returns a snapshot of the pipeline counters.
func (p *pipeline) Stats() PipelineStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}
