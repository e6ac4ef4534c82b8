package transcode

import (
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// ProgressFunc receives fractional progress in [0,1]. Values never
// decrease within one job.
type ProgressFunc func(fraction float64)

// CompletionFunc receives the terminal outcome: the output path on
// success, or a classified *Error on failure. It is invoked exactly once
// per job, after every progress callback.
type CompletionFunc func(outputPath string, err error)

// Option configures a transcode job.
type Option func(*jobOptions)

type jobOptions struct {
	backend       Backend
	loggerFactory logging.LoggerFactory
}

// WithBackend overrides the backend for this job. The default is the
// native backend.
func WithBackend(backend Backend) Option {
	return func(o *jobOptions) { o.backend = backend }
}

// WithLoggerFactory sets the logger factory for this job.
func WithLoggerFactory(factory logging.LoggerFactory) Option {
	return func(o *jobOptions) { o.loggerFactory = factory }
}

// Job is a handle to one running transcode.
type Job struct {
	id       string
	pipeline *pipeline

	done chan struct{}
	path string
	err  error
}

// ID returns the job's unique identifier.
func (j *Job) ID() string {
	return j.id
}

// Done returns a channel closed once the terminal callback has fired.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job terminates and returns its outcome.
func (j *Job) Wait() (string, error) {
	<-j.done
	return j.path, j.err
}

// Stats returns a snapshot of the pipeline counters.
func (j *Job) Stats() PipelineStats {
	return j.pipeline.Stats()
}

// Transcode starts an asynchronous transcode and returns immediately with
// a job handle. Callbacks are delivered from a dedicated notifier
// goroutine, decoupled from the caller's goroutine and from the pipeline
// workers: onProgress is invoked zero or more times with non-decreasing
// fractions, then onComplete exactly once.
//
// The returned error covers request validation and backend resolution
// only; every pipeline failure is delivered through onComplete.
func Transcode(req Request, onProgress ProgressFunc, onComplete CompletionFunc, opts ...Option) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var options jobOptions
	for _, opt := range opts {
		opt(&options)
	}

	backend := options.backend
	if backend == nil {
		var err error
		if backend, err = DefaultBackend(); err != nil {
			return nil, err
		}
	}

	factory := options.loggerFactory
	if factory == nil {
		factory = logging.NewDefaultLoggerFactory()
	}
	log := factory.NewLogger("transcode")

	id := uuid.NewString()

	// Progress flows through a single channel so that delivery order
	// matches emission order and completion strictly follows the last
	// progress value.
	events := make(chan float64, 64)
	var emit func(float64)
	if onProgress != nil {
		emit = func(f float64) { events <- f }
	}

	job := &Job{
		id:   id,
		done: make(chan struct{}),
	}
	job.pipeline = newPipeline(backend, req, log, emit)

	type outcome struct {
		path string
		err  error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		log.Infof("job %s: %q -> %q", id, req.InputPath, req.OutputPath)
		path, err := job.pipeline.run()
		if err != nil {
			log.Errorf("job %s: %v", id, err)
		}
		resultCh <- outcome{path: path, err: err}
		close(events)
	}()

	go func() {
		for fraction := range events {
			onProgress(fraction)
		}
		res := <-resultCh
		job.path, job.err = res.path, res.err
		if onComplete != nil {
			onComplete(res.path, res.err)
		}
		close(job.done)
	}()

	return job, nil
}
