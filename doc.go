// Package transcode converts a video file from one container/codec
// configuration into another: demux, decode, scale, re-encode, and mux,
// with progress reporting and a single terminal result per job.
//
// # Architecture
//
//	ContainerReader -> SampleCursor -> per-track pump -> TrackInput -> ContainerWriter
//
// A Backend supplies the demux/decode and encode/mux capability. The
// pipeline drives one pump goroutine per track, throttled by the sink's
// readiness gate, and finalizes the output container once every track is
// exhausted.
//
// # Backends
//
// The native backend binds libtranscode_av via purego (CGO_ENABLED=0).
// Set TRANSCODE_LIB_PATH to the directory containing the library. When the
// library is absent the backend reports itself unavailable and tests that
// need it are skipped.
//
// MemoryBackend is a self-contained in-memory backend with synthetic
// sources and a collecting sink. It exists for integration testing and for
// exercising the pipeline without native dependencies.
//
// # Usage
//
//	job, err := transcode.Transcode(req,
//		func(p float64) { fmt.Printf("\r%3.0f%%", p*100) },
//		func(path string, err error) { done <- err },
//	)
//
// Progress callbacks carry non-decreasing fractions in [0,1]; the
// completion callback fires exactly once, after all progress callbacks.
package transcode
