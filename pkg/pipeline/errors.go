package pipeline

import "errors"

var (
	// ErrConfigInvalid marks bad crop/zoom/output parameters. Detected
	// before any work starts.
	ErrConfigInvalid = errors.New("pipeline: invalid configuration")

	// ErrSourceUnreadable marks a source file that cannot be opened or
	// parsed.
	ErrSourceUnreadable = errors.New("pipeline: source unreadable")

	// ErrSeekTimeout marks a decode seek that exceeded its deadline. The
	// prefetch layer retries once with a fresh cursor before giving up.
	ErrSeekTimeout = errors.New("pipeline: seek timeout")

	// ErrPastEnd is the "no frame" sentinel: the requested timestamp lies
	// beyond the end of the track. For an optional overlay track this is
	// not an error condition; the frame is rendered without the overlay.
	ErrPastEnd = errors.New("pipeline: past end of track")

	// ErrWorkerCrashed marks a render worker that faulted mid-frame.
	// Isolated crashes degrade parallelism; only losing every worker is
	// fatal.
	ErrWorkerCrashed = errors.New("pipeline: render worker crashed")

	// ErrEncodeRejected marks a frame the encoder refused. Retried once
	// per frame before failing the export.
	ErrEncodeRejected = errors.New("pipeline: encoder rejected frame")

	// ErrResourceExhausted marks a pool or queue misconfiguration detected
	// at construction time. Never silently clamped.
	ErrResourceExhausted = errors.New("pipeline: resource limits misconfigured")
)
