package service

import "errors"

// Sentinel errors for job lifecycle operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrValidation indicates bad input, rejected before any engine call.
	ErrValidation = errors.New("invalid input")

	// ErrJobNotFound indicates no job exists for the identifier.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists indicates an insert collided with an existing identifier.
	ErrJobExists = errors.New("job already exists")

	// ErrNotReady indicates the job is known but has not completed.
	ErrNotReady = errors.New("job not ready")

	// ErrEngineStart indicates the engine refused or failed to start the
	// operation. No job is recorded.
	ErrEngineStart = errors.New("failed to start research")

	// ErrEngineQuery indicates a failed engine status or result query.
	// Swallowed while polling, surfaced while fetching results.
	ErrEngineQuery = errors.New("failed to query research engine")

	// ErrMalformedResult indicates a completed engine document whose shape
	// could not be normalized into a report.
	ErrMalformedResult = errors.New("malformed research result")
)
