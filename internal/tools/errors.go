package tools

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/deepresearch-mcp/internal/models"
	"github.com/raphaelgruber/deepresearch-mcp/internal/service"
)

// Failure is the status tag and message a failed call reports. Handlers embed
// it in their output instead of returning an error, so the client always gets
// a well-formed document.
type Failure struct {
	Status models.JobStatus
	Error  string
}

// classify maps a service error onto a status tag and a caller-facing message.
// current is the job's status when the service returned one alongside the error.
func classify(id string, err error, current models.JobStatus) Failure {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return Failure{models.JobStatusNotFound, fmt.Sprintf("Job %s not found", id)}
	case errors.Is(err, service.ErrNotReady):
		return Failure{current, fmt.Sprintf("Job is not completed yet (status: %s)", current)}
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrEngineStart),
		errors.Is(err, service.ErrEngineQuery),
		errors.Is(err, service.ErrMalformedResult):
		return Failure{models.JobStatusError, err.Error()}
	default:
		return Failure{models.JobStatusError, "Internal error: " + err.Error()}
	}
}

// invalid reports a rejected argument.
func invalid(msg string) Failure {
	return Failure{models.JobStatusError, msg}
}
