// Package codes maps build errors to process exit codes.
package codes

import (
	"errors"
	"io/fs"

	"github.com/Norgate-AV/buildk/internal/dependency"
	"github.com/Norgate-AV/buildk/internal/fetch"
	"github.com/Norgate-AV/buildk/internal/fingerprint"
	"github.com/Norgate-AV/buildk/internal/process"
	"github.com/Norgate-AV/buildk/internal/srcgraph"
)

// Exit codes
const (
	Success         = 0
	Failure         = 1
	ProcessFailed   = 2
	CyclicGraph     = 3
	NotFound        = 4
	Malformed       = 5
	InvalidEncoding = 6
	DownloadFailed  = 7
)

// ErrorCodes maps exit codes to their descriptions
var ErrorCodes = map[int]string{
	Success:         "Success",
	Failure:         "General failure",
	ProcessFailed:   "A tool process didn't exit successfully",
	CyclicGraph:     "Source files depend on each other in a cycle",
	NotFound:        "A file or executable could not be found",
	Malformed:       "A package descriptor is malformed",
	InvalidEncoding: "Tool output is not valid UTF-8",
	DownloadFailed:  "A package could not be downloaded",
}

// ExitCode returns the exit code for err, Success for nil
func ExitCode(err error) int {
	var failed *process.FailedError
	var cycle *srcgraph.CyclicDependencyError

	switch {
	case err == nil:
		return Success
	case errors.As(err, &failed):
		return ProcessFailed
	case errors.As(err, &cycle):
		return CyclicGraph
	case errors.Is(err, fetch.ErrDownload):
		return DownloadFailed
	case errors.Is(err, dependency.ErrMalformedDescriptor):
		return Malformed
	case errors.Is(err, process.ErrEncoding):
		return InvalidEncoding
	case errors.Is(err, fingerprint.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return NotFound
	default:
		return Failure
	}
}

// IsSuccess returns true if the exit code indicates success
func IsSuccess(code int) bool {
	return code == Success
}

// GetErrorMessage returns the message for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ErrorCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
