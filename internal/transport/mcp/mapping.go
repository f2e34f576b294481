package mcp

import (
	"errors"

	"github.com/kailas-cloud/ingestcore/internal/domain/ingesterr"
)

// mapErr converts any error returned by the usecase layer into the
// taxonomy every tool response embeds. Errors that aren't already
// *ingesterr.Error (a bug surfacing raw) are reported as Internal rather
// than panicking the transport.
func mapErr(err error) errorResponse {
	if err == nil {
		return ok()
	}
	var ie *ingesterr.Error
	if errors.As(err, &ie) {
		return errorResponse{
			Status:    "error",
			Kind:      string(ie.Kind),
			Message:   ie.Error(),
			Retryable: ie.Retryable(),
		}
	}
	return errorResponse{Status: "error", Kind: string(ingesterr.KindInternal), Message: err.Error()}
}
