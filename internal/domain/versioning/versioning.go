// Package versioning implements the deprecation engine: transitioning a
// record from active to deprecated via filter-based payload mutation,
// never by deleting or rewriting by point id.
package versioning

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput is returned when Deprecate is called without a target
// hash_content — the only identifier safe to pass to the backend.
var ErrInvalidInput = errors.New("versioning: hash_content is required")

// PayloadMutator is the narrow interface the engine needs: find records
// matching an exact hash_content and apply a patch to each. Satisfied by
// internal/repository/record.Repo.
type PayloadMutator interface {
	MutateByHashContent(ctx context.Context, hashContent string, patch map[string]any) (matched int, err error)
	StatusByHashContent(ctx context.Context, hashContent string) (status string, found bool, err error)
}

// StatusActive and StatusDeprecated mirror envelope.Status's values
// without importing envelope, to keep this package's only dependency on
// its PayloadMutator's string contract.
const (
	StatusActive     = "active"
	StatusDeprecated = "deprecated"
)

// Deprecate transitions every record matching hashContent from active to
// deprecated, setting status and updated_at. Idempotent: if the matching
// record is already deprecated, this is a no-op success (checked by
// reading status before mutating).
func Deprecate(ctx context.Context, mutator PayloadMutator, hashContent string) error {
	if hashContent == "" {
		return ErrInvalidInput
	}

	status, found, err := mutator.StatusByHashContent(ctx, hashContent)
	if err != nil {
		return fmt.Errorf("versioning: read status: %w", err)
	}
	if !found {
		return nil
	}
	if status == StatusDeprecated {
		return nil
	}

	patch := map[string]any{
		"status":     StatusDeprecated,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}

	if _, err := mutator.MutateByHashContent(ctx, hashContent, patch); err != nil {
		return fmt.Errorf("versioning: deprecate: %w", err)
	}
	return nil
}
