package app

import (
	"errors"
	"fmt"

	"github.com/okian/stride/internal/adapters/repository"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/pkg/metrics"
)

// Sentinel kinds for service errors.
var (
	// ErrGateway marks a failed call to the data gateway. Results returned
	// alongside it come from the last good snapshot.
	ErrGateway = errors.New("gateway unavailable")
	// ErrNotStarted is returned by Stop on a service that never started.
	ErrNotStarted = errors.New("service not started")
)

// gatewayError classifies err from a gateway call made for op. Not-found and
// validation errors pass through untouched.
func gatewayError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, model.ErrValidation) ||
		errors.Is(err, repository.ErrMissedStatus) || errors.Is(err, repository.ErrInvalidDateKey) {
		return err
	}
	metrics.RecordGatewayError(op)
	return fmt.Errorf("%w: %s: %w", ErrGateway, op, err)
}

func invalid(field, reason string) error {
	return &model.ValidationError{Field: field, Reason: reason}
}
