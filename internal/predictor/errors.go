package predictor

import (
	"errors"
	"fmt"
)

var (
	// ErrResultCountMismatch is returned when a backend yields a result
	// batch whose length differs from the image batch. Predictors are
	// length-preserving by contract.
	ErrResultCountMismatch = errors.New("predictor returned wrong number of results")

	// ErrNullResult is returned when a backend yields a null entry in an
	// otherwise well-formed result batch.
	ErrNullResult = errors.New("predictor returned a null result")

	// ErrBackendUnavailable is returned when the configured backend cannot
	// be reached or refused the request.
	ErrBackendUnavailable = errors.New("model backend unavailable")

	// ErrTaskUnsupported is returned when a backend is asked for a task it
	// does not implement (tesseract has no layout or table model, for
	// instance).
	ErrTaskUnsupported = errors.New("task not supported by this backend")

	// ErrMissingCredentials is returned when a cloud backend is selected
	// but no credentials are configured in the environment.
	ErrMissingCredentials = errors.New("missing cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")

	// ErrEmptyBatch is returned when a predictor is invoked with no images.
	ErrEmptyBatch = errors.New("no images in batch")
)

// PredictorError wraps errors with context about the failed prediction.
type PredictorError struct {
	// Op is the operation that failed (e.g., "DetectText", "predict").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *PredictorError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("predictor: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("predictor: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PredictorError) Unwrap() error {
	return e.Err
}

// Is implements error matching against the wrapped error.
func (e *PredictorError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapPredictorError wraps an error as a PredictorError if it isn't one
// already.
func WrapPredictorError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var perr *PredictorError
	if errors.As(err, &perr) {
		return err
	}

	return &PredictorError{Op: op, Err: err, Details: details}
}
