package core

import "errors"

// Error taxonomy shared across components. Concrete errors wrap one of these.
var (
	// ErrValidation indicates bad input that never reaches an external service.
	ErrValidation = errors.New("validation failed")
	// ErrSynthesis indicates that the speech model failed or returned nothing.
	ErrSynthesis = errors.New("synthesis failed")
	// ErrStorage indicates that the artifact could not be written anywhere.
	ErrStorage = errors.New("storage failed")
	// ErrUpload indicates that the podcast host did not accept the episode.
	ErrUpload = errors.New("upload failed")
	// ErrStatusReport indicates that a status update did not land.
	ErrStatusReport = errors.New("status report failed")
	// ErrConfiguration indicates missing or invalid settings.
	ErrConfiguration = errors.New("invalid configuration")
)
