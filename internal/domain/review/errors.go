package review

import (
	"errors"
	"fmt"
)

// Classification sentinels. Boundary code branches on these with errors.Is.
var (
	ErrAuthentication = errors.New("invalid signature")
	ErrValidation     = errors.New("invalid webhook request")
	ErrPersistence    = errors.New("persistence failure")
	ErrPublish        = errors.New("publish failure")
)

var (
	ErrMissingEventHeader  = fmt.Errorf("%w: missing X-GitHub-Event header", ErrValidation)
	ErrMalformedPayload    = fmt.Errorf("%w: malformed payload", ErrValidation)
	ErrMissingInstallation = fmt.Errorf("%w: missing installation_id", ErrValidation)
)

// MissingFieldError reports a required payload field that was absent or empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %s", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMalformedPayload || target == ErrValidation
}
