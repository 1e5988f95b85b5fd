package services

import "errors"

// ErrValidation marks client-input failures. Handlers translate it to
// HTTP 400; wrapped detail describes the offending field.
var ErrValidation = errors.New("validation failed")
