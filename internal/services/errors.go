package services

import "errors"

// ErrValidation marks a request the engine refuses before doing any work.
// Handlers map it to 400.
var ErrValidation = errors.New("invalid request")
