package shared

import "errors"

// ErrInvalidAPIToken indicates a failed society token check.
var ErrInvalidAPIToken = errors.New("invalid api token")
