package service

import "errors"

// ErrInvalidArgument marks caller input the service cannot act on.
var ErrInvalidArgument = errors.New("invalid argument")
