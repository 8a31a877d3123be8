package domain

import "errors"

var (
	ErrOpenFailed     = errors.New("failed to open capture session")
	ErrReadFailure    = errors.New("failed to read frame")
	ErrEndOfStream    = errors.New("end of stream")
	ErrUnresolvable   = errors.New("could not resolve media address")
	ErrCameraNotFound = errors.New("camera not found")
	ErrNoSource       = errors.New("no source specified")
)
