package model

import "errors"

// Input validation errors. Call sites wrap these with details, so callers
// should match with errors.Is.
var (
	ErrInvalidZoom     = errors.New("invalid zoom scale")
	ErrInvalidRange    = errors.New("invalid visible range")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrInvalidHeader   = errors.New("invalid header spec")
	ErrDuplicateID     = errors.New("duplicate id")
	ErrTooManyCells    = errors.New("too many axis cells")
)
