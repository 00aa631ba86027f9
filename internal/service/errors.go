package service

import "errors"

var (
	ErrRunInFlight      = errors.New("a generation run is already in progress for this timeline")
	ErrTimelineNotReady = errors.New("timeline has segments without a generated clip")
	ErrUnknownModel     = errors.New("unknown model")
)
