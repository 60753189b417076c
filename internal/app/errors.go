package service

import "errors"

// Sentinel kinds for service errors. Store errors from the repository
// package and nickname errors are returned as they are.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("game result queue is full")
)
