package model

import "errors"

var (
	ErrInvalidRange        = errors.New("value out of range")
	ErrInvalidThresholds   = errors.New("close threshold must be above open threshold")
	ErrDuplicateRoom       = errors.New("room already registered")
	ErrRoomNotFound        = errors.New("room not found")
	ErrActuatorUnreachable = errors.New("actuator unreachable")
	ErrHeatingBlocked      = errors.New("heating blocked while window is open")
)
