package domain

import "errors"

var (
	// ErrNoIdentity is returned when no wallet identity is connected.
	ErrNoIdentity = errors.New("wallet not connected")

	// ErrNoSelection is returned when no source holding is selected.
	ErrNoSelection = errors.New("no token selected")
)
