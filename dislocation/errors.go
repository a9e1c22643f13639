package dislocation

import "errors"

var (
	// ErrStaleRef is returned when a node or segment reference points to a
	// slot that was released or never allocated.
	ErrStaleRef = errors.New("stale dislocation network reference")
	// ErrAlreadyJoined is returned by ConnectNodes when both nodes already
	// belong to the same junction.
	ErrAlreadyJoined = errors.New("nodes already form a junction")
	// ErrInvalidTopology is returned by BuildFromEdges for inconsistent edge graphs.
	ErrInvalidTopology = errors.New("invalid dislocation network topology")
)
