package session

import "errors"

// Invariant violations reported by Manager.CheckInvariants
var (
	ErrPairedInQueue     = errors.New("paired participant present in waiting queue")
	ErrAsymmetricPairing = errors.New("pairing is not mutual")
	ErrQueueIndex        = errors.New("waiting queue index out of sync")
	ErrSelfPairing       = errors.New("participant paired with itself")
)
