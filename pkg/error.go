package pkg

import "errors"

var (
	// ErrStructure covers missing or misplaced moov/mdat and unreadable atoms.
	ErrStructure = errors.New("structure")
	ErrNoCodec   = errors.New("no codec signature")
	ErrCapacity  = errors.New("capacity")
	ErrOutput    = errors.New("output")
	ErrDisabled  = errors.New("disabled")
	// ErrSkipped marks a fragment a plugin declined to look at.
	ErrSkipped = errors.New("skipped")
)
