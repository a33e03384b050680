package torrent

import (
	"errors"
	"fmt"
)

var (
	// ErrMagnetParse marks a magnet URI the engine cannot parse. Never
	// retried.
	ErrMagnetParse = errors.New("malformed magnet uri")
	// ErrSessionStart marks a network stack that could not bind its
	// listening interfaces. Fatal for the attempt.
	ErrSessionStart = errors.New("cannot start torrent session")
	// ErrMetadataTimeout is returned after all metadata polling rounds
	// elapsed without the swarm delivering the info dictionary.
	ErrMetadataTimeout = errors.New("metadata retrieval timed out")
	// ErrPeerStatsTimeout is returned when the swarm never reported peer
	// counts within the budget. Terminal, not retried.
	ErrPeerStatsTimeout = errors.New("peer stats retrieval timed out")
	// ErrSerialization marks torrent metadata the bencode codec refused.
	ErrSerialization = errors.New("torrent serialization failed")
)

// ConversionError wraps whatever broke one magnet conversion attempt. The
// orchestrator produces exactly one per failed attempt.
type ConversionError struct {
	Magnet string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting %q: %s", e.Magnet, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }
