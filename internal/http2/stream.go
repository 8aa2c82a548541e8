package http2

import "fmt"

// StreamState represents the state of an HTTP/2 stream, as defined in
// RFC 7540, Section 5.1.
type StreamState uint8

const (
	// StreamStateIdle indicates that the stream is not yet created or has been closed.
	// All streams start in the "idle" state.
	StreamStateIdle StreamState = iota

	// StreamStateReservedLocal indicates that the stream has been reserved by sending a PUSH_PROMISE frame.
	StreamStateReservedLocal

	// StreamStateReservedRemote indicates that the stream has been reserved by receiving a PUSH_PROMISE frame.
	StreamStateReservedRemote

	// StreamStateOpen indicates that the stream is active and can be used by both peers.
	StreamStateOpen

	// StreamStateHalfClosedLocal indicates that this endpoint has sent END_STREAM;
	// it can no longer send DATA or HEADERS frames, but can receive.
	StreamStateHalfClosedLocal

	// StreamStateHalfClosedRemote indicates that the remote peer has sent END_STREAM;
	// this endpoint can no longer receive DATA or HEADERS frames, but can send.
	StreamStateHalfClosedRemote

	// StreamStateClosed indicates that the stream is terminated.
	StreamStateClosed
)

// String returns a string representation of the StreamState.
func (s StreamState) String() string {
	switch s {
	case StreamStateIdle:
		return "idle"
	case StreamStateReservedLocal:
		return "reserved (local)"
	case StreamStateReservedRemote:
		return "reserved (remote)"
	case StreamStateOpen:
		return "open"
	case StreamStateHalfClosedLocal:
		return "half-closed (local)"
	case StreamStateHalfClosedRemote:
		return "half-closed (remote)"
	case StreamStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream is the decoder's view of a single HTTP/2 stream: its identity, its
// lifecycle state, and the reset-sent flag the dispatcher consults when
// deciding whether inbound frames for the stream are stale. All request and
// response plumbing lives with the application listener, not here.
//
// Streams belong to a single connection and share its sequential processing
// timeline; no locking.
type Stream struct {
	id        uint32
	state     StreamState
	resetSent bool

	// activated records whether the stream counts against its endpoint's
	// active-stream cap. Idle placeholders created by PRIORITY frames do
	// not until a HEADERS frame opens them.
	activated bool

	// Priority metadata recorded from HEADERS/PRIORITY frames. The decoder
	// records and forwards priority; it does not schedule.
	priorityWeight    uint8
	priorityParentID  uint32
	priorityExclusive bool
}

// ID returns the stream identifier.
func (s *Stream) ID() uint32 { return s.id }

// State returns the current stream state.
func (s *Stream) State() StreamState { return s.state }

// ResetSent reports whether a RST_STREAM has been sent for this stream.
// Frames arriving for such a stream are dropped without error.
func (s *Stream) ResetSent() bool { return s.resetSent }

// MarkResetSent records that a RST_STREAM was sent for this stream.
func (s *Stream) MarkResetSent() { s.resetSent = true }

// Priority returns the last recorded priority metadata for this stream.
func (s *Stream) Priority() (parentID uint32, weight uint8, exclusive bool) {
	return s.priorityParentID, s.priorityWeight, s.priorityExclusive
}

func (s *Stream) setPriority(parentID uint32, weight uint8, exclusive bool) {
	s.priorityParentID = parentID
	s.priorityWeight = weight
	s.priorityExclusive = exclusive
}

// open activates the stream on receipt of a HEADERS frame. From idle it
// moves to open, or directly to half-closed (remote) when the frame that
// creates it already ends the peer's side (trailer-only short requests).
// From reserved (remote) it moves to half-closed (local): the local side
// never sends on a pushed stream.
func (s *Stream) open(halfClosedRemote bool) error {
	switch s.state {
	case StreamStateIdle:
		if halfClosedRemote {
			s.state = StreamStateHalfClosedRemote
		} else {
			s.state = StreamStateOpen
		}
		return nil
	case StreamStateReservedRemote:
		s.state = StreamStateHalfClosedLocal
		return nil
	default:
		return NewConnectionError(ErrCodeProtocolError,
			fmt.Sprintf("cannot open stream %d in state %s", s.id, s.state))
	}
}

// closeRemoteSide records that the peer has finished sending on this stream.
func (s *Stream) closeRemoteSide() {
	switch s.state {
	case StreamStateOpen:
		s.state = StreamStateHalfClosedRemote
	case StreamStateHalfClosedLocal, StreamStateReservedRemote:
		s.state = StreamStateClosed
	case StreamStateHalfClosedRemote, StreamStateClosed:
		// Already closed from the remote side.
	}
}

// close terminates the stream in both directions.
func (s *Stream) close() {
	s.state = StreamStateClosed
}
