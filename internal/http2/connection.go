package http2

import (
	"fmt"

	"example.com/h2core/internal/logger"
)

// Endpoint is one direction's view of the connection: the stream ids it may
// create, how many of its streams may be active, whether it may be pushed
// to, and the GOAWAY bookkeeping for frames travelling towards it.
type Endpoint struct {
	conn *Connection

	// server is true when this endpoint is the server side of the
	// connection. Servers create even stream ids, clients odd ones.
	server bool

	// lastCreatedStreamID is the highest stream id this endpoint has
	// created. Ids at or below it that are valid for this endpoint "may
	// have existed" even if the stream is gone from the table.
	lastCreatedStreamID uint32

	// lastStreamKnownByPeer is the last-stream-id carried by the most
	// recent GOAWAY travelling towards this endpoint. Meaningful only
	// when the corresponding goAwaySent/goAwayReceived flag is set on the
	// connection.
	lastStreamKnownByPeer uint32

	maxActiveStreams uint32
	numActiveStreams uint32
	allowPush        bool
}

// IsServer reports whether this endpoint is the server side.
func (e *Endpoint) IsServer() bool { return e.server }

// IsValidStreamID reports whether id is a stream id this endpoint could
// legitimately create: non-zero with the parity RFC 7540 Section 5.1.1
// assigns to the endpoint's role.
func (e *Endpoint) IsValidStreamID(id uint32) bool {
	if id == 0 {
		return false
	}
	if e.server {
		return id%2 == 0
	}
	return id%2 == 1
}

// mayHaveCreatedStream reports whether id identifies a stream this endpoint
// created at some point, even if the stream has since been closed and
// forgotten.
func (e *Endpoint) mayHaveCreatedStream(id uint32) bool {
	return e.IsValidStreamID(id) && id <= e.lastCreatedStreamID
}

// LastCreatedStreamID returns the highest stream id this endpoint has created.
func (e *Endpoint) LastCreatedStreamID() uint32 { return e.lastCreatedStreamID }

// LastStreamKnownByPeer returns the last-stream-id from the most recent
// GOAWAY travelling towards this endpoint.
func (e *Endpoint) LastStreamKnownByPeer() uint32 { return e.lastStreamKnownByPeer }

// MaxActiveStreams returns the cap on concurrently active streams created
// by this endpoint.
func (e *Endpoint) MaxActiveStreams() uint32 { return e.maxActiveStreams }

// SetMaxActiveStreams updates the cap on concurrently active streams.
func (e *Endpoint) SetMaxActiveStreams(v uint32) { e.maxActiveStreams = v }

// AllowPush reports whether this endpoint accepts PUSH_PROMISE frames.
func (e *Endpoint) AllowPush() bool { return e.allowPush }

// SetAllowPush updates whether this endpoint accepts PUSH_PROMISE frames.
func (e *Endpoint) SetAllowPush(v bool) { e.allowPush = v }

// NumActiveStreams returns the number of this endpoint's streams currently
// in the table.
func (e *Endpoint) NumActiveStreams() uint32 { return e.numActiveStreams }

// CreateStream creates a stream with the given id on this endpoint and
// activates it. halfClosedRemote creates the stream directly in the
// half-closed (remote) state (a HEADERS frame that both creates the stream
// and ends the peer's side).
//
// An id this endpoint already used yields a closedStreamCreationError; an
// id the endpoint could never use is a connection error; exceeding the
// active-stream cap refuses the stream without harming the connection.
func (e *Endpoint) CreateStream(id uint32, halfClosedRemote bool) (*Stream, error) {
	if !e.IsValidStreamID(id) {
		return nil, NewConnectionError(ErrCodeProtocolError,
			fmt.Sprintf("request stream %d is not correct for %s connection", id, e.roleName()))
	}
	if id <= e.lastCreatedStreamID {
		return nil, &closedStreamCreationError{StreamID: id}
	}
	if e.numActiveStreams+1 > e.maxActiveStreams {
		return nil, NewStreamError(id, ErrCodeRefusedStream,
			fmt.Sprintf("maximum active streams violated for endpoint: %d", e.maxActiveStreams))
	}

	stream := &Stream{id: id, state: StreamStateIdle, priorityWeight: DefaultPriorityWeight}
	if err := stream.open(halfClosedRemote); err != nil {
		return nil, err
	}
	stream.activated = true
	e.lastCreatedStreamID = id
	e.numActiveStreams++
	e.conn.streams[id] = stream
	return stream, nil
}

// createIdleStream registers id in the idle state without counting it
// against the active-stream cap. A PRIORITY frame referencing an unknown
// stream creates one of these (RFC 7540 Section 5.3.4).
func (e *Endpoint) createIdleStream(id uint32) (*Stream, error) {
	if !e.IsValidStreamID(id) {
		return nil, NewConnectionError(ErrCodeProtocolError,
			fmt.Sprintf("request stream %d is not correct for %s connection", id, e.roleName()))
	}
	if id <= e.lastCreatedStreamID {
		return nil, &closedStreamCreationError{StreamID: id}
	}
	stream := &Stream{id: id, state: StreamStateIdle, priorityWeight: DefaultPriorityWeight}
	e.lastCreatedStreamID = id
	e.conn.streams[id] = stream
	return stream, nil
}

// activateStream opens a previously idle stream, counting it against the
// active-stream cap from this point on.
func (e *Endpoint) activateStream(s *Stream, halfClosedRemote bool) error {
	if e.numActiveStreams+1 > e.maxActiveStreams {
		return NewStreamError(s.ID(), ErrCodeRefusedStream,
			fmt.Sprintf("maximum active streams violated for endpoint: %d", e.maxActiveStreams))
	}
	if err := s.open(halfClosedRemote); err != nil {
		return err
	}
	s.activated = true
	e.numActiveStreams++
	return nil
}

// ReservePushStream reserves a promised stream id on this endpoint as a
// child of parent, in the reserved (remote) state. The parent's priority is
// inherited as the promised stream's initial dependency.
func (e *Endpoint) ReservePushStream(id uint32, parent *Stream) (*Stream, error) {
	if parent == nil {
		return nil, NewConnectionError(ErrCodeProtocolError, "parent stream missing")
	}
	switch parent.State() {
	case StreamStateClosed, StreamStateIdle:
		return nil, NewConnectionError(ErrCodeProtocolError,
			fmt.Sprintf("stream %d in unexpected state: %s", parent.ID(), parent.State()))
	}
	if !e.IsValidStreamID(id) {
		return nil, NewConnectionError(ErrCodeProtocolError,
			fmt.Sprintf("request stream %d is not correct for %s connection", id, e.roleName()))
	}
	if id <= e.lastCreatedStreamID {
		return nil, &closedStreamCreationError{StreamID: id}
	}

	stream := &Stream{
		id:               id,
		state:            StreamStateReservedRemote,
		activated:        true,
		priorityWeight:   DefaultPriorityWeight,
		priorityParentID: parent.ID(),
	}
	e.lastCreatedStreamID = id
	e.numActiveStreams++
	e.conn.streams[id] = stream
	e.conn.priorityTree.reserveStream(id, parent.ID())
	return stream, nil
}

func (e *Endpoint) roleName() string {
	if e.server {
		return "server"
	}
	return "client"
}

// goAwayState records one direction's GOAWAY bookkeeping.
type goAwayState struct {
	fired        bool
	lastStreamID uint32
	errorCode    ErrorCode
	debugData    []byte
}

// Connection owns the stream table, the two endpoint views, the priority
// tree and the GOAWAY bookkeeping for one HTTP/2 connection. All state is
// owned by the connection's single frame-processing timeline; concurrent
// connections each get their own instance.
type Connection struct {
	server  bool
	streams map[uint32]*Stream
	local   *Endpoint
	remote  *Endpoint

	priorityTree *PriorityTree

	goAwaySentState     goAwayState
	goAwayReceivedState goAwayState

	log *logger.Logger
}

// NewConnection creates the bookkeeping for one connection. server selects
// which side of the connection this endpoint is.
func NewConnection(server bool, log *logger.Logger) *Connection {
	if log == nil {
		log = logger.NewNopLogger()
	}
	c := &Connection{
		server:  server,
		streams: make(map[uint32]*Stream),
		log:     log,
	}
	c.local = &Endpoint{conn: c, server: server, maxActiveStreams: ^uint32(0), allowPush: !server}
	c.remote = &Endpoint{conn: c, server: !server, maxActiveStreams: ^uint32(0), allowPush: server}
	c.priorityTree = NewPriorityTree(c.streamWasClosed)
	return c
}

// IsServer reports whether the local endpoint is the server side.
func (c *Connection) IsServer() bool { return c.server }

// Local returns the local endpoint view.
func (c *Connection) Local() *Endpoint { return c.local }

// Remote returns the remote endpoint view.
func (c *Connection) Remote() *Endpoint { return c.remote }

// PriorityTree returns the connection's priority dependency tree.
func (c *Connection) PriorityTree() *PriorityTree { return c.priorityTree }

// Stream returns the stream with the given id, or nil if the table has no
// such stream.
func (c *Connection) Stream(id uint32) *Stream {
	return c.streams[id]
}

// NumActiveStreams returns the number of streams currently in the table.
func (c *Connection) NumActiveStreams() int { return len(c.streams) }

// StreamMayHaveExisted reports whether id identifies a stream that either
// endpoint could have created at some point. Frames referencing such ids
// may be stale leftovers of a closed stream rather than protocol
// violations.
func (c *Connection) StreamMayHaveExisted(id uint32) bool {
	return c.local.mayHaveCreatedStream(id) || c.remote.mayHaveCreatedStream(id)
}

// streamWasClosed reports whether id belonged to a stream that existed and
// has since been removed from the table.
func (c *Connection) streamWasClosed(id uint32) bool {
	return c.StreamMayHaveExisted(id) && c.streams[id] == nil
}

// removeStream drops a closed stream from the table and the priority tree.
func (c *Connection) removeStream(s *Stream) {
	if _, ok := c.streams[s.ID()]; !ok {
		return
	}
	delete(c.streams, s.ID())
	endpoint := c.local
	if c.remote.IsValidStreamID(s.ID()) {
		endpoint = c.remote
	}
	if s.activated && endpoint.numActiveStreams > 0 {
		endpoint.numActiveStreams--
	}
	c.priorityTree.RemoveStream(s.ID())
}

// GoAwaySent reports whether the local endpoint has sent GOAWAY.
func (c *Connection) GoAwaySent() bool { return c.goAwaySentState.fired }

// GoAwayReceived reports whether a GOAWAY has been received from the peer.
func (c *Connection) GoAwayReceived() bool { return c.goAwayReceivedState.fired }

// RecordGoAwaySent records a locally-sent GOAWAY. The last-stream-id of a
// subsequent GOAWAY must never increase (RFC 7540 Section 6.8).
func (c *Connection) RecordGoAwaySent(lastStreamID uint32, code ErrorCode, debugData []byte) error {
	if c.goAwaySentState.fired && lastStreamID > c.remote.lastStreamKnownByPeer {
		return NewConnectionError(ErrCodeProtocolError,
			fmt.Sprintf("last stream identifier must not increase between sending multiple GOAWAY frames (was %d, is %d)",
				c.remote.lastStreamKnownByPeer, lastStreamID))
	}
	c.goAwaySentState = goAwayState{fired: true, lastStreamID: lastStreamID, errorCode: code, debugData: debugData}
	c.remote.lastStreamKnownByPeer = lastStreamID
	return nil
}

// RecordGoAwayReceived records a GOAWAY received from the peer.
func (c *Connection) RecordGoAwayReceived(lastStreamID uint32, code ErrorCode, debugData []byte) {
	c.goAwayReceivedState = goAwayState{fired: true, lastStreamID: lastStreamID, errorCode: code, debugData: debugData}
	c.local.lastStreamKnownByPeer = lastStreamID
}

// GoAwayReceivedInfo returns the details of the last GOAWAY received from
// the peer. Valid only when GoAwayReceived reports true.
func (c *Connection) GoAwayReceivedInfo() (lastStreamID uint32, code ErrorCode, debugData []byte) {
	st := c.goAwayReceivedState
	return st.lastStreamID, st.errorCode, st.debugData
}
