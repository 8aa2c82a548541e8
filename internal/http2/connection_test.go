package http2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/h2core/internal/logger"
)

func newServerConnection() *Connection {
	return NewConnection(true, logger.NewNopLogger())
}

func TestEndpointStreamIDParity(t *testing.T) {
	c := newServerConnection()

	assert.True(t, c.Remote().IsValidStreamID(1))
	assert.True(t, c.Remote().IsValidStreamID(3))
	assert.False(t, c.Remote().IsValidStreamID(2))
	assert.False(t, c.Remote().IsValidStreamID(0))

	assert.True(t, c.Local().IsValidStreamID(2))
	assert.False(t, c.Local().IsValidStreamID(1))
	assert.False(t, c.Local().IsValidStreamID(0))
}

func TestEndpointCreateStream(t *testing.T) {
	c := newServerConnection()

	s, err := c.Remote().CreateStream(1, false)
	require.NoError(t, err)
	assert.Equal(t, StreamStateOpen, s.State())
	assert.Equal(t, uint32(1), c.Remote().LastCreatedStreamID())
	assert.Equal(t, uint32(1), c.Remote().NumActiveStreams())
	assert.Same(t, s, c.Stream(1))

	s, err = c.Remote().CreateStream(3, true)
	require.NoError(t, err)
	assert.Equal(t, StreamStateHalfClosedRemote, s.State())
}

func TestEndpointCreateStreamReusedID(t *testing.T) {
	c := newServerConnection()
	_, err := c.Remote().CreateStream(5, false)
	require.NoError(t, err)

	_, err = c.Remote().CreateStream(3, false)
	var cse *closedStreamCreationError
	require.ErrorAs(t, err, &cse)
	assert.Equal(t, uint32(3), cse.StreamID)
}

func TestEndpointCreateStreamOverLimit(t *testing.T) {
	c := newServerConnection()
	c.Remote().SetMaxActiveStreams(1)
	_, err := c.Remote().CreateStream(1, false)
	require.NoError(t, err)

	_, err = c.Remote().CreateStream(3, false)
	var se *StreamError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeRefusedStream, se.Code)
	assert.Equal(t, uint32(3), se.StreamID)
}

func TestEndpointIdleStreamActivation(t *testing.T) {
	c := newServerConnection()

	s, err := c.Remote().createIdleStream(1)
	require.NoError(t, err)
	assert.Equal(t, StreamStateIdle, s.State())
	assert.Equal(t, uint32(0), c.Remote().NumActiveStreams())
	assert.Equal(t, uint32(1), c.Remote().LastCreatedStreamID())

	require.NoError(t, c.Remote().activateStream(s, false))
	assert.Equal(t, StreamStateOpen, s.State())
	assert.Equal(t, uint32(1), c.Remote().NumActiveStreams())
}

func TestEndpointReservePushStream(t *testing.T) {
	c := NewConnection(false, logger.NewNopLogger())
	parent, err := c.Local().CreateStream(1, false)
	require.NoError(t, err)

	s, err := c.Remote().ReservePushStream(2, parent)
	require.NoError(t, err)
	assert.Equal(t, StreamStateReservedRemote, s.State())
	parentID, _, ok := c.PriorityTree().Dependencies(2)
	require.True(t, ok)
	assert.Equal(t, uint32(1), parentID)

	// A closed parent cannot promise anything.
	parent.close()
	_, err = c.Remote().ReservePushStream(4, parent)
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeProtocolError, ce.Code)
}

func TestConnectionStreamMayHaveExisted(t *testing.T) {
	c := newServerConnection()
	_, err := c.Remote().CreateStream(3, false)
	require.NoError(t, err)

	assert.True(t, c.StreamMayHaveExisted(1))
	assert.True(t, c.StreamMayHaveExisted(3))
	assert.False(t, c.StreamMayHaveExisted(5))
	assert.False(t, c.StreamMayHaveExisted(2)) // server side never created it
	assert.False(t, c.StreamMayHaveExisted(0))
}

func TestConnectionRemoveStream(t *testing.T) {
	c := newServerConnection()
	s, err := c.Remote().CreateStream(1, false)
	require.NoError(t, err)

	s.close()
	c.removeStream(s)
	assert.Nil(t, c.Stream(1))
	assert.Equal(t, uint32(0), c.Remote().NumActiveStreams())
	assert.True(t, c.streamWasClosed(1))

	// Removing twice is harmless.
	c.removeStream(s)
	assert.Equal(t, uint32(0), c.Remote().NumActiveStreams())
}

func TestConnectionGoAwaySentMonotonicity(t *testing.T) {
	c := newServerConnection()

	require.NoError(t, c.RecordGoAwaySent(7, ErrCodeNoError, nil))
	require.True(t, c.GoAwaySent())
	assert.Equal(t, uint32(7), c.Remote().LastStreamKnownByPeer())

	require.NoError(t, c.RecordGoAwaySent(3, ErrCodeNoError, nil))

	err := c.RecordGoAwaySent(5, ErrCodeNoError, nil)
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeProtocolError, ce.Code)
	assert.Equal(t, uint32(3), c.Remote().LastStreamKnownByPeer())
}

func TestConnectionGoAwayReceived(t *testing.T) {
	c := newServerConnection()
	require.False(t, c.GoAwayReceived())

	c.RecordGoAwayReceived(9, ErrCodeInternalError, []byte("oops"))
	require.True(t, c.GoAwayReceived())
	assert.Equal(t, uint32(9), c.Local().LastStreamKnownByPeer())
	lastStreamID, code, debug := c.GoAwayReceivedInfo()
	assert.Equal(t, uint32(9), lastStreamID)
	assert.Equal(t, ErrCodeInternalError, code)
	assert.Equal(t, []byte("oops"), debug)
}
