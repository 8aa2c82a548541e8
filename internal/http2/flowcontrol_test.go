package http2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundFlowControllerReceiveAndConsume(t *testing.T) {
	f := NewInboundFlowController(DefaultInitialWindowSize)
	stream := &Stream{id: 1, state: StreamStateOpen}

	require.NoError(t, f.ReceiveFlowControlledFrame(stream, 100, 20, false))
	assert.Equal(t, 120, f.UnconsumedBytes(stream))
	assert.Equal(t, int64(DefaultInitialWindowSize)-120, f.ConnectionWindow())

	_, err := f.ConsumeBytes(stream, 120)
	require.NoError(t, err)
	assert.Equal(t, 0, f.UnconsumedBytes(stream))
	assert.Equal(t, int64(DefaultInitialWindowSize), f.ConnectionWindow())
}

func TestInboundFlowControllerNilStreamTouchesConnectionOnly(t *testing.T) {
	f := NewInboundFlowController(DefaultInitialWindowSize)

	require.NoError(t, f.ReceiveFlowControlledFrame(nil, 50, 0, false))
	assert.Equal(t, int64(DefaultInitialWindowSize)-50, f.ConnectionWindow())
	assert.Equal(t, 0, f.UnconsumedBytes(nil))

	_, err := f.ConsumeBytes(nil, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultInitialWindowSize), f.ConnectionWindow())
}

func TestInboundFlowControllerConnectionWindowOverrun(t *testing.T) {
	f := NewInboundFlowController(100)
	stream := &Stream{id: 1, state: StreamStateOpen}

	err := f.ReceiveFlowControlledFrame(stream, 101, 0, false)
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeFlowControlError, ce.Code)
}

func TestInboundFlowControllerStreamWindowOverrun(t *testing.T) {
	f := NewInboundFlowController(100)
	stream := &Stream{id: 1, state: StreamStateOpen}

	require.NoError(t, f.ReceiveFlowControlledFrame(stream, 60, 0, false))
	_, err := f.ConsumeBytes(stream, 60)
	require.NoError(t, err)

	// The connection window recovered but the stream window check still
	// applies per stream.
	require.NoError(t, f.ReceiveFlowControlledFrame(stream, 60, 0, false))
	_, err = f.ConsumeBytes(stream, 60)
	require.NoError(t, err)

	require.NoError(t, f.SetInitialWindowSize(50))
	err = f.ReceiveFlowControlledFrame(stream, 60, 0, false)
	var se *StreamError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, uint32(1), se.StreamID)
	assert.Equal(t, ErrCodeFlowControlError, se.Code)
}

func TestInboundFlowControllerConsumeClamps(t *testing.T) {
	f := NewInboundFlowController(DefaultInitialWindowSize)
	stream := &Stream{id: 1, state: StreamStateOpen}

	require.NoError(t, f.ReceiveFlowControlledFrame(stream, 10, 0, false))
	_, err := f.ConsumeBytes(stream, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, f.UnconsumedBytes(stream))
	assert.Equal(t, int64(DefaultInitialWindowSize), f.ConnectionWindow())

	_, err = f.ConsumeBytes(stream, -1)
	require.Error(t, err)
}

func TestInboundFlowControllerWindowUpdateThreshold(t *testing.T) {
	f := NewInboundFlowController(1000) // threshold 500
	stream := &Stream{id: 1, state: StreamStateOpen}

	require.NoError(t, f.ReceiveFlowControlledFrame(stream, 400, 0, false))
	warranted, err := f.ConsumeBytes(stream, 400)
	require.NoError(t, err)
	assert.False(t, warranted)

	require.NoError(t, f.ReceiveFlowControlledFrame(stream, 200, 0, false))
	warranted, err = f.ConsumeBytes(stream, 200)
	require.NoError(t, err)
	assert.True(t, warranted, "crossing half the window warrants a WINDOW_UPDATE")
}

func TestInboundFlowControllerInitialWindowSizeDelta(t *testing.T) {
	f := NewInboundFlowController(1000)
	stream := &Stream{id: 1, state: StreamStateOpen}
	require.NoError(t, f.ReceiveFlowControlledFrame(stream, 600, 0, false))

	// Shrinking the initial size applies the delta to live stream windows,
	// which may drive them negative without that being a fault in itself.
	require.NoError(t, f.SetInitialWindowSize(500))
	assert.Equal(t, uint32(500), f.InitialWindowSize())

	err := f.SetInitialWindowSize(MaxWindowSize + 1)
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeFlowControlError, ce.Code)
}

func TestInboundFlowControllerPrunesClosedStreams(t *testing.T) {
	f := NewInboundFlowController(DefaultInitialWindowSize)
	stream := &Stream{id: 1, state: StreamStateOpen}

	require.NoError(t, f.ReceiveFlowControlledFrame(stream, 10, 0, false))
	stream.close()
	_, err := f.ConsumeBytes(stream, 10)
	require.NoError(t, err)
	_, tracked := f.streams[1]
	assert.False(t, tracked)
}

func TestOutboundFlowControllerIncrement(t *testing.T) {
	f := NewOutboundFlowController(DefaultInitialWindowSize)
	stream := &Stream{id: 1, state: StreamStateOpen}

	require.NoError(t, f.IncrementWindowSize(stream, 500))
	assert.Equal(t, int64(DefaultInitialWindowSize)+500, f.SendWindow(stream))

	require.NoError(t, f.IncrementWindowSize(nil, 500))
	assert.Equal(t, int64(DefaultInitialWindowSize)+500, f.SendWindow(nil))
}

func TestOutboundFlowControllerZeroIncrement(t *testing.T) {
	f := NewOutboundFlowController(DefaultInitialWindowSize)
	stream := &Stream{id: 1, state: StreamStateOpen}

	// Zero is tolerated at connection level but not for a stream.
	require.NoError(t, f.IncrementWindowSize(nil, 0))
	err := f.IncrementWindowSize(stream, 0)
	var se *StreamError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeProtocolError, se.Code)
}

func TestOutboundFlowControllerOverflow(t *testing.T) {
	f := NewOutboundFlowController(DefaultInitialWindowSize)
	stream := &Stream{id: 1, state: StreamStateOpen}

	err := f.IncrementWindowSize(stream, MaxWindowSize)
	var se *StreamError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeFlowControlError, se.Code)

	err = f.IncrementWindowSize(nil, MaxWindowSize)
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeFlowControlError, ce.Code)
}
