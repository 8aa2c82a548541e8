package http2

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamErrorFormatting(t *testing.T) {
	err := NewStreamError(3, ErrCodeStreamClosed, "too late")
	assert.Equal(t, "stream error on stream 3: too late (code STREAM_CLOSED, 5)", err.Error())

	cause := errors.New("boom")
	withCause := NewStreamErrorWithCause(3, ErrCodeInternalError, "handler failed", cause)
	assert.ErrorIs(t, withCause, cause)
	assert.Contains(t, withCause.Error(), "boom")
}

func TestConnectionErrorFormatting(t *testing.T) {
	err := NewConnectionError(ErrCodeProtocolError, "bad preface")
	assert.Equal(t, "connection error: bad preface (last_stream_id 0, code PROTOCOL_ERROR, 1)", err.Error())

	cause := errors.New("inner")
	withCause := NewConnectionErrorWithCause(ErrCodeInternalError, "wrapped", cause)
	assert.ErrorIs(t, withCause, cause)
}

func TestErrorsUnwrapThroughWrapping(t *testing.T) {
	inner := NewStreamError(1, ErrCodeStreamClosed, "closed")
	wrapped := fmt.Errorf("while dispatching: %w", inner)

	var se *StreamError
	require.ErrorAs(t, wrapped, &se)
	assert.Equal(t, uint32(1), se.StreamID)
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "NO_ERROR", ErrCodeNoError.String())
	assert.Equal(t, "PROTOCOL_ERROR", ErrCodeProtocolError.String())
	assert.Equal(t, "FLOW_CONTROL_ERROR", ErrCodeFlowControlError.String())
	assert.Equal(t, "HTTP_1_1_REQUIRED", ErrCodeHTTP11Required.String())
	assert.Equal(t, "UNKNOWN_ERROR_CODE_200", ErrorCode(200).String())
}
