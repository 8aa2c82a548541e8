package http2

import "fmt"

// LocalFlowController accounts for the inbound (receive) flow-control
// windows: how many DATA payload bytes the peer may still send, and how
// many received bytes the application has not yet released back.
//
// All methods tolerate a nil stream, in which case only the connection
// window is touched. The decoder relies on this for frames it must charge
// to the window even though the stream they reference is unknown.
type LocalFlowController interface {
	// ReceiveFlowControlledFrame charges dataLen+padding bytes of a DATA
	// frame against the connection window and, when stream is non-nil, the
	// stream window. The bytes become "unconsumed" until released via
	// ConsumeBytes.
	ReceiveFlowControlledFrame(stream *Stream, dataLen int, padding uint32, endOfStream bool) error

	// ConsumeBytes releases n previously received bytes back to the
	// windows. It reports whether the release has freed enough space that
	// a WINDOW_UPDATE is now warranted. n <= 0 is a no-op.
	ConsumeBytes(stream *Stream, n int) (bool, error)

	// UnconsumedBytes returns the bytes received for stream but not yet
	// released. Zero for a nil stream.
	UnconsumedBytes(stream *Stream) int

	// SetInitialWindowSize changes the initial window size applied to
	// streams, adjusting existing stream windows by the delta
	// (RFC 7540 Section 6.9.2).
	SetInitialWindowSize(n uint32) error

	// InitialWindowSize returns the current initial window size.
	InitialWindowSize() uint32
}

// RemoteFlowController accounts for the outbound (send) flow-control
// windows: how many bytes this endpoint may still send. The decoder only
// grows it when WINDOW_UPDATE frames arrive.
type RemoteFlowController interface {
	// IncrementWindowSize grows the send window for stream (or the
	// connection when stream is nil) by increment.
	IncrementWindowSize(stream *Stream, increment uint32) error
}

// inboundWindow is the per-stream slice of inbound accounting.
type inboundWindow struct {
	window     int64
	unconsumed int
}

// InboundFlowController is the default LocalFlowController. It keeps one
// connection-level window plus a window and unconsumed-byte ledger per
// stream. It belongs to a single connection timeline; no locking.
type InboundFlowController struct {
	initialWindowSize uint32
	connWindow        int64
	connUnconsumed    int

	// released accumulates bytes returned via ConsumeBytes; once it
	// crosses updateThreshold, ConsumeBytes reports that a WINDOW_UPDATE
	// is warranted and the counter resets.
	released        int
	updateThreshold int

	streams map[uint32]*inboundWindow
}

// NewInboundFlowController creates an InboundFlowController with the given
// initial window size for both the connection and new streams.
func NewInboundFlowController(initialWindowSize uint32) *InboundFlowController {
	if initialWindowSize > MaxWindowSize {
		initialWindowSize = MaxWindowSize
	}
	threshold := int(initialWindowSize / 2)
	if threshold == 0 && initialWindowSize > 0 {
		threshold = 1
	}
	return &InboundFlowController{
		initialWindowSize: initialWindowSize,
		connWindow:        int64(initialWindowSize),
		updateThreshold:   threshold,
		streams:           make(map[uint32]*inboundWindow),
	}
}

func (f *InboundFlowController) window(stream *Stream) *inboundWindow {
	w := f.streams[stream.ID()]
	if w == nil {
		w = &inboundWindow{window: int64(f.initialWindowSize)}
		f.streams[stream.ID()] = w
	}
	return w
}

// ReceiveFlowControlledFrame implements LocalFlowController.
func (f *InboundFlowController) ReceiveFlowControlledFrame(stream *Stream, dataLen int, padding uint32, endOfStream bool) error {
	n := dataLen + int(padding)
	if n < 0 {
		return NewConnectionError(ErrCodeInternalError, fmt.Sprintf("negative flow-controlled frame length %d", n))
	}

	f.connWindow -= int64(n)
	if f.connWindow < 0 {
		return NewConnectionError(ErrCodeFlowControlError,
			fmt.Sprintf("connection flow control window exceeded by %d bytes", -f.connWindow))
	}
	f.connUnconsumed += n

	if stream != nil {
		w := f.window(stream)
		w.window -= int64(n)
		if w.window < 0 {
			return NewStreamError(stream.ID(), ErrCodeFlowControlError,
				fmt.Sprintf("stream %d flow control window exceeded by %d bytes", stream.ID(), -w.window))
		}
		w.unconsumed += n
	}
	return nil
}

// ConsumeBytes implements LocalFlowController.
func (f *InboundFlowController) ConsumeBytes(stream *Stream, n int) (bool, error) {
	if n < 0 {
		return false, NewConnectionError(ErrCodeInternalError, fmt.Sprintf("cannot consume negative byte count %d", n))
	}
	if n == 0 {
		return false, nil
	}

	if stream != nil {
		w := f.window(stream)
		if n > w.unconsumed {
			n = w.unconsumed
		}
		w.unconsumed -= n
		w.window += int64(n)
		if w.unconsumed == 0 && stream.State() == StreamStateClosed {
			delete(f.streams, stream.ID())
		}
	}
	if n > f.connUnconsumed {
		n = f.connUnconsumed
	}
	f.connUnconsumed -= n
	f.connWindow += int64(n)

	f.released += n
	if f.released >= f.updateThreshold && f.updateThreshold > 0 {
		f.released = 0
		return true, nil
	}
	return false, nil
}

// UnconsumedBytes implements LocalFlowController.
func (f *InboundFlowController) UnconsumedBytes(stream *Stream) int {
	if stream == nil {
		return 0
	}
	if w := f.streams[stream.ID()]; w != nil {
		return w.unconsumed
	}
	return 0
}

// SetInitialWindowSize implements LocalFlowController.
func (f *InboundFlowController) SetInitialWindowSize(n uint32) error {
	if n > MaxWindowSize {
		return NewConnectionError(ErrCodeFlowControlError,
			fmt.Sprintf("invalid initial window size %d, maximum is %d", n, MaxWindowSize))
	}
	delta := int64(n) - int64(f.initialWindowSize)
	f.initialWindowSize = n
	for _, w := range f.streams {
		w.window += delta
	}
	return nil
}

// InitialWindowSize implements LocalFlowController.
func (f *InboundFlowController) InitialWindowSize() uint32 { return f.initialWindowSize }

// ConnectionWindow returns the remaining connection-level receive window.
func (f *InboundFlowController) ConnectionWindow() int64 { return f.connWindow }

// OutboundFlowController is the default RemoteFlowController. It tracks the
// send windows the decoder grows on WINDOW_UPDATE. Same single-timeline
// ownership as InboundFlowController.
type OutboundFlowController struct {
	initialWindowSize uint32
	connWindow        int64
	streams           map[uint32]int64
}

// NewOutboundFlowController creates an OutboundFlowController with the
// given initial window size.
func NewOutboundFlowController(initialWindowSize uint32) *OutboundFlowController {
	if initialWindowSize > MaxWindowSize {
		initialWindowSize = MaxWindowSize
	}
	return &OutboundFlowController{
		initialWindowSize: initialWindowSize,
		connWindow:        int64(initialWindowSize),
		streams:           make(map[uint32]int64),
	}
}

// IncrementWindowSize implements RemoteFlowController.
func (f *OutboundFlowController) IncrementWindowSize(stream *Stream, increment uint32) error {
	if stream == nil {
		// Connection-level update. A zero increment is a no-op here
		// (RFC 7540 Section 6.9).
		if increment == 0 {
			return nil
		}
		next := f.connWindow + int64(increment)
		if next > MaxWindowSize {
			return NewConnectionError(ErrCodeFlowControlError,
				fmt.Sprintf("connection send window would overflow: %d + %d > %d", f.connWindow, increment, int64(MaxWindowSize)))
		}
		f.connWindow = next
		return nil
	}

	if increment == 0 {
		return NewStreamError(stream.ID(), ErrCodeProtocolError, "WINDOW_UPDATE increment cannot be 0 for a stream")
	}
	window, ok := f.streams[stream.ID()]
	if !ok {
		window = int64(f.initialWindowSize)
	}
	next := window + int64(increment)
	if next > MaxWindowSize {
		return NewStreamError(stream.ID(), ErrCodeFlowControlError,
			fmt.Sprintf("stream %d send window would overflow: %d + %d > %d", stream.ID(), window, increment, int64(MaxWindowSize)))
	}
	f.streams[stream.ID()] = next
	return nil
}

// SendWindow returns the tracked send window for a stream, or the
// connection window when stream is nil.
func (f *OutboundFlowController) SendWindow(stream *Stream) int64 {
	if stream == nil {
		return f.connWindow
	}
	if w, ok := f.streams[stream.ID()]; ok {
		return w
	}
	return int64(f.initialWindowSize)
}
