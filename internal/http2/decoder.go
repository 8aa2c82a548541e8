package http2

import (
	"errors"
	"fmt"

	"golang.org/x/net/http2/hpack"

	"example.com/h2core/internal/logger"
)

// FrameListener receives validated inbound frame events from the Decoder.
// It mirrors the inbound event contract one-to-one. OnDataRead returns the
// number of payload+padding bytes the application has immediately
// processed; the remainder stays charged against the inbound flow-control
// window until released through the flow controller.
type FrameListener interface {
	OnDataRead(streamID uint32, data []byte, padding uint32, endStream bool) (int, error)
	OnHeadersRead(streamID uint32, headers []hpack.HeaderField, priority *PrioritySpec, padding uint32, endStream bool) error
	OnPriorityRead(streamID uint32, priority PrioritySpec) error
	OnRSTStreamRead(streamID uint32, code ErrorCode) error
	OnSettingsRead(settings Settings) error
	OnSettingsAckRead() error
	OnPingRead(payload [PingPayloadLen]byte) error
	OnPingAckRead(payload [PingPayloadLen]byte) error
	OnPushPromiseRead(streamID, promisedStreamID uint32, headers []hpack.HeaderField, padding uint32) error
	OnGoAwayRead(lastStreamID uint32, code ErrorCode, debugData []byte) error
	OnWindowUpdateRead(streamID uint32, increment uint32) error
	OnUnknownFrame(frameType FrameType, streamID uint32, flags Flags, payload []byte) error
}

// FrameWriter is the decoder's handle on the outbound path, for the few
// writes inbound processing itself triggers. Writes are fire-and-forget:
// the decoder never blocks on their completion.
type FrameWriter interface {
	// WriteSettingsAck queues a SETTINGS frame with the ACK flag.
	WriteSettingsAck() error
	// WritePing queues a PING frame. The payload is passed by value, so
	// the caller's buffer is never shared with the asynchronous write.
	WritePing(ack bool, payload [PingPayloadLen]byte) error
	// ApplyRemoteSettings records the peer's settings on the outbound
	// path (frame sizing, header encoding, send windows).
	ApplyRemoteSettings(settings Settings) error
}

// LifecycleManager performs stream teardown on the decoder's behalf. Both
// operations are acknowledged asynchronously by the surrounding system; the
// decoder has nothing further pending when it calls them.
type LifecycleManager interface {
	// CloseStreamRemote records that the peer has finished sending on the
	// stream, closing it fully if the local side is already done.
	CloseStreamRemote(stream *Stream)
	// CloseStream closes the stream in both directions.
	CloseStream(stream *Stream)
}

// PromisedRequestVerifier validates the request headers promised by a
// PUSH_PROMISE frame (RFC 7540 Section 8.2: promised requests must be
// authoritative, cacheable, and safe).
type PromisedRequestVerifier interface {
	IsAuthoritative(headers []hpack.HeaderField) bool
	IsCacheable(headers []hpack.HeaderField) bool
	IsSafe(headers []hpack.HeaderField) bool
}

// AlwaysVerify accepts every promised request. It is the default verifier.
type AlwaysVerify struct{}

func (AlwaysVerify) IsAuthoritative([]hpack.HeaderField) bool { return true }
func (AlwaysVerify) IsCacheable([]hpack.HeaderField) bool     { return true }
func (AlwaysVerify) IsSafe([]hpack.HeaderField) bool          { return true }

// RequestVerifier checks promised requests against RFC 7540 Section 8.2:
// the request must carry an :authority, and its method must be safe and
// cacheable (GET or HEAD).
type RequestVerifier struct{}

func (RequestVerifier) IsAuthoritative(headers []hpack.HeaderField) bool {
	return pseudoHeader(headers, ":authority") != ""
}

func (RequestVerifier) IsCacheable(headers []hpack.HeaderField) bool {
	m := pseudoHeader(headers, ":method")
	return m == "GET" || m == "HEAD"
}

func (RequestVerifier) IsSafe(headers []hpack.HeaderField) bool {
	m := pseudoHeader(headers, ":method")
	return m == "GET" || m == "HEAD"
}

func pseudoHeader(headers []hpack.HeaderField, name string) string {
	for _, hf := range headers {
		if hf.Name == name {
			return hf.Value
		}
	}
	return ""
}

// errIgnoreFrame short-circuits frame processing without notifying the
// listener. Never surfaced to callers.
var errIgnoreFrame = errors.New("frame ignored")

// Decoder enforces the stream- and connection-lifecycle rules of RFC 7540
// on inbound frame events and forwards validated events to the application
// FrameListener. One call per decoded frame; the surrounding byte-framing
// layer has already parsed headers and payloads.
//
// All state is owned by the connection's single frame-processing timeline.
// A returned *ConnectionError terminates processing for the connection; a
// returned *StreamError resets only the referenced stream.
type Decoder struct {
	conn     *Connection
	writer   FrameWriter
	listener FrameListener

	lifecycle LifecycleManager
	verifier  PromisedRequestVerifier

	localFlow  LocalFlowController
	remoteFlow RemoteFlowController

	headerCfg *HeaderConfig
	frameSize *FrameSizePolicy

	// sentSettings is the FIFO of locally-sent-but-unacknowledged
	// settings; SETTINGS_ACK applies the oldest outstanding entry.
	sentSettings settingsQueue

	// prefaceReceived flips once, on the first SETTINGS frame, and stays
	// set for the connection's lifetime. Until then only SETTINGS, GOAWAY
	// and unknown frames are admitted.
	prefaceReceived bool

	log *logger.Logger
}

// NewDecoder creates a Decoder over conn with default collaborators: the
// in-package flow controllers, default header/frame-size limits, the
// accept-everything push verifier and a lifecycle manager that updates the
// connection's stream table directly.
func NewDecoder(conn *Connection, writer FrameWriter, listener FrameListener, log *logger.Logger) *Decoder {
	if log == nil {
		log = logger.NewNopLogger()
	}
	d := &Decoder{
		conn:       conn,
		writer:     writer,
		listener:   listener,
		verifier:   AlwaysVerify{},
		localFlow:  NewInboundFlowController(DefaultInitialWindowSize),
		remoteFlow: NewOutboundFlowController(DefaultInitialWindowSize),
		headerCfg:  NewHeaderConfig(DefaultHeaderTableSize, DefaultMaxHeaderListSize),
		frameSize:  NewFrameSizePolicy(),
		log:        log,
	}
	d.lifecycle = &streamCloser{conn: conn, log: log}
	return d
}

// SetFrameListener replaces the application listener.
func (d *Decoder) SetFrameListener(l FrameListener) { d.listener = l }

// SetLifecycleManager replaces the stream teardown collaborator.
func (d *Decoder) SetLifecycleManager(lm LifecycleManager) { d.lifecycle = lm }

// SetPromisedRequestVerifier replaces the PUSH_PROMISE request verifier.
func (d *Decoder) SetPromisedRequestVerifier(v PromisedRequestVerifier) { d.verifier = v }

// SetLocalFlowController replaces the inbound flow controller.
func (d *Decoder) SetLocalFlowController(fc LocalFlowController) { d.localFlow = fc }

// SetRemoteFlowController replaces the outbound flow controller.
func (d *Decoder) SetRemoteFlowController(fc RemoteFlowController) { d.remoteFlow = fc }

// Connection returns the connection bookkeeping this decoder drives.
func (d *Decoder) Connection() *Connection { return d.conn }

// LocalFlowController returns the inbound flow controller.
func (d *Decoder) LocalFlowController() LocalFlowController { return d.localFlow }

// HeaderConfig returns the local header-decoding limits.
func (d *Decoder) HeaderConfig() *HeaderConfig { return d.headerCfg }

// FrameSizePolicy returns the local max-frame-size policy.
func (d *Decoder) FrameSizePolicy() *FrameSizePolicy { return d.frameSize }

// PrefaceReceived reports whether the connection preface (the first
// SETTINGS frame) has been observed. Once true, it stays true.
func (d *Decoder) PrefaceReceived() bool { return d.prefaceReceived }

// LocalSettingsSent records a SETTINGS frame the local endpoint has sent.
// The outbound path must call this for every non-ACK SETTINGS frame it
// writes; the matching SETTINGS_ACK applies the oldest recorded entry.
func (d *Decoder) LocalSettingsSent(s Settings) {
	d.sentSettings.push(s)
}

// LocalSettings assembles a read-only snapshot of the current local
// settings from the decoder's collaborators, for the surrounding system to
// advertise.
func (d *Decoder) LocalSettings() Settings {
	s := Settings{
		InitialWindowSize:    uint32Ptr(d.localFlow.InitialWindowSize()),
		MaxConcurrentStreams: uint32Ptr(d.conn.Remote().MaxActiveStreams()),
		HeaderTableSize:      uint32Ptr(d.headerCfg.MaxHeaderTableSize()),
		MaxFrameSize:         uint32Ptr(d.frameSize.MaxFrameSize()),
		MaxHeaderListSize:    uint32Ptr(d.headerCfg.MaxHeaderListSize()),
	}
	if !d.conn.IsServer() {
		// Only a client endpoint advertises ENABLE_PUSH.
		s.EnablePush = boolPtr(d.conn.Local().AllowPush())
	}
	return s
}

// verifyPrefaceReceived guards every frame type that is not exempt from
// the preface gate.
func (d *Decoder) verifyPrefaceReceived() error {
	if !d.prefaceReceived {
		return NewConnectionError(ErrCodeProtocolError, "received non-SETTINGS as first frame")
	}
	return nil
}

// OnDataRead processes a DATA frame event. It returns the number of bytes
// released back to the inbound flow-control window. Every payload+padding
// byte is charged to the window exactly once, on every path, including
// ignored and erroring frames.
func (d *Decoder) OnDataRead(streamID uint32, data []byte, padding uint32, endStream bool) (int, error) {
	if err := d.verifyPrefaceReceived(); err != nil {
		return 0, err
	}

	stream := d.conn.Stream(streamID)
	bytesToReturn := len(data) + int(padding)

	ignore, igErr := d.shouldIgnoreHeadersOrDataFrame(streamID, stream, "DATA")
	if igErr != nil {
		// The frame is dropped, but it still counts against the
		// connection flow-control window; mark all bytes consumed
		// immediately.
		_ = d.localFlow.ReceiveFlowControlledFrame(stream, len(data), padding, endStream)
		_, _ = d.localFlow.ConsumeBytes(stream, bytesToReturn)
		return bytesToReturn, igErr
	}
	if ignore {
		_ = d.localFlow.ReceiveFlowControlledFrame(stream, len(data), padding, endStream)
		_, _ = d.localFlow.ConsumeBytes(stream, bytesToReturn)

		// Only verify existence after the window has been settled.
		if err := d.verifyStreamMayHaveExisted(streamID); err != nil {
			return bytesToReturn, err
		}
		return bytesToReturn, nil
	}

	// Evaluate the state verdict now, but only surface it after flow
	// control has ingested the frame.
	var stateErr error
	switch stream.State() {
	case StreamStateOpen, StreamStateHalfClosedLocal:
	case StreamStateHalfClosedRemote, StreamStateClosed:
		stateErr = NewStreamError(stream.ID(), ErrCodeStreamClosed,
			fmt.Sprintf("stream %d in unexpected state: %s", stream.ID(), stream.State()))
	default:
		stateErr = NewConnectionError(ErrCodeProtocolError,
			fmt.Sprintf("stream %d in unexpected state: %s", stream.ID(), stream.State()))
	}

	unconsumed := d.localFlow.UnconsumedBytes(stream)
	deliverErr := func() error {
		if err := d.localFlow.ReceiveFlowControlledFrame(stream, len(data), padding, endStream); err != nil {
			return err
		}
		// Re-read after flow control has ingested the frame.
		unconsumed = d.localFlow.UnconsumedBytes(stream)

		if stateErr != nil {
			return stateErr
		}

		n, err := d.listener.OnDataRead(streamID, data, padding, endStream)
		bytesToReturn = n
		if err != nil {
			// The listener may have released part of the bytes through
			// the flow controller before failing; subtract that portion
			// so credit is not returned twice.
			delta := unconsumed - d.localFlow.UnconsumedBytes(stream)
			bytesToReturn -= delta
			if bytesToReturn < 0 {
				bytesToReturn = 0
			}
		}
		return err
	}()

	if deliverErr != nil {
		var se *StreamError
		var ce *ConnectionError
		if !errors.As(deliverErr, &se) && !errors.As(deliverErr, &ce) {
			deliverErr = NewConnectionErrorWithCause(ErrCodeInternalError,
				fmt.Sprintf("unhandled error on data stream id %d", streamID), deliverErr)
		}
	}

	// Settle the ledger and close out the stream on every path.
	if _, err := d.localFlow.ConsumeBytes(stream, bytesToReturn); err != nil && deliverErr == nil {
		deliverErr = err
	}
	if endStream {
		d.lifecycle.CloseStreamRemote(stream)
	}
	return bytesToReturn, deliverErr
}

// OnHeadersRead processes a HEADERS frame event, creating the stream on the
// remote endpoint when the frame legitimately references an unknown id.
// priority carries the frame's optional priority fields, nil when absent.
func (d *Decoder) OnHeadersRead(streamID uint32, headers []hpack.HeaderField, priority *PrioritySpec, padding uint32, endStream bool) error {
	if err := d.verifyPrefaceReceived(); err != nil {
		return err
	}

	stream := d.conn.Stream(streamID)
	allowHalfClosedRemote := false
	if stream == nil && !d.conn.StreamMayHaveExisted(streamID) {
		var err error
		stream, err = d.conn.Remote().CreateStream(streamID, endStream)
		if err != nil {
			return err
		}
		// The trailer-only case: the stream is created directly in
		// half-closed (remote), which must not then fail state validation.
		allowHalfClosedRemote = stream.State() == StreamStateHalfClosedRemote
	}

	ignore, err := d.shouldIgnoreHeadersOrDataFrame(streamID, stream, "HEADERS")
	if err != nil {
		return err
	}
	if ignore {
		return nil
	}

	switch stream.State() {
	case StreamStateIdle:
		// The stream was created idle by a PRIORITY frame; this HEADERS
		// frame is what actually opens it.
		if err := d.conn.Remote().activateStream(stream, endStream); err != nil {
			return err
		}
	case StreamStateReservedRemote:
		if err := stream.open(endStream); err != nil {
			return err
		}
	case StreamStateOpen, StreamStateHalfClosedLocal:
		// Allowed to receive headers in these states.
	case StreamStateHalfClosedRemote:
		if !allowHalfClosedRemote {
			return NewStreamError(stream.ID(), ErrCodeStreamClosed,
				fmt.Sprintf("stream %d in unexpected state: %s", stream.ID(), stream.State()))
		}
	case StreamStateClosed:
		return NewStreamError(stream.ID(), ErrCodeStreamClosed,
			fmt.Sprintf("stream %d in unexpected state: %s", stream.ID(), stream.State()))
	default:
		return NewConnectionError(ErrCodeProtocolError,
			fmt.Sprintf("stream %d in unexpected state: %s", stream.ID(), stream.State()))
	}

	if priority != nil {
		// Applying priority may create a placeholder for the dependency
		// parent, so it must happen before the listener runs: the listener
		// may query priority state.
		if err := d.applyPriority(stream, *priority); err != nil {
			return err
		}
	}

	if err := d.listener.OnHeadersRead(streamID, headers, priority, padding, endStream); err != nil {
		return err
	}

	if endStream {
		d.lifecycle.CloseStreamRemote(stream)
	}
	return nil
}

// OnPriorityRead processes a PRIORITY frame event. A PRIORITY frame is
// itself sufficient grounds to create the stream it names. Priority
// touching an already-closed stream is a no-op, not a fault.
func (d *Decoder) OnPriorityRead(streamID uint32, priority PrioritySpec) error {
	if err := d.verifyPrefaceReceived(); err != nil {
		return err
	}

	stream := d.conn.Stream(streamID)
	err := func() error {
		if stream == nil {
			if d.conn.StreamMayHaveExisted(streamID) {
				d.log.Info("ignoring PRIORITY frame for stream; stream doesn't exist but may have existed",
					logger.LogFields{"stream_id": streamID})
				return errIgnoreFrame
			}
			var cerr error
			stream, cerr = d.conn.Remote().createIdleStream(streamID)
			if cerr != nil {
				return cerr
			}
		} else if d.streamCreatedAfterGoAwaySent(streamID) {
			d.log.Info("ignoring PRIORITY frame for stream created after GOAWAY sent",
				logger.LogFields{
					"stream_id":                 streamID,
					"last_stream_known_by_peer": d.conn.Remote().LastStreamKnownByPeer(),
				})
			return errIgnoreFrame
		}
		return d.applyPriority(stream, priority)
	}()

	if err != nil {
		if errors.Is(err, errIgnoreFrame) {
			return nil
		}
		var cse *closedStreamCreationError
		if !errors.As(err, &cse) {
			return err
		}
		// Either the stream or its dependency is already closed; priority
		// on a closed stream is a no-op and the listener is still told.
	}

	return d.listener.OnPriorityRead(streamID, priority)
}

// OnRSTStreamRead processes a RST_STREAM frame event.
func (d *Decoder) OnRSTStreamRead(streamID uint32, code ErrorCode) error {
	if err := d.verifyPrefaceReceived(); err != nil {
		return err
	}

	stream := d.conn.Stream(streamID)
	if stream == nil {
		return d.verifyStreamMayHaveExisted(streamID)
	}

	switch stream.State() {
	case StreamStateIdle:
		return NewConnectionError(ErrCodeProtocolError,
			fmt.Sprintf("RST_STREAM received for IDLE stream %d", streamID))
	case StreamStateClosed:
		// RST_STREAM frames must be ignored for closed streams.
		return nil
	}

	if err := d.listener.OnRSTStreamRead(streamID, code); err != nil {
		return err
	}
	d.lifecycle.CloseStream(stream)
	return nil
}

// OnSettingsRead processes a SETTINGS frame event. The first SETTINGS frame
// on the connection is the preface; observing it permanently opens the
// gate, before the frame itself is processed.
func (d *Decoder) OnSettingsRead(settings Settings) error {
	if !d.prefaceReceived {
		d.prefaceReceived = true
	}

	// Acknowledge receipt before anything can observe the new settings.
	if err := d.writer.WriteSettingsAck(); err != nil {
		return err
	}
	if err := d.writer.ApplyRemoteSettings(settings); err != nil {
		return err
	}
	return d.listener.OnSettingsRead(settings)
}

// OnSettingsAckRead processes a SETTINGS_ACK frame event: the oldest
// outstanding locally-sent settings take effect now. This is the only
// point at which locally-initiated settings are applied; until the peer
// acknowledges, the old limits remain in force.
func (d *Decoder) OnSettingsAckRead() error {
	if err := d.verifyPrefaceReceived(); err != nil {
		return err
	}

	if settings := d.sentSettings.poll(); settings != nil {
		if err := d.applyLocalSettings(*settings); err != nil {
			return err
		}
	}
	return d.listener.OnSettingsAckRead()
}

// applyLocalSettings applies settings sent from the local endpoint, field
// by field, independently. Called only once the remote endpoint has
// acknowledged them.
func (d *Decoder) applyLocalSettings(settings Settings) error {
	if settings.EnablePush != nil {
		if d.conn.IsServer() {
			return NewConnectionError(ErrCodeProtocolError, "server sending SETTINGS frame with ENABLE_PUSH specified")
		}
		d.conn.Local().SetAllowPush(*settings.EnablePush)
	}
	if settings.MaxConcurrentStreams != nil {
		d.conn.Remote().SetMaxActiveStreams(saturatingMaxStreams(*settings.MaxConcurrentStreams))
	}
	if settings.HeaderTableSize != nil {
		d.headerCfg.SetMaxHeaderTableSize(*settings.HeaderTableSize)
	}
	if settings.MaxHeaderListSize != nil {
		d.headerCfg.SetMaxHeaderListSize(*settings.MaxHeaderListSize)
	}
	if settings.MaxFrameSize != nil {
		if err := d.frameSize.SetMaxFrameSize(*settings.MaxFrameSize); err != nil {
			return err
		}
	}
	if settings.InitialWindowSize != nil {
		if err := d.localFlow.SetInitialWindowSize(*settings.InitialWindowSize); err != nil {
			return err
		}
	}
	return nil
}

// saturatingMaxStreams adds headroom to SETTINGS_MAX_CONCURRENT_STREAMS so
// that a burst of streams created before the peer observed the limit does
// not kill the connection; saturates instead of overflowing.
func saturatingMaxStreams(maxConcurrentStreams uint32) uint32 {
	maxStreams := maxConcurrentStreams + smallestMaxConcurrentStreams
	if maxStreams < maxConcurrentStreams {
		return ^uint32(0)
	}
	return maxStreams
}

// OnPingRead processes a PING frame event, echoing an acknowledgment with
// the same payload before notifying the listener. The payload array is
// copied by value into the writer, so the ack owns its bytes outright.
func (d *Decoder) OnPingRead(payload [PingPayloadLen]byte) error {
	if err := d.verifyPrefaceReceived(); err != nil {
		return err
	}
	if err := d.writer.WritePing(true, payload); err != nil {
		return err
	}
	return d.listener.OnPingRead(payload)
}

// OnPingAckRead processes a PING acknowledgment event.
func (d *Decoder) OnPingAckRead(payload [PingPayloadLen]byte) error {
	if err := d.verifyPrefaceReceived(); err != nil {
		return err
	}
	return d.listener.OnPingAckRead(payload)
}

// OnPushPromiseRead processes a PUSH_PROMISE frame event. Only clients
// receive pushes: a server MUST treat PUSH_PROMISE as a connection error
// (RFC 7540 Section 8.2).
func (d *Decoder) OnPushPromiseRead(streamID, promisedStreamID uint32, headers []hpack.HeaderField, padding uint32) error {
	if err := d.verifyPrefaceReceived(); err != nil {
		return err
	}

	if d.conn.IsServer() {
		return NewConnectionError(ErrCodeProtocolError, "a client cannot push")
	}

	parent := d.conn.Stream(streamID)
	ignore, err := d.shouldIgnoreHeadersOrDataFrame(streamID, parent, "PUSH_PROMISE")
	if err != nil {
		return err
	}
	if ignore {
		return nil
	}
	if parent == nil {
		return NewConnectionError(ErrCodeProtocolError, fmt.Sprintf("stream %d does not exist", streamID))
	}

	switch parent.State() {
	case StreamStateOpen, StreamStateHalfClosedLocal:
		// Allowed to receive push promise in these states.
	default:
		return NewConnectionError(ErrCodeProtocolError,
			fmt.Sprintf("stream %d in unexpected state for receiving push promise: %s", parent.ID(), parent.State()))
	}

	if !d.verifier.IsAuthoritative(headers) {
		return NewStreamError(promisedStreamID, ErrCodeProtocolError,
			fmt.Sprintf("promised request on stream %d for promised stream %d is not authoritative", streamID, promisedStreamID))
	}
	if !d.verifier.IsCacheable(headers) {
		return NewStreamError(promisedStreamID, ErrCodeProtocolError,
			fmt.Sprintf("promised request on stream %d for promised stream %d is not known to be cacheable", streamID, promisedStreamID))
	}
	if !d.verifier.IsSafe(headers) {
		return NewStreamError(promisedStreamID, ErrCodeProtocolError,
			fmt.Sprintf("promised request on stream %d for promised stream %d is not known to be safe", streamID, promisedStreamID))
	}

	// Reserve the promised stream, inheriting the parent's priority.
	if _, err := d.conn.Remote().ReservePushStream(promisedStreamID, parent); err != nil {
		return err
	}

	return d.listener.OnPushPromiseRead(streamID, promisedStreamID, headers, padding)
}

// OnGoAwayRead processes a GOAWAY frame event. GOAWAY bypasses the preface
// gate: it is meaningful even before negotiation completes.
func (d *Decoder) OnGoAwayRead(lastStreamID uint32, code ErrorCode, debugData []byte) error {
	if d.conn.GoAwayReceived() && d.conn.Local().LastStreamKnownByPeer() < lastStreamID {
		return NewConnectionError(ErrCodeProtocolError,
			fmt.Sprintf("lastStreamId MUST NOT increase. Current value: %d new value: %d",
				d.conn.Local().LastStreamKnownByPeer(), lastStreamID))
	}
	if err := d.listener.OnGoAwayRead(lastStreamID, code, debugData); err != nil {
		return err
	}
	d.conn.RecordGoAwayReceived(lastStreamID, code, debugData)
	return nil
}

// OnWindowUpdateRead processes a WINDOW_UPDATE frame event, growing the
// outbound send window of the referenced stream (or of the connection when
// streamID is 0).
func (d *Decoder) OnWindowUpdateRead(streamID uint32, increment uint32) error {
	if err := d.verifyPrefaceReceived(); err != nil {
		return err
	}

	if streamID == 0 {
		if err := d.remoteFlow.IncrementWindowSize(nil, increment); err != nil {
			return err
		}
		return d.listener.OnWindowUpdateRead(streamID, increment)
	}

	stream := d.conn.Stream(streamID)
	if stream == nil || stream.State() == StreamStateClosed || d.streamCreatedAfterGoAwaySent(streamID) {
		if err := d.verifyStreamMayHaveExisted(streamID); err != nil {
			return err
		}
		d.log.Debug("ignoring WINDOW_UPDATE frame for closed or forgotten stream",
			logger.LogFields{"stream_id": streamID})
		return nil
	}

	if err := d.remoteFlow.IncrementWindowSize(stream, increment); err != nil {
		return err
	}
	return d.listener.OnWindowUpdateRead(streamID, increment)
}

// OnUnknownFrame processes a frame of an unrecognized type. It bypasses
// the preface gate and all stream-state validation: extensions may define
// semantics this core cannot know.
func (d *Decoder) OnUnknownFrame(frameType FrameType, streamID uint32, flags Flags, payload []byte) error {
	return d.listener.OnUnknownFrame(frameType, streamID, flags, payload)
}

// shouldIgnoreHeadersOrDataFrame determines whether a frame with headers or
// data semantics must be silently dropped for the stream (which may be nil)
// associated with streamID.
func (d *Decoder) shouldIgnoreHeadersOrDataFrame(streamID uint32, stream *Stream, frameName string) (bool, error) {
	if stream == nil {
		if d.streamCreatedAfterGoAwaySent(streamID) {
			d.log.Info("ignoring frame for stream sent after GOAWAY sent",
				logger.LogFields{"frame": frameName, "stream_id": streamID})
			return true, nil
		}
		// The frame could be an out-of-order stream creation (protocol
		// error) or could follow a RST_STREAM on a closed stream
		// (stream-closed error). Not enough information to tell; pick
		// the lesser of the two severities.
		return false, NewStreamError(streamID, ErrCodeStreamClosed,
			fmt.Sprintf("received %s frame for an unknown stream %d", frameName, streamID))
	}
	if stream.ResetSent() || d.streamCreatedAfterGoAwaySent(streamID) {
		d.log.Info("ignoring frame for stream",
			logger.LogFields{
				"frame":      frameName,
				"stream_id":  streamID,
				"reset_sent": stream.ResetSent(),
			})
		return true, nil
	}
	return false, nil
}

// streamCreatedAfterGoAwaySent reports whether streamId identifies a stream
// the remote endpoint was still permitted to create after the local
// endpoint sent GOAWAY: GOAWAY was sent, the id is a legitimate remote id,
// and it exceeds the last-stream-id the GOAWAY carried.
func (d *Decoder) streamCreatedAfterGoAwaySent(streamID uint32) bool {
	remote := d.conn.Remote()
	return d.conn.GoAwaySent() && remote.IsValidStreamID(streamID) &&
		streamID > remote.LastStreamKnownByPeer()
}

// verifyStreamMayHaveExisted fails with a connection error when the stream
// table cannot certify the id as one that could have existed and been
// forgotten.
func (d *Decoder) verifyStreamMayHaveExisted(streamID uint32) error {
	if !d.conn.StreamMayHaveExisted(streamID) {
		return NewConnectionError(ErrCodeProtocolError, fmt.Sprintf("stream %d does not exist", streamID))
	}
	return nil
}

// applyPriority records priority metadata on the stream and in the
// dependency tree.
func (d *Decoder) applyPriority(stream *Stream, priority PrioritySpec) error {
	if err := d.conn.PriorityTree().UpdateDependency(stream.ID(), priority); err != nil {
		return err
	}
	stream.setPriority(priority.StreamDependency, priority.Weight, priority.Exclusive)
	return nil
}

// streamCloser is the default LifecycleManager: it drives the stream state
// transitions directly on the connection's stream table.
type streamCloser struct {
	conn *Connection
	log  *logger.Logger
}

func (c *streamCloser) CloseStreamRemote(stream *Stream) {
	if stream == nil {
		return
	}
	stream.closeRemoteSide()
	if stream.State() == StreamStateClosed {
		c.conn.removeStream(stream)
		c.log.Debug("stream fully closed", logger.LogFields{"stream_id": stream.ID()})
	}
}

func (c *streamCloser) CloseStream(stream *Stream) {
	if stream == nil {
		return
	}
	stream.close()
	c.conn.removeStream(stream)
	c.log.Debug("stream closed", logger.LogFields{"stream_id": stream.ID()})
}
