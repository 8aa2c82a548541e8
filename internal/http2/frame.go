package http2

import "fmt"

// FrameType represents an HTTP/2 frame type.
type FrameType uint8

const (
	// FrameData is for DATA frames (0x0).
	FrameData FrameType = 0x0
	// FrameHeaders is for HEADERS frames (0x1).
	FrameHeaders FrameType = 0x1
	// FramePriority is for PRIORITY frames (0x2).
	FramePriority FrameType = 0x2
	// FrameRSTStream is for RST_STREAM frames (0x3).
	FrameRSTStream FrameType = 0x3
	// FrameSettings is for SETTINGS frames (0x4).
	FrameSettings FrameType = 0x4
	// FramePushPromise is for PUSH_PROMISE frames (0x5).
	FramePushPromise FrameType = 0x5
	// FramePing is for PING frames (0x6).
	FramePing FrameType = 0x6
	// FrameGoAway is for GOAWAY frames (0x7).
	FrameGoAway FrameType = 0x7
	// FrameWindowUpdate is for WINDOW_UPDATE frames (0x8).
	FrameWindowUpdate FrameType = 0x8
	// FrameContinuation is for CONTINUATION frames (0x9).
	FrameContinuation FrameType = 0x9
)

// String returns the string representation of the FrameType.
func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameHeaders:
		return "HEADERS"
	case FramePriority:
		return "PRIORITY"
	case FrameRSTStream:
		return "RST_STREAM"
	case FrameSettings:
		return "SETTINGS"
	case FramePushPromise:
		return "PUSH_PROMISE"
	case FramePing:
		return "PING"
	case FrameGoAway:
		return "GOAWAY"
	case FrameWindowUpdate:
		return "WINDOW_UPDATE"
	case FrameContinuation:
		return "CONTINUATION"
	default:
		return fmt.Sprintf("UNKNOWN_FRAME_TYPE_%d", uint8(t))
	}
}

// Flags represents flags for an HTTP/2 frame.
type Flags uint8

// Frame header flags. Only the flags the decoder forwards with unknown
// frames are interpreted here; typed frame events arrive with their flags
// already parsed into arguments.
const (
	// FlagDataEndStream indicates that this DATA frame is the last from the sender.
	FlagDataEndStream Flags = 0x1
	// FlagDataPadded indicates that this DATA frame is padded.
	FlagDataPadded Flags = 0x8

	// FlagHeadersEndStream indicates that this HEADERS frame is the last from the sender.
	FlagHeadersEndStream Flags = 0x1
	// FlagHeadersEndHeaders indicates that this HEADERS frame contains an entire block of header fields.
	FlagHeadersEndHeaders Flags = 0x4
	// FlagHeadersPadded indicates that this HEADERS frame is padded.
	FlagHeadersPadded Flags = 0x8
	// FlagHeadersPriority indicates that this HEADERS frame includes priority information.
	FlagHeadersPriority Flags = 0x20

	// FlagSettingsAck indicates that this SETTINGS frame acknowledges receipt of the peer's SETTINGS frame.
	FlagSettingsAck Flags = 0x1

	// FlagPingAck indicates that this PING frame is an acknowledgment.
	FlagPingAck Flags = 0x1
)

// Default settings values (RFC 7540 Section 6.5.2).
const (
	DefaultHeaderTableSize   uint32 = 4096
	DefaultInitialWindowSize uint32 = 65535
	DefaultMaxFrameSize      uint32 = 16384
	DefaultMaxHeaderListSize uint32 = 32 * 1024
)

// MaxWindowSize is the maximum value a flow control window can reach
// (2^31 - 1), as per RFC 7540 Section 6.9.1.
const MaxWindowSize = 1<<31 - 1

// MinMaxFrameSize and MaxMaxFrameSize bound legal values for
// SETTINGS_MAX_FRAME_SIZE (RFC 7540 Section 6.5.2).
const (
	MinMaxFrameSize uint32 = 1 << 14
	MaxMaxFrameSize uint32 = 1<<24 - 1
)

// smallestMaxConcurrentStreams is the headroom added to the peer's
// SETTINGS_MAX_CONCURRENT_STREAMS when computing the effective active-stream
// cap, so that bursts slightly above the advertised limit are not fatal.
const smallestMaxConcurrentStreams uint32 = 100

// PingPayloadLen is the fixed length of a PING frame payload.
const PingPayloadLen = 8

// DefaultPriorityWeight is the weight assigned when a HEADERS frame carries
// no priority fields (RFC 7540 Section 5.3.5: default weight 16, encoded
// as 15).
const DefaultPriorityWeight uint8 = 15
