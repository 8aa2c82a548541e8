package http2

import "fmt"

// Settings is an optional-field record of the six HTTP/2 settings. Each
// field is independently present (non-nil) or absent, matching the wire
// format where a SETTINGS frame carries any subset of parameters.
type Settings struct {
	HeaderTableSize      *uint32
	EnablePush           *bool
	MaxConcurrentStreams *uint32
	InitialWindowSize    *uint32
	MaxFrameSize         *uint32
	MaxHeaderListSize    *uint32
}

// String renders only the present fields, for logging.
func (s Settings) String() string {
	out := "settings{"
	sep := ""
	appendField := func(name string, v interface{}) {
		out += fmt.Sprintf("%s%s=%v", sep, name, v)
		sep = " "
	}
	if s.HeaderTableSize != nil {
		appendField("header_table_size", *s.HeaderTableSize)
	}
	if s.EnablePush != nil {
		appendField("enable_push", *s.EnablePush)
	}
	if s.MaxConcurrentStreams != nil {
		appendField("max_concurrent_streams", *s.MaxConcurrentStreams)
	}
	if s.InitialWindowSize != nil {
		appendField("initial_window_size", *s.InitialWindowSize)
	}
	if s.MaxFrameSize != nil {
		appendField("max_frame_size", *s.MaxFrameSize)
	}
	if s.MaxHeaderListSize != nil {
		appendField("max_header_list_size", *s.MaxHeaderListSize)
	}
	return out + "}"
}

func uint32Ptr(v uint32) *uint32 { return &v }
func boolPtr(b bool) *bool       { return &b }

// settingsQueue is the FIFO of locally-sent-but-unacknowledged Settings.
// SETTINGS_ACK frames carry no payload, so the only way to know which local
// settings an ACK confirms is send order: the oldest outstanding entry is
// the one acknowledged.
type settingsQueue struct {
	pending []Settings
}

// push appends a sent-but-unacknowledged Settings record.
func (q *settingsQueue) push(s Settings) {
	q.pending = append(q.pending, s)
}

// poll removes and returns the oldest outstanding Settings, or nil if none.
func (q *settingsQueue) poll() *Settings {
	if len(q.pending) == 0 {
		return nil
	}
	s := q.pending[0]
	q.pending = q.pending[1:]
	return &s
}

func (q *settingsQueue) len() int { return len(q.pending) }

// HeaderConfig holds the local header-decoding limits that SETTINGS
// acknowledgments feed: the HPACK dynamic table size and the maximum
// accepted header list size.
type HeaderConfig struct {
	maxHeaderTableSize uint32
	maxHeaderListSize  uint32
}

// NewHeaderConfig creates a HeaderConfig with the given limits.
func NewHeaderConfig(maxHeaderTableSize, maxHeaderListSize uint32) *HeaderConfig {
	return &HeaderConfig{
		maxHeaderTableSize: maxHeaderTableSize,
		maxHeaderListSize:  maxHeaderListSize,
	}
}

// MaxHeaderTableSize returns the current HPACK dynamic table size limit.
func (h *HeaderConfig) MaxHeaderTableSize() uint32 { return h.maxHeaderTableSize }

// SetMaxHeaderTableSize updates the HPACK dynamic table size limit.
func (h *HeaderConfig) SetMaxHeaderTableSize(v uint32) { h.maxHeaderTableSize = v }

// MaxHeaderListSize returns the current header list size limit.
func (h *HeaderConfig) MaxHeaderListSize() uint32 { return h.maxHeaderListSize }

// SetMaxHeaderListSize updates the header list size limit.
func (h *HeaderConfig) SetMaxHeaderListSize(v uint32) { h.maxHeaderListSize = v }

// FrameSizePolicy holds the local SETTINGS_MAX_FRAME_SIZE value.
type FrameSizePolicy struct {
	maxFrameSize uint32
}

// NewFrameSizePolicy creates a FrameSizePolicy with the default max frame size.
func NewFrameSizePolicy() *FrameSizePolicy {
	return &FrameSizePolicy{maxFrameSize: DefaultMaxFrameSize}
}

// MaxFrameSize returns the current maximum frame payload size.
func (p *FrameSizePolicy) MaxFrameSize() uint32 { return p.maxFrameSize }

// SetMaxFrameSize updates the maximum frame payload size. Values outside
// the range allowed by RFC 7540 Section 6.5.2 are a connection error.
func (p *FrameSizePolicy) SetMaxFrameSize(v uint32) error {
	if v < MinMaxFrameSize || v > MaxMaxFrameSize {
		return NewConnectionError(ErrCodeProtocolError,
			fmt.Sprintf("invalid SETTINGS_MAX_FRAME_SIZE %d, allowed range [%d, %d]", v, MinMaxFrameSize, MaxMaxFrameSize))
	}
	p.maxFrameSize = v
	return nil
}
