package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/net/http2/hpack"

	"example.com/h2core/internal/config"
	"example.com/h2core/internal/http2"
	"example.com/h2core/internal/logger"
)

var configFilePath string

func main() {
	flag.StringVar(&configFilePath, "config", "", "Path to the TOML configuration file (optional)")
	flag.Parse()

	cfg := &config.Config{}
	if configFilePath != "" {
		absConfigPath, err := filepath.Abs(configFilePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving config file path %s: %v\n", configFilePath, err)
			os.Exit(1)
		}
		cfg, err = config.Load(absConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg.ApplyDefaults()
	}

	log := logger.NewStderrLogger(logger.ParseLevel(string(cfg.Logging.LogLevel)))
	log.Info("logger initialized", logger.LogFields{"level": cfg.Logging.LogLevel})

	conn := http2.NewConnection(true, log)
	decoder := http2.NewDecoder(conn, nopWriter{}, &logListener{log: log}, log)

	if err := applyConfig(decoder, conn, cfg.HTTP2); err != nil {
		log.Error("invalid HTTP/2 configuration", logger.LogFields{"error": err.Error()})
		os.Exit(1)
	}

	settings := decoder.LocalSettings()
	log.Info("decoder ready", logger.LogFields{
		"server":         conn.IsServer(),
		"local_settings": settings.String(),
	})
}

// applyConfig pushes the configured local limits into the decoder's
// collaborators. In a full endpoint these would instead travel through a
// SETTINGS frame and take effect on the peer's acknowledgment.
func applyConfig(d *http2.Decoder, conn *http2.Connection, h *config.HTTP2Config) error {
	if h == nil {
		return nil
	}
	if h.HeaderTableSize != nil {
		d.HeaderConfig().SetMaxHeaderTableSize(*h.HeaderTableSize)
	}
	if h.MaxHeaderListSize != nil {
		d.HeaderConfig().SetMaxHeaderListSize(*h.MaxHeaderListSize)
	}
	if h.MaxFrameSize != nil {
		if err := d.FrameSizePolicy().SetMaxFrameSize(*h.MaxFrameSize); err != nil {
			return err
		}
	}
	if h.InitialWindowSize != nil {
		if err := d.LocalFlowController().SetInitialWindowSize(*h.InitialWindowSize); err != nil {
			return err
		}
	}
	if h.MaxConcurrentStreams != nil {
		conn.Remote().SetMaxActiveStreams(*h.MaxConcurrentStreams)
	}
	if h.EnablePush != nil {
		conn.Local().SetAllowPush(*h.EnablePush)
	}
	return nil
}

// nopWriter discards outbound writes; this binary has no transport.
type nopWriter struct{}

func (nopWriter) WriteSettingsAck() error                          { return nil }
func (nopWriter) WritePing(bool, [http2.PingPayloadLen]byte) error { return nil }
func (nopWriter) ApplyRemoteSettings(http2.Settings) error         { return nil }

// logListener logs every validated frame event.
type logListener struct {
	log *logger.Logger
}

func (l *logListener) OnDataRead(streamID uint32, data []byte, padding uint32, endStream bool) (int, error) {
	l.log.Info("DATA", logger.LogFields{"stream_id": streamID, "len": len(data), "padding": padding, "end_stream": endStream})
	return len(data) + int(padding), nil
}

func (l *logListener) OnHeadersRead(streamID uint32, headers []hpack.HeaderField, priority *http2.PrioritySpec, padding uint32, endStream bool) error {
	l.log.Info("HEADERS", logger.LogFields{"stream_id": streamID, "fields": len(headers), "end_stream": endStream})
	return nil
}

func (l *logListener) OnPriorityRead(streamID uint32, priority http2.PrioritySpec) error {
	l.log.Info("PRIORITY", logger.LogFields{"stream_id": streamID, "depends_on": priority.StreamDependency, "weight": priority.Weight, "exclusive": priority.Exclusive})
	return nil
}

func (l *logListener) OnRSTStreamRead(streamID uint32, code http2.ErrorCode) error {
	l.log.Info("RST_STREAM", logger.LogFields{"stream_id": streamID, "code": code.String()})
	return nil
}

func (l *logListener) OnSettingsRead(settings http2.Settings) error {
	l.log.Info("SETTINGS", logger.LogFields{"settings": settings.String()})
	return nil
}

func (l *logListener) OnSettingsAckRead() error {
	l.log.Info("SETTINGS_ACK", nil)
	return nil
}

func (l *logListener) OnPingRead(payload [http2.PingPayloadLen]byte) error {
	l.log.Info("PING", nil)
	return nil
}

func (l *logListener) OnPingAckRead(payload [http2.PingPayloadLen]byte) error {
	l.log.Info("PING_ACK", nil)
	return nil
}

func (l *logListener) OnPushPromiseRead(streamID, promisedStreamID uint32, headers []hpack.HeaderField, padding uint32) error {
	l.log.Info("PUSH_PROMISE", logger.LogFields{"stream_id": streamID, "promised_stream_id": promisedStreamID})
	return nil
}

func (l *logListener) OnGoAwayRead(lastStreamID uint32, code http2.ErrorCode, debugData []byte) error {
	l.log.Info("GOAWAY", logger.LogFields{"last_stream_id": lastStreamID, "code": code.String(), "debug_len": len(debugData)})
	return nil
}

func (l *logListener) OnWindowUpdateRead(streamID uint32, increment uint32) error {
	l.log.Info("WINDOW_UPDATE", logger.LogFields{"stream_id": streamID, "increment": increment})
	return nil
}

func (l *logListener) OnUnknownFrame(frameType http2.FrameType, streamID uint32, flags http2.Flags, payload []byte) error {
	l.log.Info("unknown frame", logger.LogFields{"type": uint8(frameType), "stream_id": streamID, "len": len(payload)})
	return nil
}
