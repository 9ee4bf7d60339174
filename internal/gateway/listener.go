package gateway

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/sebas/callhub/internal/call"
)

// Handshake replies, written as a single line before the connection closes.
const (
	respAccepted = "200 result=0\n"
	respFailure  = "200 result=-1\n"
)

// Header keys sent by the telephony gateway in the handshake block.
const (
	keyCallerID = "agi_callerid"
	keyExten    = "agi_extension"
	keyUniqueID = "agi_uniqueid"
	keyChannel  = "agi_channel"
	keyRTPSSRC  = "agi_rtp_ssrc"
)

// ExtensionResolver maps a dialed extension to a display label.
// Implemented by config.ExtensionDirectory.
type ExtensionResolver interface {
	Lookup(extension string) (string, bool)
}

// Listener accepts gateway connections announcing inbound calls. Each
// connection is a one-shot handshake: a block of "Key: Value" lines ending
// in a blank line, answered with a single status line. The listener holds no
// state beyond the current parse.
type Listener struct {
	reg        *call.Registry
	extensions ExtensionResolver

	mu sync.Mutex
	ln net.Listener
}

// NewListener creates a handshake listener creating sessions in reg.
// extensions may be nil when no directory is configured.
func NewListener(reg *call.Registry, extensions ExtensionResolver) *Listener {
	return &Listener{reg: reg, extensions: extensions}
}

// Listen binds addr and accepts connections until Close is called. Each
// accepted connection is handled on its own goroutine.
func (l *Listener) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	slog.Info("[Gateway] Listening for handshake connections", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			// Accept fails permanently once the listener is closed
			slog.Debug("[Gateway] Accept loop stopped", "error", err)
			return nil
		}
		go l.handleConn(conn)
	}
}

// Addr returns the bound address, or empty before Listen
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}

// Close stops the accept loop
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

func (l *Listener) handleConn(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	slog.Debug("[Gateway] Connection accepted", "remote", remote)

	vars, err := readHandshake(conn)
	if err != nil {
		// Socket closed before the blank line; abort silently
		slog.Debug("[Gateway] Handshake aborted", "remote", remote, "error", err)
		return
	}

	callerID := vars[keyCallerID]
	if callerID == "" {
		callerID = "Unknown"
	}
	extension := vars[keyExten]
	uniqueID := vars[keyUniqueID]
	channel := vars[keyChannel]

	// The gateway announces its RTP source here so phone-side audio can be
	// routed to this call once it is answered
	var ssrc uint32
	if raw := vars[keyRTPSSRC]; raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			slog.Warn("[Gateway] Ignoring unparsable RTP source", "remote", remote, "value", raw)
		} else {
			ssrc = uint32(parsed)
		}
	}

	callerName := "Caller " + callerID
	if l.extensions != nil {
		if label, ok := l.extensions.Lookup(extension); ok {
			callerName = callerID + " -> " + label
		}
	}

	slog.Info("[Gateway] Call received",
		"remote", remote,
		"caller", callerID,
		"extension", extension,
		"unique_id", uniqueID,
		"channel", channel)

	_, err = l.reg.Create(call.CreateParams{
		ID:         uniqueID,
		CallerID:   callerID,
		CallerName: callerName,
		Extension:  extension,
		Channel:    channel,
		Direction:  call.DirectionInbound,
		Source:     call.SourceGateway,
		SSRC:       ssrc,
	})
	if err != nil {
		slog.Error("[Gateway] Failed to create call", "remote", remote, "error", err)
		_, _ = io.WriteString(conn, respFailure)
		return
	}

	_, _ = io.WriteString(conn, respAccepted)
}

// readHandshake reads "Key: Value" lines until the blank line that ends the
// block. CRLF and LF line endings are both accepted. Lines without a colon
// are ignored rather than treated as fatal.
func readHandshake(conn net.Conn) (map[string]string, error) {
	vars := make(map[string]string)
	reader := bufio.NewReader(conn)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return vars, nil
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			slog.Debug("[Gateway] Ignoring malformed handshake line", "line", line)
			continue
		}
		vars[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
}
