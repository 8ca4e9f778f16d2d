package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// acceptTimeout bounds every blocking socket operation on the control
// plane so shutdown latency stays predictable.
const acceptTimeout = 1 * time.Second

// HeartbeatPeriod is the interval at which a Worker emits a heartbeat
// and at which the Manager ages its missed-heartbeat counters.
const HeartbeatPeriod = 2 * time.Second

// MissThreshold is the number of consecutive missed heartbeats (about
// 10s of silence at HeartbeatPeriod) after which a worker is declared
// Dead.
const MissThreshold = 5

// ReadMessage reads a TCP connection to EOF, concatenating every chunk,
// then decodes the result as a single JSON object. A malformed payload
// is reported via ok=false; the caller logs and keeps its server loop
// running rather than treating this as fatal.
func ReadMessage(conn net.Conn, logger zerolog.Logger) (Message, bool) {
	conn.SetReadDeadline(time.Now().Add(acceptTimeout))

	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				conn.SetReadDeadline(time.Now().Add(acceptTimeout))
				continue
			}
			if err == io.EOF {
				break
			}
			logger.Debug().Err(err).Msg("tcp read failed")
			return Message{}, false
		}
	}

	var msg Message
	if err := json.Unmarshal(buf.Bytes(), &msg); err != nil {
		logger.Warn().Err(err).Msg("dropping malformed message")
		return Message{}, false
	}
	return msg, true
}

// Send connects to host:port, writes msg as JSON, and half-closes the
// write side so the receiver's read-to-EOF completes. It returns false
// on any connect or write failure — callers use that boolean as the
// sole signal of peer unreachability.
func Send(host string, port int, msg Message) bool {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, acceptTimeout)
	if err != nil {
		return false
	}
	defer conn.Close()

	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	if _, err := conn.Write(data); err != nil {
		return false
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}
	return true
}

// Accept wraps listener.Accept with a bounded timeout so callers can
// poll a shutdown flag between attempts. ok is false on timeout; err is
// non-nil only for a real accept failure.
func Accept(listener *net.TCPListener) (net.Conn, bool, error) {
	listener.SetDeadline(time.Now().Add(acceptTimeout))
	conn, err := listener.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, false, nil
		}
		return nil, false, err
	}
	return conn, true, nil
}

// SendHeartbeat fires a single UDP datagram carrying msg at host:port
// and does not report loss; heartbeats are unreliable by construction
// and failure detection works by counting silence, not send errors.
func SendHeartbeat(host string, port int, msg Message) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return
	}
	defer conn.Close()

	data, err := json.Marshal(msg)
	if err != nil || len(data) > MaxDatagramSize {
		return
	}
	conn.Write(data)
}

// ReceiveHeartbeat reads one UDP datagram with a bounded timeout. ok is
// false on timeout or malformed JSON; the caller's loop keeps running
// either way.
func ReceiveHeartbeat(conn *net.UDPConn, logger zerolog.Logger) (Message, bool) {
	conn.SetReadDeadline(time.Now().Add(acceptTimeout))
	buf := make([]byte, MaxDatagramSize)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return Message{}, false
	}

	var msg Message
	if err := json.Unmarshal(buf[:n], &msg); err != nil {
		logger.Debug().Err(err).Msg("dropping malformed heartbeat")
		return Message{}, false
	}
	return msg, true
}
