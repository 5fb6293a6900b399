// Package ws implements the server side of RFC 6455 directly on a
// hijacked HTTP connection. Only what the chat protocol needs: single
// unfragmented text frames in, text frames out, ping/pong, close.
package ws

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lingo/internal/dto"
)

const (
	opText  = 0x1
	opClose = 0x8
	opPing  = 0x9
	opPong  = 0xA

	// maxFramePayload bounds a single inbound frame. Chat messages are
	// short; anything near this limit is a misbehaving client.
	maxFramePayload = 1 << 20

	writeTimeout = 10 * time.Second
)

var (
	ErrClosed       = errors.New("ws: connection closed")
	errUnmasked     = errors.New("ws: client frame not masked")
	errFrameTooBig  = errors.New("ws: frame exceeds payload limit")
	errFragmented   = errors.New("ws: fragmented frames not supported")
	errNonTextFrame = errors.New("ws: unexpected binary frame")
)

// Conn is one upgraded websocket connection. Writes are serialized by
// a mutex; reads happen from the single serve loop only.
type Conn struct {
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
	wmu  sync.Mutex

	key string

	closeOnce sync.Once
}

// Accept performs the HTTP upgrade handshake and returns the framed
// connection. On handshake failure the HTTP error has already been
// written to w.
func Accept(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	if !strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") {
		http.Error(w, "bad request", http.StatusBadRequest)
		return nil, fmt.Errorf("missing upgrade header")
	}
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		http.Error(w, "bad request", http.StatusBadRequest)
		return nil, fmt.Errorf("invalid upgrade value")
	}
	key := strings.TrimSpace(r.Header.Get("Sec-WebSocket-Key"))
	if key == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return nil, fmt.Errorf("missing websocket key")
	}
	accept := computeAccept(key)
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "upgrade not supported", http.StatusInternalServerError)
		return nil, fmt.Errorf("hijacking not supported")
	}
	conn, rw, err := hj.Hijack()
	if err != nil {
		return nil, err
	}
	response := fmt.Sprintf("HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Accept: %s\r\n\r\n", accept)
	if _, err := rw.WriteString(response); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := rw.Flush(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return NewConn(conn), nil
}

// NewConn frames an already-upgraded byte stream. Split out from
// Accept so tests can drive the codec over a net.Pipe.
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn: conn,
		br:   bufio.NewReader(conn),
		bw:   bufio.NewWriter(conn),
		key:  fmt.Sprintf("%s#%s", conn.RemoteAddr(), uuid.NewString()),
	}
}

func (c *Conn) Key() string { return c.key }

// Send marshals one event envelope and writes it as a text frame.
func (c *Conn) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(dto.Envelope{Type: event, Data: payload})
	if err != nil {
		return err
	}
	return c.writeFrame(opText, frame)
}

// ReadEvent blocks for the next inbound text frame and decodes its
// envelope. Control frames are handled inline: pings are answered,
// pongs ignored, close ends the read loop.
func (c *Conn) ReadEvent() (dto.Envelope, error) {
	for {
		opcode, payload, err := c.readFrame()
		if err != nil {
			return dto.Envelope{}, err
		}
		switch opcode {
		case opText:
			var env dto.Envelope
			if err := json.Unmarshal(payload, &env); err != nil {
				return dto.Envelope{}, fmt.Errorf("ws: malformed envelope: %w", err)
			}
			return env, nil
		case opPing:
			if err := c.writeFrame(opPong, payload); err != nil {
				return dto.Envelope{}, err
			}
		case opPong:
			// keepalive reply, nothing to do
		case opClose:
			_ = c.writeFrame(opClose, nil)
			return dto.Envelope{}, ErrClosed
		default:
			return dto.Envelope{}, errNonTextFrame
		}
	}
}

// Ping sends a keepalive probe.
func (c *Conn) Ping() error {
	return c.writeFrame(opPing, nil)
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

func (c *Conn) readFrame() (byte, []byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(c.br, hdr[:]); err != nil {
		return 0, nil, err
	}
	fin := hdr[0]&0x80 != 0
	opcode := hdr[0] & 0x0F
	if !fin || opcode == 0x0 {
		return 0, nil, errFragmented
	}
	masked := hdr[1]&0x80 != 0
	if !masked {
		return 0, nil, errUnmasked
	}
	length := uint64(hdr[1] & 0x7F)
	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(c.br, ext[:]); err != nil {
			return 0, nil, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(c.br, ext[:]); err != nil {
			return 0, nil, err
		}
		length = binary.BigEndian.Uint64(ext[:])
	}
	if length > maxFramePayload {
		return 0, nil, errFrameTooBig
	}
	var mask [4]byte
	if _, err := io.ReadFull(c.br, mask[:]); err != nil {
		return 0, nil, err
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(c.br, payload); err != nil {
		return 0, nil, err
	}
	for i := range payload {
		payload[i] ^= mask[i%4]
	}
	return opcode, payload, nil
}

func (c *Conn) writeFrame(opcode byte, payload []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := c.bw.WriteByte(0x80 | opcode); err != nil {
		return err
	}
	length := len(payload)
	switch {
	case length <= 125:
		if err := c.bw.WriteByte(byte(length)); err != nil {
			return err
		}
	case length < 65536:
		if err := c.bw.WriteByte(126); err != nil {
			return err
		}
		if err := binary.Write(c.bw, binary.BigEndian, uint16(length)); err != nil {
			return err
		}
	default:
		if err := c.bw.WriteByte(127); err != nil {
			return err
		}
		if err := binary.Write(c.bw, binary.BigEndian, uint64(length)); err != nil {
			return err
		}
	}
	if _, err := c.bw.Write(payload); err != nil {
		return err
	}
	return c.bw.Flush()
}

func computeAccept(key string) string {
	const wsGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	sum := sha1.Sum([]byte(key + wsGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}
