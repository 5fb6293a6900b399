package ws

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"lingo/internal/dto"
)

// writeClientFrame writes a masked frame the way a browser would.
func writeClientFrame(t *testing.T, w io.Writer, opcode byte, payload []byte) {
	t.Helper()
	hdr := []byte{0x80 | opcode}
	mask := [4]byte{0x1a, 0x2b, 0x3c, 0x4d}
	switch {
	case len(payload) <= 125:
		hdr = append(hdr, 0x80|byte(len(payload)))
	case len(payload) < 65536:
		hdr = append(hdr, 0x80|126)
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(len(payload)))
		hdr = append(hdr, ext[:]...)
	default:
		hdr = append(hdr, 0x80|127)
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(len(payload)))
		hdr = append(hdr, ext[:]...)
	}
	hdr = append(hdr, mask[:]...)
	masked := make([]byte, len(payload))
	for i := range payload {
		masked[i] = payload[i] ^ mask[i%4]
	}
	if _, err := w.Write(append(hdr, masked...)); err != nil {
		t.Errorf("write client frame: %v", err)
	}
}

// readServerFrame reads one unmasked frame off the client end.
func readServerFrame(t *testing.T, r io.Reader) (byte, []byte) {
	t.Helper()
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		t.Fatalf("read frame header: %v", err)
	}
	opcode := hdr[0] & 0x0F
	length := uint64(hdr[1] & 0x7F)
	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			t.Fatalf("read extended length: %v", err)
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			t.Fatalf("read extended length: %v", err)
		}
		length = binary.BigEndian.Uint64(ext[:])
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		t.Fatalf("read payload: %v", err)
	}
	return opcode, payload
}

func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	c := NewConn(server)
	t.Cleanup(func() {
		c.Close()
		_ = client.Close()
	})
	return c, client
}

func TestReadEventDecodesTextFrame(t *testing.T) {
	c, client := pipeConn(t)

	go writeClientFrame(t, client, opText, []byte(`{"type":"sendMessage","data":{"to":"ravi","text":"hi"}}`))

	env, err := c.ReadEvent()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if env.Type != "sendMessage" {
		t.Fatalf("unexpected type %q", env.Type)
	}
	var req dto.SendMessageRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if req.To != "ravi" || req.Text != "hi" {
		t.Fatalf("unexpected payload: %+v", req)
	}
}

func TestSendWritesEnvelopeFrame(t *testing.T) {
	c, client := pipeConn(t)

	done := make(chan error, 1)
	go func() {
		done <- c.Send("sendAck", dto.SendAck{To: "ravi", Text: "hi"})
	}()

	opcode, payload := readServerFrame(t, client)
	if err := <-done; err != nil {
		t.Fatalf("send: %v", err)
	}
	if opcode != opText {
		t.Fatalf("expected text frame, got opcode %#x", opcode)
	}
	var env dto.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != "sendAck" {
		t.Fatalf("unexpected type %q", env.Type)
	}
	var ack dto.SendAck
	if err := json.Unmarshal(env.Data, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.To != "ravi" || ack.Text != "hi" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
}

func TestReadEventAnswersPing(t *testing.T) {
	c, client := pipeConn(t)

	go func() {
		writeClientFrame(t, client, opPing, []byte("probe"))
	}()

	readDone := make(chan struct{})
	go func() {
		// Blocks until a text frame or error; the ping is consumed and
		// answered along the way.
		_, _ = c.ReadEvent()
		close(readDone)
	}()

	opcode, payload := readServerFrame(t, client)
	if opcode != opPong {
		t.Fatalf("expected pong, got opcode %#x", opcode)
	}
	if string(payload) != "probe" {
		t.Fatalf("pong should echo the ping payload, got %q", payload)
	}

	_ = client.Close()
	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("read loop did not unwind after close")
	}
}

func TestReadEventRejectsUnmaskedFrame(t *testing.T) {
	c, client := pipeConn(t)

	go func() {
		// Server-to-client style frame: no mask bit.
		frame := []byte{0x80 | opText, 0x02, 'h', 'i'}
		_, _ = client.Write(frame)
	}()

	if _, err := c.ReadEvent(); !errors.Is(err, errUnmasked) {
		t.Fatalf("expected unmasked frame rejection, got %v", err)
	}
}

func TestReadEventCloseHandshake(t *testing.T) {
	c, client := pipeConn(t)

	go writeClientFrame(t, client, opClose, nil)

	readDone := make(chan error, 1)
	go func() {
		_, err := c.ReadEvent()
		readDone <- err
	}()

	opcode, _ := readServerFrame(t, client)
	if opcode != opClose {
		t.Fatalf("expected close echo, got opcode %#x", opcode)
	}
	if err := <-readDone; !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestComputeAccept(t *testing.T) {
	// Known pair from RFC 6455 section 1.3.
	got := computeAccept("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("computeAccept mismatch: got %s want %s", got, want)
	}
}

func TestKeysAreUnique(t *testing.T) {
	a, _ := pipeConn(t)
	b, _ := pipeConn(t)
	if a.Key() == b.Key() {
		t.Fatalf("two connections share a key: %s", a.Key())
	}
}
