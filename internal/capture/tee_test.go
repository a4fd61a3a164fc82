package capture

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"
	"time"
)

// streamPayload builds a deterministic byte stream large enough to span
// many reads.
func streamPayload(size int) []byte {
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i * 31)
	}
	return payload
}

func TestTee_BothSidesSeeIdenticalBytes(t *testing.T) {
	payload := streamPayload(64 * 1024)

	// OneByteReader forces many tiny reads, exercising chunk boundaries.
	tee, side := NewTee(iotest.OneByteReader(bytes.NewReader(payload)))

	sideDone := make(chan []byte)
	go func() {
		data, err := io.ReadAll(side)
		if err != nil {
			t.Errorf("side ReadAll() error = %v", err)
		}
		sideDone <- data
	}()

	primary, err := io.ReadAll(tee)
	if err != nil {
		t.Fatalf("primary ReadAll() error = %v", err)
	}
	sideData := <-sideDone

	if !bytes.Equal(primary, payload) {
		t.Errorf("primary path: got %d bytes, want %d identical bytes", len(primary), len(payload))
	}
	if !bytes.Equal(sideData, payload) {
		t.Errorf("side path: got %d bytes, want %d identical bytes", len(sideData), len(payload))
	}
}

func TestTee_PrimaryUnaffectedBySideClose(t *testing.T) {
	payload := streamPayload(256 * 1024)
	tee, side := NewTee(bytes.NewReader(payload))

	// Side consumer reads a little, then departs mid-stream.
	small := make([]byte, 10)
	if _, err := io.ReadFull(side, small); err != nil {
		t.Fatalf("side read error = %v", err)
	}
	if err := side.Close(); err != nil {
		t.Fatalf("side Close() error = %v", err)
	}

	// The primary path must drain the whole stream without stalling.
	done := make(chan struct{})
	var primary []byte
	var readErr error
	go func() {
		primary, readErr = io.ReadAll(tee)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("primary path stalled after side consumer closed")
	}

	if readErr != nil {
		t.Fatalf("primary ReadAll() error = %v", readErr)
	}
	if !bytes.Equal(primary, payload) {
		t.Errorf("primary path corrupted: got %d bytes, want %d", len(primary), len(payload))
	}
}

func TestTee_SideSeesEOFWhenStreamEnds(t *testing.T) {
	tee, side := NewTee(bytes.NewReader([]byte("short stream")))

	if _, err := io.ReadAll(tee); err != nil {
		t.Fatalf("primary ReadAll() error = %v", err)
	}

	// A blocked side read must wake up and report end-of-stream, not hang.
	done := make(chan struct{})
	var sideData []byte
	go func() {
		sideData, _ = io.ReadAll(side)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("side reader hung after stream end")
	}

	if string(sideData) != "short stream" {
		t.Errorf("side data = %q, want %q", sideData, "short stream")
	}

	n, err := side.Read(make([]byte, 1))
	if n != 0 || err != io.EOF {
		t.Errorf("read after end = (%d, %v), want (0, EOF)", n, err)
	}
}

func TestTee_ForwardsBytesBeforeUnderlyingError(t *testing.T) {
	underlying := io.MultiReader(bytes.NewReader([]byte("partial")), iotest.ErrReader(io.ErrUnexpectedEOF))
	tee, side := NewTee(underlying)

	if _, err := io.ReadAll(tee); err != io.ErrUnexpectedEOF {
		t.Fatalf("primary error = %v, want %v", err, io.ErrUnexpectedEOF)
	}

	// The side reader gets the bytes that made it through, then EOF: the
	// queue closes on the underlying error.
	sideData, err := io.ReadAll(side)
	if err != nil {
		t.Fatalf("side ReadAll() error = %v", err)
	}
	if string(sideData) != "partial" {
		t.Errorf("side data = %q, want %q", sideData, "partial")
	}
}
