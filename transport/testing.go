package transport

import (
	"context"
	"sync"
	"time"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/internal/constants"
)

// MockUART is an in-memory, fault-injectable UART for tests. Two linked
// MockUARTs (via NewMockUARTPair) behave like the two ends of a serial
// cable; a standalone MockUART can be driven directly by a test calling
// Feed. ReadFrame blocks like a real bounded-wait serial read, timing out
// after readTimeout if nothing arrives.
type MockUART struct {
	ch          chan [constants.FrameSize]byte
	peer        *MockUART
	readTimeout time.Duration

	mu            sync.Mutex
	writes        [][constants.FrameSize]byte
	DropNextWrite bool
	FailRead      error
}

// NewMockUARTPair returns two MockUARTs wired to each other: frames
// written to one appear in the other's read queue.
func NewMockUARTPair() (*MockUART, *MockUART) {
	a := NewMockUART()
	b := NewMockUART()
	a.peer = b
	b.peer = a
	return a, b
}

// NewMockUART returns a standalone MockUART with no peer; tests enqueue
// frames onto it directly with Feed.
func NewMockUART() *MockUART {
	return &MockUART{
		ch:          make(chan [constants.FrameSize]byte, constants.MaxPacketsPerMessage),
		readTimeout: 50 * time.Millisecond,
	}
}

// WithReadTimeout overrides the default simulated read timeout.
func (m *MockUART) WithReadTimeout(d time.Duration) *MockUART {
	m.readTimeout = d
	return m
}

// Feed enqueues a frame for a future ReadFrame call to return.
func (m *MockUART) Feed(frame [constants.FrameSize]byte) {
	m.ch <- frame
}

func (m *MockUART) ReadFrame(ctx context.Context) ([constants.FrameSize]byte, error) {
	var zero [constants.FrameSize]byte

	m.mu.Lock()
	failErr := m.FailRead
	m.mu.Unlock()
	if failErr != nil {
		return zero, failErr
	}

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case frame := <-m.ch:
		return frame, nil
	case <-time.After(m.readTimeout):
		return zero, fsw.NewError("transport.MockUART.ReadFrame", fsw.ErrTransport, "simulated read timeout")
	}
}

func (m *MockUART) WriteFrame(ctx context.Context, frame [constants.FrameSize]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.writes = append(m.writes, frame)
	drop := m.DropNextWrite
	m.DropNextWrite = false
	peer := m.peer
	m.mu.Unlock()

	if drop || peer == nil {
		return nil
	}
	peer.Feed(frame)
	return nil
}

// Writes returns every frame written so far, in order.
func (m *MockUART) Writes() [][constants.FrameSize]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][constants.FrameSize]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

var _ UART = (*MockUART)(nil)
