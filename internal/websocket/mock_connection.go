package websocket

import (
	"errors"
	"sync"
	"time"
)

// MockConnection is a scriptable Conn for tests, including tests in
// other packages that drive the hub. Writes are recorded; reads come
// from ReadMessageFunc when set and fail otherwise.
type MockConnection struct {
	mu sync.Mutex

	// WriteMessageFunc overrides the default record-and-succeed write.
	WriteMessageFunc func(messageType int, data []byte) error

	// ReadMessageFunc supplies scripted reads.
	ReadMessageFunc func() (messageType int, p []byte, err error)

	written []MockMessage
	closed  bool

	readLimit     int64
	readDeadline  time.Time
	writeDeadline time.Time
	pongHandler   func(string) error
}

// MockMessage is one recorded or scripted frame.
type MockMessage struct {
	Type int
	Data []byte
}

// NewMockConnection creates a mock connection ready for use.
func NewMockConnection() *MockConnection {
	return &MockConnection{}
}

func (m *MockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteMessageFunc != nil {
		if err := m.WriteMessageFunc(messageType, data); err != nil {
			return err
		}
	}

	// Copy: callers may reuse the buffer after WriteMessage returns.
	buf := make([]byte, len(data))
	copy(buf, data)
	m.written = append(m.written, MockMessage{Type: messageType, Data: buf})
	return nil
}

func (m *MockConnection) ReadMessage() (int, []byte, error) {
	m.mu.Lock()
	fn := m.ReadMessageFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return 0, nil, errors.New("mock connection: no scripted reads")
}

func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockConnection) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDeadline = t
	return nil
}

func (m *MockConnection) SetWriteDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeDeadline = t
	return nil
}

func (m *MockConnection) SetReadLimit(limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readLimit = limit
}

func (m *MockConnection) SetPongHandler(h func(string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pongHandler = h
}

func (m *MockConnection) RemoteAddr() string {
	return "mock:0"
}

// GetWrittenMessages returns a copy of every frame written so far.
func (m *MockConnection) GetWrittenMessages() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MockMessage, len(m.written))
	copy(out, m.written)
	return out
}

// IsClosed reports whether Close was called.
func (m *MockConnection) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
