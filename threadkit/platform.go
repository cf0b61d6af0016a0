package threadkit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"golang.org/x/exp/slices"
)

// narrow capability interfaces over the host platform.
// a browser host backs these with a websocket, a broadcast channel, and
// local storage. the defaults here are enough for native hosts and tests.

// Transport dials one duplex message connection to the push endpoint.
type Transport interface {
	Dial(ctx context.Context, url string) (TransportConn, error)
}

type TransportConn interface {
	// ReadMessage blocks until one inbound message or a connection error
	ReadMessage() ([]byte, error)
	WriteMessage(message []byte, deadline time.Time) error
	Close() error
}

type wsTransport struct {
	handshakeTimeout time.Duration
}

// NewWsTransport returns the default websocket-backed transport.
func NewWsTransport(handshakeTimeout time.Duration) Transport {
	return &wsTransport{
		handshakeTimeout: handshakeTimeout,
	}
}

func (self *wsTransport) Dial(ctx context.Context, url string) (TransportConn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: self.handshakeTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{
		ws: ws,
	}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (self *wsConn) ReadMessage() ([]byte, error) {
	for {
		messageType, message, err := self.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			return message, nil
		default:
			// control frames are handled by the websocket library
		}
	}
}

func (self *wsConn) WriteMessage(message []byte, deadline time.Time) error {
	self.ws.SetWriteDeadline(deadline)
	return self.ws.WriteMessage(websocket.TextMessage, message)
}

func (self *wsConn) Close() error {
	return self.ws.Close()
}

// Broadcaster is a same-origin broadcast bus shared by sibling tabs.
// a message sent on one endpoint is delivered to every other endpoint,
// never back to the sender.
type Broadcaster interface {
	Send(message []byte) error
	// Messages is closed when the broadcaster is closed
	Messages() <-chan []byte
	Close()
}

// MemoryBroadcastChannel connects Broadcaster endpoints in one process.
// it stands in for the browser broadcast channel on native hosts and in
// tests.
type MemoryBroadcastChannel struct {
	mutex     sync.Mutex
	endpoints []*memoryBroadcaster
}

func NewMemoryBroadcastChannel() *MemoryBroadcastChannel {
	return &MemoryBroadcastChannel{}
}

func (self *MemoryBroadcastChannel) Open() Broadcaster {
	endpoint := &memoryBroadcaster{
		channel:  self,
		messages: make(chan []byte, 32),
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.endpoints = append(self.endpoints, endpoint)
	return endpoint
}

func (self *MemoryBroadcastChannel) send(from *memoryBroadcaster, message []byte) {
	self.mutex.Lock()
	endpoints := slices.Clone(self.endpoints)
	self.mutex.Unlock()

	for _, endpoint := range endpoints {
		if endpoint == from {
			continue
		}
		endpoint.deliver(message)
	}
}

func (self *MemoryBroadcastChannel) remove(endpoint *memoryBroadcaster) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	i := slices.Index(self.endpoints, endpoint)
	if 0 <= i {
		self.endpoints = slices.Delete(slices.Clone(self.endpoints), i, i+1)
	}
}

type memoryBroadcaster struct {
	channel *MemoryBroadcastChannel

	mutex    sync.Mutex
	closed   bool
	messages chan []byte
}

func (self *memoryBroadcaster) Send(message []byte) error {
	self.mutex.Lock()
	closed := self.closed
	self.mutex.Unlock()
	if closed {
		return errors.New("broadcaster closed")
	}
	self.channel.send(self, message)
	return nil
}

func (self *memoryBroadcaster) deliver(message []byte) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.closed {
		return
	}
	select {
	case self.messages <- message:
	default:
		// receiver is not draining, drop
	}
}

func (self *memoryBroadcaster) Messages() <-chan []byte {
	return self.messages
}

func (self *memoryBroadcaster) Close() {
	self.mutex.Lock()
	if self.closed {
		self.mutex.Unlock()
		return
	}
	self.closed = true
	close(self.messages)
	self.mutex.Unlock()

	self.channel.remove(self)
}

// KeyValueStore is the host's persistent key-value storage.
// the engine only reads tokens out of it. writing and refreshing tokens
// is the identity collaborator's job.
type KeyValueStore interface {
	Get(key string) (string, bool)
	Set(key string, value string)
	Remove(key string)
}

type MemoryStore struct {
	mutex  sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: map[string]string{},
	}
}

func (self *MemoryStore) Get(key string) (string, bool) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	value, ok := self.values[key]
	return value, ok
}

func (self *MemoryStore) Set(key string, value string) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.values[key] = value
}

func (self *MemoryStore) Remove(key string) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	delete(self.values, key)
}
