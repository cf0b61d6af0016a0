package threadkit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type RealtimeClientSettings struct {
	WsHandshakeTimeout time.Duration
	ReconnectTimeout   time.Duration
	TypingTimeout      time.Duration
	WriteTimeout       time.Duration
	// Transport overrides the default websocket transport when set
	Transport Transport
}

func DefaultRealtimeClientSettings() *RealtimeClientSettings {
	return &RealtimeClientSettings{
		WsHandshakeTimeout: 2 * time.Second,
		ReconnectTimeout:   3 * time.Second,
		TypingTimeout:      3 * time.Second,
		WriteTimeout:       5 * time.Second,
	}
}

// ConnectionState is ephemeral. it is never persisted and is rebuilt from
// scratch on every (re)connect, populated solely from inbound frames.
type ConnectionState struct {
	Connected     bool
	PresenceCount int
	// userId -> userName
	TypingUsers map[string]string
}

// ConnectionChange is published on TopicConnection.
type ConnectionChange struct {
	Connected bool
}

// TypingUpdate is published on TopicTyping after every change to the
// typing set, including expiries. Users is the full set after the change.
type TypingUpdate struct {
	Users []TypingUser
}

type TypingUser struct {
	UserId   string
	UserName string
}

type typingEntry struct {
	userName string
	timer    *time.Timer
}

// RealtimeClient owns one duplex connection to the push endpoint.
// it reconnects with a fixed backoff on any drop except a manual
// Disconnect, decodes push frames, republishes them on the hub, and
// tracks the presence count and the per-user typing set.
type RealtimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc

	hub   *Hub
	wsUrl string

	transport Transport
	settings  *RealtimeClientSettings

	mutex         sync.Mutex
	started       bool
	connected     bool
	conn          TransportConn
	presenceCount int
	typing        map[string]*typingEntry
}

func NewRealtimeClientWithDefaults(ctx context.Context, hub *Hub, wsUrl string) *RealtimeClient {
	return NewRealtimeClient(ctx, hub, wsUrl, DefaultRealtimeClientSettings())
}

func NewRealtimeClient(ctx context.Context, hub *Hub, wsUrl string, settings *RealtimeClientSettings) *RealtimeClient {
	cancelCtx, cancel := context.WithCancel(ctx)

	transport := settings.Transport
	if transport == nil {
		transport = NewWsTransport(settings.WsHandshakeTimeout)
	}

	return &RealtimeClient{
		ctx:       cancelCtx,
		cancel:    cancel,
		hub:       hub,
		wsUrl:     wsUrl,
		transport: transport,
		settings:  settings,
		typing:    map[string]*typingEntry{},
	}
}

// PushUrl derives the push endpoint from the api url.
func PushUrl(apiUrl string, siteId string, pageUrl string, token string) string {
	wsUrl := apiUrl
	if strings.HasPrefix(wsUrl, "https://") {
		wsUrl = "wss://" + wsUrl[len("https://"):]
	} else if strings.HasPrefix(wsUrl, "http://") {
		wsUrl = "ws://" + wsUrl[len("http://"):]
	}
	out := fmt.Sprintf("%s/ws/%s?url=%s", wsUrl, siteId, url.QueryEscape(pageUrl))
	if token != "" {
		out = fmt.Sprintf("%s&token=%s", out, url.QueryEscape(token))
	}
	return out
}

// Connect starts the connection loop. calling it again is a no-op.
func (self *RealtimeClient) Connect() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.started {
		return
	}
	self.started = true
	go self.run()
}

func (self *RealtimeClient) run() {
	defer self.cancel()

	for {
		conn, err := self.transport.Dial(self.ctx, self.wsUrl)
		if err != nil {
			glog.Infof("[rt]connect error = %s\n", err)
			select {
			case <-self.ctx.Done():
				return
			case <-time.After(self.settings.ReconnectTimeout):
				continue
			}
		}

		self.handle(conn)

		// any loss of connection other than a manual disconnect schedules
		// exactly one reconnection attempt after a fixed delay
		select {
		case <-self.ctx.Done():
			return
		case <-time.After(self.settings.ReconnectTimeout):
		}
	}
}

func (self *RealtimeClient) handle(conn TransportConn) {
	defer conn.Close()

	// a disconnect can land between the reconnect wait and the dial.
	// never come up connected after that. checked under the mutex so the
	// check and the state flip are atomic with respect to Disconnect
	self.mutex.Lock()
	select {
	case <-self.ctx.Done():
		self.mutex.Unlock()
		return
	default:
	}
	self.conn = conn
	self.connected = true
	self.mutex.Unlock()

	self.hub.Publish(TopicConnection, &ConnectionChange{Connected: true})

	defer self.teardown()

	for {
		select {
		case <-self.ctx.Done():
			return
		default:
		}

		b, err := conn.ReadMessage()
		if err != nil {
			glog.Infof("[rt]read error = %s\n", err)
			return
		}

		message, err := DecodeFrame(b)
		if err != nil {
			// best-effort channel, drop and keep the connection
			glog.V(2).Infof("[rt]drop frame = %s\n", err)
			continue
		}

		self.dispatch(message)
	}
}

func (self *RealtimeClient) dispatch(message any) {
	switch v := message.(type) {
	case *CommentAdded:
		self.hub.Publish(TopicCommentAdded, v)
	case *CommentDeleted:
		self.hub.Publish(TopicCommentDeleted, v)
	case *CommentEdited:
		self.hub.Publish(TopicCommentEdited, v)
	case *CommentPinned:
		self.hub.Publish(TopicCommentPinned, v)
	case *UserBanned:
		self.hub.Publish(TopicUserBanned, v)
	case *Typing:
		self.upsertTyping(v)
	case *Presence:
		// the server count is authoritative, replace verbatim
		self.mutex.Lock()
		self.presenceCount = v.Count
		self.mutex.Unlock()
		self.hub.Publish(TopicPresence, v)
	}
}

// upsertTyping refreshes an already-typing user in place. the previous
// expiry timer is always stopped before the new one starts, otherwise an
// old timer can evict the entry while a newer frame is still active.
func (self *RealtimeClient) upsertTyping(typing *Typing) {
	self.mutex.Lock()
	if entry, ok := self.typing[typing.UserId]; ok {
		entry.timer.Stop()
	}
	entry := &typingEntry{
		userName: typing.UserName,
	}
	entry.timer = time.AfterFunc(self.settings.TypingTimeout, func() {
		self.expireTyping(typing.UserId, entry)
	})
	self.typing[typing.UserId] = entry
	update := self.typingUpdate()
	self.mutex.Unlock()

	self.hub.Publish(TopicTyping, update)
}

func (self *RealtimeClient) expireTyping(userId string, entry *typingEntry) {
	self.mutex.Lock()
	if self.typing[userId] != entry {
		// refreshed or torn down since this timer was set
		self.mutex.Unlock()
		return
	}
	delete(self.typing, userId)
	update := self.typingUpdate()
	self.mutex.Unlock()

	self.hub.Publish(TopicTyping, update)
}

// must be called with the mutex held
func (self *RealtimeClient) typingUpdate() *TypingUpdate {
	users := []TypingUser{}
	userIds := maps.Keys(self.typing)
	slices.Sort(userIds)
	for _, userId := range userIds {
		users = append(users, TypingUser{
			UserId:   userId,
			UserName: self.typing[userId].userName,
		})
	}
	return &TypingUpdate{
		Users: users,
	}
}

// teardown clears all connection-derived state. it runs at most once per
// connection. the read pump's deferred call and a concurrent Disconnect
// can both reach it, whichever loses becomes a no-op.
func (self *RealtimeClient) teardown() {
	self.mutex.Lock()
	if !self.connected && self.conn == nil {
		self.mutex.Unlock()
		return
	}
	self.conn = nil
	self.connected = false
	self.presenceCount = 0
	for _, entry := range self.typing {
		entry.timer.Stop()
	}
	self.typing = map[string]*typingEntry{}
	self.mutex.Unlock()

	// presence and typing silently reset to empty on disconnect
	self.hub.Publish(TopicConnection, &ConnectionChange{Connected: false})
	self.hub.Publish(TopicPresence, &Presence{Count: 0})
	self.hub.Publish(TopicTyping, &TypingUpdate{Users: []TypingUser{}})
}

// SendTyping emits a typing frame when connected. calls while connecting
// or disconnected are dropped. typing indicators are transient, queueing
// a stale one would be worse than dropping it.
func (self *RealtimeClient) SendTyping() {
	self.mutex.Lock()
	conn := self.conn
	connected := self.connected
	self.mutex.Unlock()

	if !connected || conn == nil {
		return
	}

	b, err := EncodeFrame(&Typing{})
	if err != nil {
		return
	}
	if err := conn.WriteMessage(b, time.Now().Add(self.settings.WriteTimeout)); err != nil {
		glog.V(2).Infof("[rt]typing write error = %s\n", err)
	}
}

// State returns a copy-out snapshot of the connection state.
func (self *RealtimeClient) State() ConnectionState {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	typingUsers := map[string]string{}
	for userId, entry := range self.typing {
		typingUsers[userId] = entry.userName
	}
	return ConnectionState{
		Connected:     self.connected,
		PresenceCount: self.presenceCount,
		TypingUsers:   typingUsers,
	}
}

// Disconnect stops the client and suppresses further reconnection.
// it is the only path that does. safe to call multiple times.
// the state flip, presence/typing reset, and typing-timer cancellation
// all complete before Disconnect returns, not on the read pump.
func (self *RealtimeClient) Disconnect() {
	// cancels a pending reconnect wait and stops the run loop
	self.cancel()

	self.mutex.Lock()
	conn := self.conn
	self.mutex.Unlock()

	self.teardown()

	if conn != nil {
		// unblocks the read pump. its deferred teardown is now a no-op
		conn.Close()
	}
}
