package threadkit

import (
	"sync"

	"github.com/golang/glog"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// hub topics published by the engine and realtime client
const (
	TopicStateChange    = "stateChange"
	TopicCommentAdded   = "commentAdded"
	TopicCommentDeleted = "commentDeleted"
	TopicCommentEdited  = "commentEdited"
	TopicCommentPinned  = "commentPinned"
	TopicUserBanned     = "userBanned"
	TopicTyping         = "typing"
	TopicPresence       = "presence"
	TopicConnection     = "connection"
	TopicLogin          = "login"
	TopicLogout         = "logout"
	TopicOtpRequested   = "otpRequested"
)

type HandlerFunc func(payload any)

type subscriberEntry struct {
	subId   int
	handler HandlerFunc
}

// Hub is a typed event bus with named topics and synchronous fan-out.
// it is the sole notification mechanism consumers observe. nothing polls.
type Hub struct {
	mutex     sync.Mutex
	nextSubId int
	// copy-on-write. `Publish` iterates a snapshot outside the lock so a
	// handler can subscribe or unsubscribe without deadlock.
	subscribers map[string][]*subscriberEntry
}

func NewHub() *Hub {
	return &Hub{
		subscribers: map[string][]*subscriberEntry{},
	}
}

// Subscribe registers a handler on a topic and returns the unsubscribe
// function. handlers are called in subscription order. calling the
// returned function more than once is a no-op.
func (self *Hub) Subscribe(topic string, handler HandlerFunc) func() {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.nextSubId += 1
	entry := &subscriberEntry{
		subId:   self.nextSubId,
		handler: handler,
	}
	next := slices.Clone(self.subscribers[topic])
	next = append(next, entry)
	self.subscribers[topic] = next

	subId := entry.subId
	return func() {
		self.unsubscribeId(topic, subId)
	}
}

func (self *Hub) unsubscribeId(topic string, subId int) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	entries := self.subscribers[topic]
	i := slices.IndexFunc(entries, func(entry *subscriberEntry) bool {
		return entry.subId == subId
	})
	if i < 0 {
		// already removed
		return
	}
	next := slices.Clone(entries)
	next = slices.Delete(next, i, i+1)
	if len(next) == 0 {
		delete(self.subscribers, topic)
	} else {
		self.subscribers[topic] = next
	}
}

// Publish invokes every current subscriber of the topic synchronously,
// in subscription order, on the calling goroutine. a panicking handler
// is logged and does not stop the remaining handlers.
func (self *Hub) Publish(topic string, payload any) {
	self.mutex.Lock()
	entries := self.subscribers[topic]
	self.mutex.Unlock()

	for _, entry := range entries {
		self.dispatch(topic, entry, payload)
	}
}

func (self *Hub) dispatch(topic string, entry *subscriberEntry, payload any) {
	defer func() {
		if r := recover(); r != nil {
			glog.Warningf("[hub]handler panic %s = %v\n", topic, r)
		}
	}()
	entry.handler(payload)
}

// UnsubscribeAll removes every subscriber of the given topics,
// or every subscriber of every topic when called with no arguments.
func (self *Hub) UnsubscribeAll(topics ...string) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	if len(topics) == 0 {
		topics = maps.Keys(self.subscribers)
	}
	for _, topic := range topics {
		delete(self.subscribers, topic)
	}
}

func (self *Hub) SubscriberCount(topic string) int {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	return len(self.subscribers[topic])
}
