package threadkit

import (
	"context"
	"encoding/json"

	"github.com/golang/glog"
)

const (
	RelayTypeLogin        = "login"
	RelayTypeLogout       = "logout"
	RelayTypeOtpRequested = "otp-requested"
)

// RelayMessage is the envelope carried on the cross-tab broadcast bus.
type RelayMessage struct {
	Type     string `json:"type"`
	SenderId string `json:"sender_id"`
	// Target is the otp destination (email or phone) for otp-requested
	Target string `json:"target,omitempty"`
}

// TabRelay mirrors auth activity across sibling tabs of the same origin
// so their caches and push connections stay consistent without a reload.
//
// inbound messages are republished on the local hub and never
// re-broadcast. without that suppression two tabs would echo each other
// forever. the sender id check is kept even though the memory channel
// never loops a message back, since some platform buses do.
type TabRelay struct {
	ctx    context.Context
	cancel context.CancelFunc

	hub         *Hub
	broadcaster Broadcaster

	instanceId Id
}

func NewTabRelay(ctx context.Context, hub *Hub, broadcaster Broadcaster) *TabRelay {
	cancelCtx, cancel := context.WithCancel(ctx)

	relay := &TabRelay{
		ctx:         cancelCtx,
		cancel:      cancel,
		hub:         hub,
		broadcaster: broadcaster,
		instanceId:  NewId(),
	}
	go relay.run()
	return relay
}

func (self *TabRelay) InstanceId() Id {
	return self.instanceId
}

func (self *TabRelay) run() {
	defer self.cancel()

	for {
		select {
		case <-self.ctx.Done():
			return
		case b, ok := <-self.broadcaster.Messages():
			if !ok {
				return
			}
			message := &RelayMessage{}
			if err := json.Unmarshal(b, message); err != nil {
				glog.V(2).Infof("[relay]drop message = %s\n", err)
				continue
			}
			if message.SenderId == self.instanceId.String() {
				// own echo
				continue
			}
			self.receive(message)
		}
	}
}

func (self *TabRelay) receive(message *RelayMessage) {
	switch message.Type {
	case RelayTypeLogin:
		// the auth layer re-reads shared storage and re-initializes
		self.hub.Publish(TopicLogin, message)
	case RelayTypeLogout:
		// local-only logout, must not re-broadcast
		self.hub.Publish(TopicLogout, message)
	case RelayTypeOtpRequested:
		// mirror the "code was requested" state without re-triggering
		// the network call
		self.hub.Publish(TopicOtpRequested, message)
	default:
		glog.V(2).Infof("[relay]drop unknown type = %s\n", message.Type)
	}
}

// NotifyLogin broadcasts a locally completed login to sibling tabs.
// call it after the local state change, never while relaying an inbound
// broadcast.
func (self *TabRelay) NotifyLogin() {
	self.send(&RelayMessage{
		Type: RelayTypeLogin,
	})
}

func (self *TabRelay) NotifyLogout() {
	self.send(&RelayMessage{
		Type: RelayTypeLogout,
	})
}

func (self *TabRelay) NotifyOtpRequested(target string) {
	self.send(&RelayMessage{
		Type:   RelayTypeOtpRequested,
		Target: target,
	})
}

func (self *TabRelay) send(message *RelayMessage) {
	message.SenderId = self.instanceId.String()
	b, err := json.Marshal(message)
	if err != nil {
		return
	}
	if err := self.broadcaster.Send(b); err != nil {
		glog.V(2).Infof("[relay]send error = %s\n", err)
	}
}

func (self *TabRelay) Close() {
	self.cancel()
	self.broadcaster.Close()
}
