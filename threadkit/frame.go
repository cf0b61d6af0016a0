package threadkit

import (
	"encoding/json"
	"fmt"
)

// push channel wire format: a json envelope `{type, payload}` per frame.
// the channel is best-effort telemetry for ux. canonical state always
// comes from the api, so undecodable frames are dropped, never fatal.

const (
	FrameTypeCommentAdded   = "comment_added"
	FrameTypeCommentDeleted = "comment_deleted"
	FrameTypeCommentEdited  = "comment_edited"
	FrameTypeCommentPinned  = "comment_pinned"
	FrameTypeUserBanned     = "user_banned"
	FrameTypeTyping         = "typing"
	FrameTypePresence       = "presence"
)

type PushFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// decoded frame payloads. these are also the payloads published on the hub.

type CommentAdded struct {
	Comment *CommentNode `json:"comment"`
}

type CommentDeleted struct {
	Id string `json:"id"`
}

type CommentEdited struct {
	Id         string `json:"id"`
	Text       string `json:"text"`
	Html       string `json:"html,omitempty"`
	ModifiedAt int64  `json:"modified_at,omitempty"`
}

type CommentPinned struct {
	Id     string `json:"id"`
	Pinned bool   `json:"pinned"`
}

type UserBanned struct {
	UserId string `json:"user_id"`
}

type Typing struct {
	UserId   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
}

type Presence struct {
	Count int `json:"count"`
}

func ToFrame(message any) (*PushFrame, error) {
	var frameType string
	switch v := message.(type) {
	case *CommentAdded:
		frameType = FrameTypeCommentAdded
	case *CommentDeleted:
		frameType = FrameTypeCommentDeleted
	case *CommentEdited:
		frameType = FrameTypeCommentEdited
	case *CommentPinned:
		frameType = FrameTypeCommentPinned
	case *UserBanned:
		frameType = FrameTypeUserBanned
	case *Typing:
		frameType = FrameTypeTyping
	case *Presence:
		frameType = FrameTypePresence
	default:
		return nil, fmt.Errorf("unknown frame message type: %T", v)
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}
	return &PushFrame{
		Type:    frameType,
		Payload: payload,
	}, nil
}

func FromFrame(frame *PushFrame) (any, error) {
	var message any
	switch frame.Type {
	case FrameTypeCommentAdded:
		message = &CommentAdded{}
	case FrameTypeCommentDeleted:
		message = &CommentDeleted{}
	case FrameTypeCommentEdited:
		message = &CommentEdited{}
	case FrameTypeCommentPinned:
		message = &CommentPinned{}
	case FrameTypeUserBanned:
		message = &UserBanned{}
	case FrameTypeTyping:
		message = &Typing{}
	case FrameTypePresence:
		message = &Presence{}
	default:
		return nil, fmt.Errorf("unknown frame type: %s", frame.Type)
	}
	if 0 < len(frame.Payload) {
		if err := json.Unmarshal(frame.Payload, message); err != nil {
			return nil, err
		}
	}
	return message, nil
}

func EncodeFrame(message any) ([]byte, error) {
	frame, err := ToFrame(message)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame)
}

func DecodeFrame(b []byte) (any, error) {
	frame := &PushFrame{}
	if err := json.Unmarshal(b, frame); err != nil {
		return nil, err
	}
	return FromFrame(frame)
}
