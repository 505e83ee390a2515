package chat

import (
	"encoding/json"
	"fmt"
)

// Wire event names, shared with the browser client.
const (
	EventTryLogin     = "try_login"
	EventLoginResult  = "login_result"
	EventSendMessage  = "send_msg"
	EventNewMessage   = "receive_msg"
	EventMarkRead     = "mark_read"
	EventMessageRead  = "message_read"
	EventForceLogout  = "force_logout"
	EventOnlineUsers  = "online_users_update"
	EventCallUser     = "call-user"
	EventCallMade     = "call-made"
	EventMakeAnswer   = "make-answer"
	EventAnswerMade   = "answer-made"
	EventIceCandidate = "ice-candidate"
	EventCallEnded    = "call-ended"
)

// Envelope is the frame format on the wire: an event name plus its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// InboundEvent is the closed set of client-to-server events. Adding a
// variant here forces the hub dispatch switch to handle it.
type InboundEvent interface {
	inbound()
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SendMessageRequest struct {
	Text string      `json:"text"`
	Type MessageType `json:"type,omitempty"`
}

type MarkReadRequest struct {
	MessageID string `json:"messageId"`
	User      string `json:"user"`
}

// CallOffer initiates a call. Signaling payloads are forwarded opaque and
// never inspected; their semantics belong to the two endpoints.
type CallOffer struct {
	UserToCall string          `json:"userToCall"`
	SignalData json.RawMessage `json:"signalData"`
	From       string          `json:"from"`
}

type CallAnswer struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

type IceCandidate struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

type CallEnd struct {
	To string `json:"to"`
}

func (LoginRequest) inbound()       {}
func (SendMessageRequest) inbound() {}
func (MarkReadRequest) inbound()    {}
func (CallOffer) inbound()          {}
func (CallAnswer) inbound()         {}
func (IceCandidate) inbound()       {}
func (CallEnd) inbound()            {}

// DecodeInbound parses a wire frame into its typed event.
func DecodeInbound(data []byte) (InboundEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	switch env.Event {
	case EventTryLogin:
		return decodePayload[LoginRequest](env)
	case EventSendMessage:
		return decodePayload[SendMessageRequest](env)
	case EventMarkRead:
		return decodePayload[MarkReadRequest](env)
	case EventCallUser:
		return decodePayload[CallOffer](env)
	case EventMakeAnswer:
		return decodePayload[CallAnswer](env)
	case EventIceCandidate:
		return decodePayload[IceCandidate](env)
	case EventCallEnded:
		return decodePayload[CallEnd](env)
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
}

func decodePayload[T InboundEvent](env Envelope) (InboundEvent, error) {
	var payload T
	if len(env.Data) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", env.Event, err)
	}
	return payload, nil
}

// Outbound payloads.

type LoginResult struct {
	Success  bool          `json:"success"`
	Username string        `json:"username,omitempty"`
	History  []ChatMessage `json:"history,omitempty"`
	Msg      string        `json:"msg,omitempty"`
}

type ReadReceipt struct {
	MessageID string   `json:"messageId"`
	ReadBy    []string `json:"readBy"`
}

// IncomingCall mirrors a CallOffer to its target, annotated with the
// caller's connection id and display name.
type IncomingCall struct {
	Offer  json.RawMessage `json:"offer"`
	Socket string          `json:"socket"`
	Name   string          `json:"name"`
}

type AnswerMade struct {
	Socket string          `json:"socket"`
	Answer json.RawMessage `json:"answer"`
}

type RemoteCandidate struct {
	Socket    string          `json:"socket"`
	Candidate json.RawMessage `json:"candidate"`
}

// Encode builds a wire frame for an outbound event. A nil payload yields
// an envelope with no data field.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}
