package chat

import (
	"context"
	"fmt"
	"log/slog"

	"huddle/internal/push"
)

// Frame is one inbound event together with the connection it arrived on.
type Frame struct {
	Client *Client
	Event  InboundEvent
}

// Hub is the single coordinating component: every state mutation
// (authentication, append, read receipt, bind/unbind) runs inside its
// Run loop, one event at a time, in arrival order. Fan-out to clients
// goes through buffered per-client send channels with drop-on-full.
type Hub struct {
	log      *slog.Logger
	store    *Store
	presence *Presence
	creds    Credentials
	push     *push.Registry

	Register   chan *Client
	Unregister chan *Client
	Inbound    chan Frame

	clients map[string]*Client
	users   map[string]string // connection id -> authenticated username
}

func NewHub(log *slog.Logger, store *Store, presence *Presence, creds Credentials, pushReg *push.Registry) *Hub {
	return &Hub{
		log:        log,
		store:      store,
		presence:   presence,
		creds:      creds,
		push:       pushReg,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan Frame),
		clients:    map[string]*Client{},
		users:      map[string]string{},
	}
}

// Run is the event-processing loop. It must be the only goroutine that
// touches h.clients and h.users.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.Register:
			h.clients[client.ID] = client
			h.log.Debug("connection opened", "conn", client.ID)
		case client := <-h.Unregister:
			h.disconnect(client)
		case frame := <-h.Inbound:
			h.dispatch(frame)
		}
	}
}

func (h *Hub) dispatch(f Frame) {
	switch event := f.Event.(type) {
	case LoginRequest:
		h.login(f.Client, event)
	case SendMessageRequest:
		h.receiveMessage(f.Client, event)
	case MarkReadRequest:
		h.markRead(event)
	case CallOffer:
		h.relayOffer(f.Client, event)
	case CallAnswer:
		h.relayAnswer(f.Client, event)
	case IceCandidate:
		h.relayCandidate(f.Client, event)
	case CallEnd:
		h.relayHangup(event)
	}
}

// login is the session gate. Success binds the connection, replays the
// full history to the caller, announces the join and refreshes presence.
// Failure changes nothing and the connection may retry.
func (h *Hub) login(c *Client, req LoginRequest) {
	if !h.creds.Check(req.Username, req.Password) {
		h.log.Info("login rejected", "user", req.Username, "conn", c.ID)
		h.send(c, EventLoginResult, LoginResult{Success: false, Msg: "wrong username or password"})
		return
	}

	h.users[c.ID] = req.Username
	h.presence.Bind(c.ID, req.Username)
	h.log.Info("login accepted", "user", req.Username, "conn", c.ID)

	h.send(c, EventLoginResult, LoginResult{
		Success:  true,
		Username: req.Username,
		History:  h.store.Snapshot(),
	})
	h.systemMessage(fmt.Sprintf("%s joined the chat", req.Username))
	h.broadcastPresence()
}

func (h *Hub) receiveMessage(c *Client, req SendMessageRequest) {
	username, ok := h.users[c.ID]
	if !ok {
		h.send(c, EventForceLogout, nil)
		return
	}

	kind := req.Type
	if kind == "" {
		kind = MessageText
	}
	msg := NewMessage(username, req.Text, kind)
	h.store.Append(msg)
	h.broadcast(EventNewMessage, msg)

	body := req.Text
	if kind != MessageText {
		body = fmt.Sprintf("sent a %s", kind)
	}
	// Push delivery does network I/O per recipient; keep it off the loop.
	go h.push.NotifyOffline(username, push.Notification{
		Title: fmt.Sprintf("Message from %s", username),
		Body:  body,
		URL:   "/",
	})
}

func (h *Hub) markRead(req MarkReadRequest) {
	readBy, changed, found := h.store.MarkRead(req.MessageID, req.User)
	if !found || !changed {
		return
	}
	h.broadcast(EventMessageRead, ReadReceipt{MessageID: req.MessageID, ReadBy: readBy})
}

// Signaling relays forward opaque payloads by connection identity. An
// unknown target means the recipient is gone; the event is dropped
// without any error to the sender.

func (h *Hub) relayOffer(c *Client, offer CallOffer) {
	target, ok := h.clients[offer.UserToCall]
	if !ok {
		return
	}
	h.send(target, EventCallMade, IncomingCall{
		Offer:  offer.SignalData,
		Socket: c.ID,
		Name:   offer.From,
	})
}

func (h *Hub) relayAnswer(c *Client, answer CallAnswer) {
	target, ok := h.clients[answer.To]
	if !ok {
		return
	}
	h.send(target, EventAnswerMade, AnswerMade{Socket: c.ID, Answer: answer.Signal})
}

func (h *Hub) relayCandidate(c *Client, candidate IceCandidate) {
	target, ok := h.clients[candidate.To]
	if !ok {
		return
	}
	h.send(target, EventIceCandidate, RemoteCandidate{Socket: c.ID, Candidate: candidate.Candidate})
}

func (h *Hub) relayHangup(end CallEnd) {
	if end.To == "" {
		return
	}
	target, ok := h.clients[end.To]
	if !ok {
		return
	}
	h.send(target, EventCallEnded, nil)
}

func (h *Hub) disconnect(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	defer close(c.Send)

	username, authenticated := h.users[c.ID]
	if !authenticated {
		h.log.Debug("connection closed", "conn", c.ID)
		return
	}
	delete(h.users, c.ID)
	h.presence.Unbind(c.ID)
	h.log.Info("user disconnected", "user", username, "conn", c.ID)

	h.systemMessage(fmt.Sprintf("%s left the chat", username))
	h.broadcastPresence()
}

// systemMessage appends a server-authored message and broadcasts it.
func (h *Hub) systemMessage(text string) {
	msg := NewSystemMessage(text)
	h.store.Append(msg)
	h.broadcast(EventNewMessage, msg)
}

func (h *Hub) broadcastPresence() {
	h.broadcast(EventOnlineUsers, h.presence.Snapshot())
}

// broadcast sends to every connection regardless of authentication state.
func (h *Hub) broadcast(event string, payload any) {
	data, err := Encode(event, payload)
	if err != nil {
		h.log.Error("encoding broadcast failed", "event", event, "error", err)
		return
	}
	for _, client := range h.clients {
		h.deliver(client, data)
	}
}

func (h *Hub) send(c *Client, event string, payload any) {
	data, err := Encode(event, payload)
	if err != nil {
		h.log.Error("encoding send failed", "event", event, "error", err)
		return
	}
	h.deliver(c, data)
}

// deliver is best-effort: a full send buffer drops the frame.
func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.Send <- data:
	default:
		h.log.Debug("send buffer full, dropping frame", "conn", c.ID)
	}
}

func (h *Hub) shutdown() {
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
	h.log.Info("hub stopped")
}
