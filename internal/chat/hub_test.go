package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"huddle/internal/push"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := NewStore(log, filepath.Join(t.TempDir(), "history.json"))
	hub := NewHub(log, store, NewPresence(), DefaultCredentials(), push.NewRegistry(log, "", "", ""))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func connect(hub *Hub) *Client {
	client := NewClient(nil, 16)
	hub.Register <- client
	return client
}

func recvEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return Envelope{}
	}
}

func recvPayload[T any](t *testing.T, c *Client, event string) T {
	t.Helper()
	env := recvEnvelope(t, c)
	require.Equal(t, event, env.Event)
	var payload T
	if len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, &payload))
	}
	return payload
}

func requireSilence(t *testing.T, clients ...*Client) {
	t.Helper()
	for _, c := range clients {
		select {
		case data := <-c.Send:
			t.Fatalf("unexpected frame: %s", data)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func login(t *testing.T, hub *Hub, c *Client, username string) {
	t.Helper()
	hub.Inbound <- Frame{Client: c, Event: LoginRequest{Username: username, Password: "password123"}}
	result := recvPayload[LoginResult](t, c, EventLoginResult)
	require.True(t, result.Success)
	// Drain the join announcement and the presence refresh.
	recvPayload[ChatMessage](t, c, EventNewMessage)
	recvPayload[[]PresenceEntry](t, c, EventOnlineUsers)
}

func TestHub_LoginSuccessReturnsFullHistory(t *testing.T) {
	hub := newTestHub(t)
	a := connect(hub)

	hub.Inbound <- Frame{Client: a, Event: LoginRequest{Username: "admin", Password: "password123"}}

	result := recvPayload[LoginResult](t, a, EventLoginResult)
	require.True(t, result.Success)
	require.Equal(t, "admin", result.Username)
	require.Empty(t, result.History)

	join := recvPayload[ChatMessage](t, a, EventNewMessage)
	require.Equal(t, SystemUser, join.User)
	require.Equal(t, MessageSystem, join.Type)
	require.Contains(t, join.Text, "admin")

	users := recvPayload[[]PresenceEntry](t, a, EventOnlineUsers)
	require.Equal(t, []PresenceEntry{{ID: a.ID, Name: "admin"}}, users)

	// A later login replays everything accumulated so far.
	b := connect(hub)
	hub.Inbound <- Frame{Client: b, Event: LoginRequest{Username: "friend", Password: "password123"}}
	result = recvPayload[LoginResult](t, b, EventLoginResult)
	require.True(t, result.Success)
	require.Len(t, result.History, 1)
	require.Equal(t, join.ID, result.History[0].ID)
}

func TestHub_LoginFailureMutatesNothing(t *testing.T) {
	hub := newTestHub(t)
	a := connect(hub)

	hub.Inbound <- Frame{Client: a, Event: LoginRequest{Username: "admin", Password: "nope"}}

	result := recvPayload[LoginResult](t, a, EventLoginResult)
	require.False(t, result.Success)
	require.NotEmpty(t, result.Msg)
	require.Empty(t, result.History)

	require.Empty(t, hub.presence.Snapshot())
	require.Empty(t, hub.store.Snapshot())
	requireSilence(t, a)

	// The connection stays open and may retry.
	hub.Inbound <- Frame{Client: a, Event: LoginRequest{Username: "admin", Password: "password123"}}
	result = recvPayload[LoginResult](t, a, EventLoginResult)
	require.True(t, result.Success)
}

func TestHub_UnauthenticatedSendForcesLogout(t *testing.T) {
	hub := newTestHub(t)
	a := connect(hub)
	b := connect(hub)

	hub.Inbound <- Frame{Client: a, Event: SendMessageRequest{Text: "hi"}}

	env := recvEnvelope(t, a)
	require.Equal(t, EventForceLogout, env.Event)
	require.Empty(t, hub.store.Snapshot())
	requireSilence(t, a, b)
}

func TestHub_MessageAndReadReceiptScenario(t *testing.T) {
	hub := newTestHub(t)
	a := connect(hub)
	login(t, hub, a, "admin")

	hub.Inbound <- Frame{Client: a, Event: SendMessageRequest{Text: "hi", Type: MessageText}}

	msg := recvPayload[ChatMessage](t, a, EventNewMessage)
	require.Equal(t, "admin", msg.User)
	require.Equal(t, "hi", msg.Text)
	require.Equal(t, MessageText, msg.Type)
	require.Empty(t, msg.ReadBy)
	require.Len(t, hub.store.Snapshot(), 2) // join announcement + message

	hub.Inbound <- Frame{Client: a, Event: MarkReadRequest{MessageID: msg.ID, User: "friend"}}
	receipt := recvPayload[ReadReceipt](t, a, EventMessageRead)
	require.Equal(t, msg.ID, receipt.MessageID)
	require.Equal(t, []string{"friend"}, receipt.ReadBy)

	// Repeating the same receipt broadcasts nothing.
	hub.Inbound <- Frame{Client: a, Event: MarkReadRequest{MessageID: msg.ID, User: "friend"}}
	requireSilence(t, a)

	// An unknown message id is silently ignored.
	hub.Inbound <- Frame{Client: a, Event: MarkReadRequest{MessageID: "no-such-id", User: "friend"}}
	requireSilence(t, a)
}

func TestHub_MessageWithoutTypeDefaultsToText(t *testing.T) {
	hub := newTestHub(t)
	a := connect(hub)
	login(t, hub, a, "admin")

	hub.Inbound <- Frame{Client: a, Event: SendMessageRequest{Text: "/uploads/cat.png"}}
	msg := recvPayload[ChatMessage](t, a, EventNewMessage)
	require.Equal(t, MessageText, msg.Type)
}

func TestHub_SignalingRelay(t *testing.T) {
	hub := newTestHub(t)
	a := connect(hub)
	login(t, hub, a, "admin")
	b := connect(hub)

	// The relay forwards the caller-supplied display name untouched, even
	// when it differs from the login binding.
	offer := json.RawMessage(`{"sdp":"offer"}`)
	hub.Inbound <- Frame{Client: a, Event: CallOffer{UserToCall: b.ID, SignalData: offer, From: "Admin (laptop)"}}
	incoming := recvPayload[IncomingCall](t, b, EventCallMade)
	require.Equal(t, a.ID, incoming.Socket)
	require.Equal(t, "Admin (laptop)", incoming.Name)
	require.JSONEq(t, string(offer), string(incoming.Offer))

	answer := json.RawMessage(`{"sdp":"answer"}`)
	hub.Inbound <- Frame{Client: b, Event: CallAnswer{To: a.ID, Signal: answer}}
	made := recvPayload[AnswerMade](t, a, EventAnswerMade)
	require.Equal(t, b.ID, made.Socket)
	require.JSONEq(t, string(answer), string(made.Answer))

	candidate := json.RawMessage(`{"candidate":"c0"}`)
	hub.Inbound <- Frame{Client: a, Event: IceCandidate{To: b.ID, Candidate: candidate}}
	remote := recvPayload[RemoteCandidate](t, b, EventIceCandidate)
	require.Equal(t, a.ID, remote.Socket)
	require.JSONEq(t, string(candidate), string(remote.Candidate))

	hub.Inbound <- Frame{Client: b, Event: CallEnd{To: a.ID}}
	env := recvEnvelope(t, a)
	require.Equal(t, EventCallEnded, env.Event)

	requireSilence(t, a, b)
}

func TestHub_OfferRelayDoesNotRequireLogin(t *testing.T) {
	hub := newTestHub(t)
	a := connect(hub)
	b := connect(hub)

	// Neither side is authenticated; the relay still forwards by
	// connection identity and carries the name the caller supplied.
	hub.Inbound <- Frame{Client: a, Event: CallOffer{UserToCall: b.ID, SignalData: json.RawMessage(`{}`), From: "Alice"}}

	incoming := recvPayload[IncomingCall](t, b, EventCallMade)
	require.Equal(t, a.ID, incoming.Socket)
	require.Equal(t, "Alice", incoming.Name)
}

func TestHub_SignalingToGoneConnectionIsDropped(t *testing.T) {
	hub := newTestHub(t)
	a := connect(hub)

	hub.Inbound <- Frame{Client: a, Event: CallOffer{UserToCall: "gone", SignalData: json.RawMessage(`{}`)}}
	hub.Inbound <- Frame{Client: a, Event: CallAnswer{To: "gone"}}
	hub.Inbound <- Frame{Client: a, Event: IceCandidate{To: "gone"}}
	hub.Inbound <- Frame{Client: a, Event: CallEnd{To: "gone"}}
	hub.Inbound <- Frame{Client: a, Event: CallEnd{}} // "to" absent: no-op

	requireSilence(t, a)
}

func TestHub_DisconnectAnnouncesLeave(t *testing.T) {
	hub := newTestHub(t)
	a := connect(hub)
	login(t, hub, a, "admin")
	b := connect(hub)
	login(t, hub, b, "friend")
	recvPayload[ChatMessage](t, a, EventNewMessage)      // friend joined
	recvPayload[[]PresenceEntry](t, a, EventOnlineUsers) // refreshed presence

	hub.Unregister <- b

	left := recvPayload[ChatMessage](t, a, EventNewMessage)
	require.Equal(t, SystemUser, left.User)
	require.Contains(t, left.Text, "friend")

	users := recvPayload[[]PresenceEntry](t, a, EventOnlineUsers)
	require.Equal(t, []PresenceEntry{{ID: a.ID, Name: "admin"}}, users)

	_, open := <-b.Send
	require.False(t, open, "disconnected client's send channel should be closed")
}

func TestHub_DisconnectBeforeLoginIsSilent(t *testing.T) {
	hub := newTestHub(t)
	a := connect(hub)
	login(t, hub, a, "admin")
	b := connect(hub)

	hub.Unregister <- b
	requireSilence(t, a)
	require.Len(t, hub.presence.Snapshot(), 1)
}

func TestHub_UnregisterUnknownClientIsNoOp(t *testing.T) {
	hub := newTestHub(t)
	stranger := NewClient(nil, 1)

	hub.Unregister <- stranger

	// The hub keeps serving afterwards.
	a := connect(hub)
	login(t, hub, a, "admin")
}

func TestHub_ReloginOverwritesBinding(t *testing.T) {
	hub := newTestHub(t)
	a := connect(hub)
	login(t, hub, a, "admin")

	hub.Inbound <- Frame{Client: a, Event: LoginRequest{Username: "guest", Password: "password123"}}
	result := recvPayload[LoginResult](t, a, EventLoginResult)
	require.True(t, result.Success)
	recvPayload[ChatMessage](t, a, EventNewMessage)
	users := recvPayload[[]PresenceEntry](t, a, EventOnlineUsers)

	require.Equal(t, []PresenceEntry{{ID: a.ID, Name: "guest"}}, users)
}
