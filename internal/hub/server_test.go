package hub

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowshare/internal/logger"
	"flowshare/internal/protocol"
	"flowshare/internal/store"
)

func startHub(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	st, err := store.NewStore(store.Config{
		DBPath:  filepath.Join(dir, "shares.sqlite3"),
		DataDir: filepath.Join(dir, "blobs"),
		Logger:  logger.NewLogger(),
	})
	require.NoError(t, err)

	srv, err := NewServer(Config{
		Addr:   "127.0.0.1:0",
		Store:  st,
		Logger: logger.NewLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = srv.Shutdown()
	})

	return srv
}

// testPeer is one websocket client; a background reader feeds every frame
// into msgs.
type testPeer struct {
	t     *testing.T
	id    string
	conn  *websocket.Conn
	codec *protocol.Codec
	msgs  chan protocol.Message
}

func dialPeer(t *testing.T, srv *Server, id string) *testPeer {
	t.Helper()

	url := "ws://" + srv.Addr() + "/api/ws/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	p := &testPeer{
		t:     t,
		id:    id,
		conn:  conn,
		codec: protocol.NewCodec(),
		msgs:  make(chan protocol.Message, 64),
	}

	go func() {
		defer close(p.msgs)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := p.codec.Decode(data)
			if err != nil {
				continue
			}
			p.msgs <- msg
		}
	}()

	t.Cleanup(func() { _ = conn.Close() })
	return p
}

func (p *testPeer) send(msg protocol.Message) {
	p.t.Helper()
	data, err := p.codec.Encode(msg)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, data))
}

// waitFor discards frames until one of the wanted type arrives.
func (p *testPeer) waitFor(msgType protocol.MessageType) protocol.Message {
	p.t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-p.msgs:
			if !ok {
				p.t.Fatalf("Connection of %s closed while waiting for %s", p.id, msgType)
			}
			if msg.Type() == msgType {
				return msg
			}
		case <-deadline:
			p.t.Fatalf("Peer %s never received %s", p.id, msgType)
		}
	}
}

// waitForUsers waits for a presence list matching the predicate; earlier,
// staler updates are skipped.
func (p *testPeer) waitForUsers(pred func([]protocol.UserInfo) bool) []protocol.UserInfo {
	p.t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-p.msgs:
			if !ok {
				p.t.Fatalf("Connection of %s closed while waiting for presence", p.id)
			}
			if update, isList := msg.(*protocol.UserListUpdate); isList && pred(update.Users) {
				return update.Users
			}
		case <-deadline:
			p.t.Fatalf("Peer %s never saw the expected presence list", p.id)
		}
	}
}

func (p *testPeer) expectSilence(msgType protocol.MessageType, d time.Duration) {
	p.t.Helper()

	deadline := time.After(d)
	for {
		select {
		case msg, ok := <-p.msgs:
			if !ok {
				return
			}
			if msg.Type() == msgType {
				p.t.Fatalf("Peer %s unexpectedly received %s", p.id, msgType)
			}
		case <-deadline:
			return
		}
	}
}

func TestConnectShareScenario(t *testing.T) {
	srv := startHub(t)

	peerA := dialPeer(t, srv, "peer-a")
	assignedA := peerA.waitFor(protocol.MsgCharacterAssigned).(*protocol.CharacterAssigned)
	assert.NotEmpty(t, assignedA.Character)
	assert.Equal(t, "peer-a", assignedA.UserID)

	peerB := dialPeer(t, srv, "peer-b")
	assignedB := peerB.waitFor(protocol.MsgCharacterAssigned).(*protocol.CharacterAssigned)
	assert.NotEmpty(t, assignedB.Character)

	// Both sides converge on a presence list containing only the other.
	usersA := peerA.waitForUsers(func(users []protocol.UserInfo) bool { return len(users) == 1 })
	assert.Equal(t, "peer-b", usersA[0].UserID)

	usersB := peerB.waitForUsers(func(users []protocol.UserInfo) bool { return len(users) == 1 })
	assert.Equal(t, "peer-a", usersB[0].UserID)

	peerA.send(&protocol.ShareNotification{
		ToUserIDs: []string{"peer-b"},
		ShareData: protocol.ShareData{Kind: protocol.ShareKindText, Title: "Shared Note", Content: "hi"},
	})

	incoming := peerB.waitFor(protocol.MsgIncomingShare).(*protocol.IncomingShare)
	assert.Equal(t, "peer-a", incoming.FromUserID)
	assert.Equal(t, assignedA.Character, incoming.FromCharacter)
	assert.Equal(t, "hi", incoming.ShareData.Content)
	assert.NotEmpty(t, incoming.Timestamp)

	peerA.waitFor(protocol.MsgShareSuccess)
}

func TestSharePartialFailureNamesOfflinePeer(t *testing.T) {
	srv := startHub(t)

	peerA := dialPeer(t, srv, "peer-a")
	peerA.waitFor(protocol.MsgCharacterAssigned)
	peerB := dialPeer(t, srv, "peer-b")
	peerB.waitFor(protocol.MsgCharacterAssigned)
	peerA.waitForUsers(func(users []protocol.UserInfo) bool { return len(users) == 1 })

	peerA.send(&protocol.ShareNotification{
		ToUserIDs: []string{"peer-b", "peer-c"},
		ShareData: protocol.ShareData{Kind: protocol.ShareKindText, Content: "partial"},
	})

	peerB.waitFor(protocol.MsgIncomingShare)

	failed := peerA.waitFor(protocol.MsgShareFailed).(*protocol.ShareFailed)
	assert.Contains(t, failed.Message, "peer-c")
	assert.Equal(t, []string{"peer-c"}, failed.FailedUserIDs)
}

func TestShareWithoutRecipientsFails(t *testing.T) {
	srv := startHub(t)

	peerA := dialPeer(t, srv, "peer-a")
	peerA.waitFor(protocol.MsgCharacterAssigned)

	peerA.send(&protocol.ShareNotification{
		ShareData: protocol.ShareData{Kind: protocol.ShareKindText, Content: "nobody"},
	})

	peerA.waitFor(protocol.MsgShareFailed)
}

func TestChatHandshakeAndRelay(t *testing.T) {
	srv := startHub(t)

	peerA := dialPeer(t, srv, "peer-a")
	assignedA := peerA.waitFor(protocol.MsgCharacterAssigned).(*protocol.CharacterAssigned)
	peerB := dialPeer(t, srv, "peer-b")
	assignedB := peerB.waitFor(protocol.MsgCharacterAssigned).(*protocol.CharacterAssigned)
	peerA.waitForUsers(func(users []protocol.UserInfo) bool { return len(users) == 1 })

	peerA.send(&protocol.ChatRequest{ToUserID: "peer-b"})

	request := peerB.waitFor(protocol.MsgChatRequest).(*protocol.ChatRequest)
	assert.Equal(t, "peer-a", request.FromUserID)
	assert.Equal(t, assignedA.Character, request.FromCharacter)

	peerB.send(&protocol.ChatAccept{ToUserID: "peer-a"})

	accept := peerA.waitFor(protocol.MsgChatAccept).(*protocol.ChatAccept)
	assert.Equal(t, "peer-b", accept.FromUserID)
	assert.Equal(t, assignedB.Character, accept.FromCharacter)

	peerA.send(&protocol.PrivateMessage{ToUserID: "peer-b", Content: "hello there"})

	relayed := peerB.waitFor(protocol.MsgPrivateMessage).(*protocol.PrivateMessage)
	assert.Equal(t, "peer-a", relayed.FromUserID)
	assert.Equal(t, "hello there", relayed.Content)
	assert.NotEmpty(t, relayed.Timestamp)
}

func TestChatDeclineReachesRequester(t *testing.T) {
	srv := startHub(t)

	peerA := dialPeer(t, srv, "peer-a")
	peerA.waitFor(protocol.MsgCharacterAssigned)
	peerB := dialPeer(t, srv, "peer-b")
	peerB.waitFor(protocol.MsgCharacterAssigned)
	peerA.waitForUsers(func(users []protocol.UserInfo) bool { return len(users) == 1 })

	peerA.send(&protocol.ChatRequest{ToUserID: "peer-b"})
	peerB.waitFor(protocol.MsgChatRequest)

	peerB.send(&protocol.ChatDecline{ToUserID: "peer-a"})

	decline := peerA.waitFor(protocol.MsgChatDecline).(*protocol.ChatDecline)
	assert.Equal(t, "peer-b", decline.FromUserID)
}

func TestChatRequestToOfflinePeerFailsImmediately(t *testing.T) {
	srv := startHub(t)

	peerA := dialPeer(t, srv, "peer-a")
	peerA.waitFor(protocol.MsgCharacterAssigned)

	peerA.send(&protocol.ChatRequest{ToUserID: "ghost"})

	decline := peerA.waitFor(protocol.MsgChatDecline).(*protocol.ChatDecline)
	assert.Equal(t, "ghost", decline.FromUserID)
}

func TestDuplicateChatRequestDeliveredOnce(t *testing.T) {
	srv := startHub(t)

	peerA := dialPeer(t, srv, "peer-a")
	peerA.waitFor(protocol.MsgCharacterAssigned)
	peerB := dialPeer(t, srv, "peer-b")
	peerB.waitFor(protocol.MsgCharacterAssigned)
	peerA.waitForUsers(func(users []protocol.UserInfo) bool { return len(users) == 1 })

	peerA.send(&protocol.ChatRequest{ToUserID: "peer-b"})
	peerA.send(&protocol.ChatRequest{ToUserID: "peer-b"})

	peerB.waitFor(protocol.MsgChatRequest)
	peerB.expectSilence(protocol.MsgChatRequest, 300*time.Millisecond)
}

func TestPrivateMessageWithoutSessionIsDropped(t *testing.T) {
	srv := startHub(t)

	peerA := dialPeer(t, srv, "peer-a")
	peerA.waitFor(protocol.MsgCharacterAssigned)
	peerB := dialPeer(t, srv, "peer-b")
	peerB.waitFor(protocol.MsgCharacterAssigned)
	peerA.waitForUsers(func(users []protocol.UserInfo) bool { return len(users) == 1 })

	peerA.send(&protocol.PrivateMessage{ToUserID: "peer-b", Content: "uninvited"})

	peerB.expectSilence(protocol.MsgPrivateMessage, 300*time.Millisecond)
}

func TestDisconnectResetsChatPair(t *testing.T) {
	srv := startHub(t)

	peerA := dialPeer(t, srv, "peer-a")
	peerA.waitFor(protocol.MsgCharacterAssigned)
	peerB := dialPeer(t, srv, "peer-b")
	peerB.waitFor(protocol.MsgCharacterAssigned)
	peerA.waitForUsers(func(users []protocol.UserInfo) bool { return len(users) == 1 })

	peerA.send(&protocol.ChatRequest{ToUserID: "peer-b"})
	peerB.waitFor(protocol.MsgChatRequest)
	peerB.send(&protocol.ChatAccept{ToUserID: "peer-a"})
	peerA.waitFor(protocol.MsgChatAccept)

	// B drops; A sees it leave.
	_ = peerB.conn.Close()
	peerA.waitForUsers(func(users []protocol.UserInfo) bool { return len(users) == 0 })

	// Same pair of peer ids, fresh cycle: the old ACTIVE state must be gone.
	peerB2 := dialPeer(t, srv, "peer-b")
	peerB2.waitFor(protocol.MsgCharacterAssigned)
	peerA.waitForUsers(func(users []protocol.UserInfo) bool { return len(users) == 1 })

	peerA.send(&protocol.PrivateMessage{ToUserID: "peer-b", Content: "stale session"})
	peerB2.expectSilence(protocol.MsgPrivateMessage, 300*time.Millisecond)

	peerA.send(&protocol.ChatRequest{ToUserID: "peer-b"})
	request := peerB2.waitFor(protocol.MsgChatRequest).(*protocol.ChatRequest)
	assert.Equal(t, "peer-a", request.FromUserID)
}

func TestPeerIDCollisionRefused(t *testing.T) {
	srv := startHub(t)

	peerA := dialPeer(t, srv, "peer-a")
	peerA.waitFor(protocol.MsgCharacterAssigned)

	url := "ws://" + srv.Addr() + "/api/ws/peer-a"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}

	// The original holder is untouched.
	peerA.send(&protocol.ShareNotification{
		ToUserIDs: []string{"peer-a"},
		ShareData: protocol.ShareData{Kind: protocol.ShareKindText, Content: "self"},
	})
	peerA.waitFor(protocol.MsgIncomingShare)
}
