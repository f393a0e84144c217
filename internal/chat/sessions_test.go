package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowshare/internal/logger"
)

func newTestSessions() *Sessions {
	return NewSessions(logger.NewLogger())
}

func TestRequestStartsPending(t *testing.T) {
	sessions := newTestSessions()

	require.True(t, sessions.Request("a", "b"))
	assert.Equal(t, StatePending, sessions.StateOf("a", "b"))
	assert.False(t, sessions.Active("a", "b"))
}

func TestRequestIsIdempotentWhilePending(t *testing.T) {
	sessions := newTestSessions()

	require.True(t, sessions.Request("a", "b"))
	assert.False(t, sessions.Request("a", "b"), "re-request must not start a second cycle")
	assert.Equal(t, StatePending, sessions.StateOf("a", "b"))
}

func TestConcurrentRequestsYieldOnePendingOwner(t *testing.T) {
	sessions := newTestSessions()

	var wg sync.WaitGroup
	results := make([]bool, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0] = sessions.Request("a", "b")
	}()
	go func() {
		defer wg.Done()
		results[1] = sessions.Request("b", "a")
	}()
	wg.Wait()

	started := 0
	for _, r := range results {
		if r {
			started++
		}
	}
	assert.Equal(t, 1, started, "exactly one side may own the pending request")
	assert.Equal(t, StatePending, sessions.StateOf("a", "b"))
}

func TestAcceptActivatesSession(t *testing.T) {
	sessions := newTestSessions()

	require.True(t, sessions.Request("a", "b"))
	require.True(t, sessions.Accept("b", "a"))
	assert.True(t, sessions.Active("a", "b"))
	assert.True(t, sessions.Active("b", "a"), "active state is symmetric")
}

func TestAcceptByRequesterIsIgnored(t *testing.T) {
	sessions := newTestSessions()

	require.True(t, sessions.Request("a", "b"))
	assert.False(t, sessions.Accept("a", "b"), "requester cannot accept its own request")
	assert.Equal(t, StatePending, sessions.StateOf("a", "b"))
}

func TestAcceptWithoutRequestIsIgnored(t *testing.T) {
	sessions := newTestSessions()

	assert.False(t, sessions.Accept("b", "a"))
	assert.Equal(t, StateNone, sessions.StateOf("a", "b"))
}

func TestAcceptTwiceIsIgnored(t *testing.T) {
	sessions := newTestSessions()

	require.True(t, sessions.Request("a", "b"))
	require.True(t, sessions.Accept("b", "a"))
	assert.False(t, sessions.Accept("b", "a"))
	assert.True(t, sessions.Active("a", "b"))
}

func TestDeclineClosesSession(t *testing.T) {
	sessions := newTestSessions()

	require.True(t, sessions.Request("a", "b"))
	require.True(t, sessions.Decline("b", "a"))
	assert.Equal(t, StateNone, sessions.StateOf("a", "b"))

	// A fresh cycle must be possible after a decline.
	assert.True(t, sessions.Request("a", "b"))
}

func TestDeclineOfActiveSessionIsIgnored(t *testing.T) {
	sessions := newTestSessions()

	require.True(t, sessions.Request("a", "b"))
	require.True(t, sessions.Accept("b", "a"))
	assert.False(t, sessions.Decline("b", "a"))
	assert.True(t, sessions.Active("a", "b"))
}

func TestSelfChatIsRejected(t *testing.T) {
	sessions := newTestSessions()

	assert.False(t, sessions.Request("a", "a"))
	assert.Equal(t, StateNone, sessions.StateOf("a", "a"))
}

func TestDropPeerClosesAllItsSessions(t *testing.T) {
	sessions := newTestSessions()

	require.True(t, sessions.Request("a", "b"))
	require.True(t, sessions.Accept("b", "a"))
	require.True(t, sessions.Request("c", "a"))

	sessions.DropPeer("a")

	assert.Equal(t, StateNone, sessions.StateOf("a", "b"))
	assert.Equal(t, StateNone, sessions.StateOf("a", "c"))
}

func TestFreshRequestAfterDisconnect(t *testing.T) {
	sessions := newTestSessions()

	require.True(t, sessions.Request("a", "b"))
	require.True(t, sessions.Accept("b", "a"))
	sessions.DropPeer("b")

	require.True(t, sessions.Request("a", "b"), "pair must be reusable after disconnect")
	assert.Equal(t, StatePending, sessions.StateOf("a", "b"))
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "NONE", StateNone.String())
	assert.Equal(t, "PENDING", StatePending.String())
	assert.Equal(t, "ACTIVE", StateActive.String())
}
