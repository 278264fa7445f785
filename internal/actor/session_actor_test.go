package actor

import (
	"net"
	"testing"
	"time"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/league-deceiver/league-deceiver/internal/actor/messages"
	"github.com/league-deceiver/league-deceiver/internal/rewrite"
)

const testPresence = "<presence>" +
	"<show>chat</show>" +
	"<status>hi</status>" +
	"<games>" +
	"<league_of_legends><st>chat</st><p>x</p></league_of_legends>" +
	"<valorant><st>chat</st></valorant>" +
	"</games>" +
	"</presence>"

type sessionHarness struct {
	t         *testing.T
	system    *pactor.ActorSystem
	pid       *pactor.PID
	clientFar net.Conn // what the game client would see
	upFar     net.Conn // what the chat server would see
}

func newSessionHarness(t *testing.T, mode rewrite.Mode) *sessionHarness {
	t.Helper()

	system := pactor.NewActorSystem()
	supPID, err := system.Root.SpawnNamed(SupervisorProps(system, mode, true, nil), "supervisor-"+t.Name())
	require.NoError(t, err)

	clientNear, clientFar := net.Pipe()
	upNear, upFar := net.Pipe()
	t.Cleanup(func() {
		clientFar.Close()
		upFar.Close()
	})

	pid := system.Root.Spawn(SessionProps(system, supPID, clientNear, upNear))
	res, err := system.Root.RequestFuture(supPID, &messages.RegisterSession{PID: pid}, time.Second).Result()
	require.NoError(t, err)
	settings, ok := res.(*messages.SessionSettings)
	require.True(t, ok)
	system.Root.Send(pid, &messages.StartProxy{Settings: *settings})

	return &sessionHarness{t: t, system: system, pid: pid, clientFar: clientFar, upFar: upFar}
}

func readChunk(t *testing.T, conn net.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64*1024)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func writeChunk(conn net.Conn, data string) {
	go conn.Write([]byte(data))
}

func TestSessionPresenceRewrittenOffline(t *testing.T) {
	h := newSessionHarness(t, rewrite.ModeOffline)

	writeChunk(h.clientFar, testPresence)
	got := readChunk(t, h.upFar)
	assert.Equal(t, "<presence><show>offline</show><games></games></presence>", got)
}

func TestSessionNonPresencePassesThrough(t *testing.T) {
	h := newSessionHarness(t, rewrite.ModeOffline)

	writeChunk(h.clientFar, "<iq id='1' type='get'/>")
	assert.Equal(t, "<iq id='1' type='get'/>", readChunk(t, h.upFar))

	writeChunk(h.upFar, "<iq id='1' type='result'/>")
	assert.Equal(t, "<iq id='1' type='result'/>", readChunk(t, h.clientFar))
}

func TestSessionRosterSpliceAndAnnounce(t *testing.T) {
	h := newSessionHarness(t, rewrite.ModeOffline)

	roster := "<iq><query xmlns='jabber:iq:riotgames:roster'><item jid='friend@pvp.net'/></query></iq>"
	writeChunk(h.upFar, roster)
	patched := readChunk(t, h.clientFar)
	assert.Contains(t, patched, rewrite.RosterMarker+"<item jid='"+rewrite.FakePlayerJID+"'")
	assert.Contains(t, patched, "<item jid='friend@pvp.net'/>")

	// The next client chunk triggers the one-time synthetic presence push.
	writeChunk(h.clientFar, "<iq id='2' type='get'/>")
	assert.Equal(t, "<iq id='2' type='get'/>", readChunk(t, h.upFar))
	announce := readChunk(t, h.clientFar)
	assert.Contains(t, announce, "from='"+rewrite.FakePlayerJID+"/"+rewrite.FakePlayerResource+"'")
	assert.Contains(t, announce, "<show>chat</show>")

	// A second roster chunk is not patched again.
	writeChunk(h.upFar, roster)
	again := readChunk(t, h.clientFar)
	assert.NotContains(t, again, rewrite.FakePlayerJID)

	// And the announce happens only once.
	writeChunk(h.clientFar, "<iq id='3' type='get'/>")
	assert.Equal(t, "<iq id='3' type='get'/>", readChunk(t, h.upFar))
}

func TestSessionChatCommandToFakeContact(t *testing.T) {
	h := newSessionHarness(t, rewrite.ModeMobile)

	// Establish a last presence and the roster patch first.
	writeChunk(h.clientFar, testPresence)
	readChunk(t, h.upFar)
	writeChunk(h.upFar, "<iq><query xmlns='jabber:iq:riotgames:roster'></query></iq>")
	readChunk(t, h.clientFar)

	// Flush the one-time synthetic presence push.
	writeChunk(h.clientFar, "<iq id='2' type='get'/>")
	readChunk(t, h.upFar)
	readChunk(t, h.clientFar)

	// The command chunk is not forwarded upstream; instead the mode flips and
	// the stored presence is replayed under it.
	msg := "<message to='" + rewrite.FakePlayerJID + "' type='chat'><body>Offline please</body></message>"
	writeChunk(h.clientFar, msg)

	replayed := readChunk(t, h.upFar)
	assert.Equal(t, "<presence><show>offline</show><games></games></presence>", replayed)

	reply := readChunk(t, h.clientFar)
	assert.Contains(t, reply, "You are now appearing offline.")
}

func TestSessionUpdateStatusReplaysLastPresence(t *testing.T) {
	h := newSessionHarness(t, rewrite.ModeOffline)

	writeChunk(h.clientFar, testPresence)
	readChunk(t, h.upFar)

	h.system.Root.Send(h.pid, &messages.UpdateStatus{Mode: rewrite.ModeMobile})
	got := readChunk(t, h.upFar)
	assert.Contains(t, got, "<show>mobile</show>")
	assert.Contains(t, got, "<league_of_legends><st>mobile</st></league_of_legends>")
}

func TestSessionCloseClosesBothEndpoints(t *testing.T) {
	h := newSessionHarness(t, rewrite.ModeOffline)

	h.clientFar.Close()

	require.NoError(t, h.upFar.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 16)
	_, err := h.upFar.Read(buf)
	assert.Error(t, err, "closing the client side must close the upstream side")
}
