package rewrite

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestInjectRosterItem(t *testing.T) {
	chunk := "<iq><query xmlns='jabber:iq:riotgames:roster'><item jid='friend@pvp.net'/></query></iq>"

	got, ok := InjectRosterItem([]byte(chunk))
	require.True(t, ok)

	s := string(got)
	markerEnd := strings.Index(s, RosterMarker) + len(RosterMarker)
	require.Positive(t, markerEnd)
	assert.True(t, strings.HasPrefix(s[markerEnd:], "<item jid='"+FakePlayerJID+"'"),
		"fake item must sit immediately after the query open tag")
	assert.True(t, strings.HasSuffix(s, "<item jid='friend@pvp.net'/></query></iq>"),
		"existing roster entries must survive")
	assert.Equal(t, 1, strings.Count(s, FakePlayerJID))
}

func TestInjectRosterItemNoMarker(t *testing.T) {
	chunk := []byte("<iq><query xmlns='jabber:iq:other'/></iq>")
	got, ok := InjectRosterItem(chunk)
	assert.False(t, ok)
	assert.Equal(t, chunk, got)
}

func TestFakePresence(t *testing.T) {
	got := string(FakePresence("release-07.01-shipping"))

	assert.Contains(t, got, "from='"+FakePlayerJID+"/"+FakePlayerResource+"'")
	assert.Contains(t, got, "id='b-")
	assert.Contains(t, got, "<show>chat</show>")
	assert.Contains(t, got, "<platform>riot</platform>")
	assert.Contains(t, got, "<s.l>bacon_availability_online</s.l>")
	for _, tag := range []string{"<keystone>", "<league_of_legends>", "<valorant>", "<bacon>"} {
		assert.Contains(t, got, tag)
	}

	// The Valorant payload must round-trip through base64 with the captured version.
	start := strings.Index(got, "<s.r>PC</s.r><p>") + len("<s.r>PC</s.r><p>")
	end := strings.Index(got[start:], "</p>")
	require.Positive(t, end)
	payload, err := base64.StdEncoding.DecodeString(got[start : start+end])
	require.NoError(t, err)
	assert.Equal(t, "release-07.01-shipping", gjson.GetBytes(payload, "partyClientVersion").String())
	assert.True(t, gjson.GetBytes(payload, "isValid").Bool())
	assert.Equal(t, int64(1000), gjson.GetBytes(payload, "accountLevel").Int())
}

func TestFakePresenceUnknownVersion(t *testing.T) {
	got := string(FakePresence(""))
	start := strings.Index(got, "<s.r>PC</s.r><p>") + len("<s.r>PC</s.r><p>")
	end := strings.Index(got[start:], "</p>")
	require.Positive(t, end)
	payload, err := base64.StdEncoding.DecodeString(got[start : start+end])
	require.NoError(t, err)
	assert.Equal(t, "unknown", gjson.GetBytes(payload, "partyClientVersion").String())
}

func TestFakeMessage(t *testing.T) {
	got := string(FakeMessage("You are now appearing offline."))
	assert.Contains(t, got, "from='"+FakePlayerJID+"/"+FakePlayerResource+"'")
	assert.Contains(t, got, "type='chat'")
	assert.Contains(t, got, "<body>You are now appearing offline.</body>")
	assert.Contains(t, got, "id='fake-")
}

func TestFakeMessageEscapesText(t *testing.T) {
	got := string(FakeMessage("a < b & c"))
	assert.Contains(t, got, "<body>a &lt; b &amp; c</body>")
}

func TestExtractMessageBody(t *testing.T) {
	chunk := []byte("<message to='" + FakePlayerJID + "' type='chat'><body>Offline please</body></message>")
	assert.Equal(t, "Offline please", ExtractMessageBody(chunk))
	assert.Empty(t, ExtractMessageBody([]byte("<message type='chat'/>")))
}
