package rewrite

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// The synthetic contact hosting the command channel. The JID is part of the
// wire interface: the client addresses chat messages to it and the rewriter
// intercepts them. The leading tab in the display name sorts the contact
// above real friends in the client UI.
const (
	FakePlayerUUID     = "41c322a1-b328-495b-a004-5ccd3e45eae8"
	FakePlayerJID      = FakePlayerUUID + "@eu1.pvp.net"
	FakePlayerResource = "RC-Deceive"
	fakePlayerName     = "\tDeceive Active!"
)

// RosterMarker identifies the contact-list IQ response in the upstream stream.
const RosterMarker = "<query xmlns='jabber:iq:riotgames:roster'>"

var messageBodyRe = regexp.MustCompile(`(?s)<body>(.*?)</body>`)

func fakeRosterItem() string {
	return "<item jid='" + FakePlayerJID + "' name='" + fakePlayerName + "' subscription='both' puuid='" + FakePlayerUUID + "'>" +
		"<group priority='9999'>Deceive</group>" +
		"<state>online</state>" +
		"<id name='" + fakePlayerName + "' tagline='...'/>" +
		"<lol name='" + fakePlayerName + "'/>" +
		"<platforms><riot name='\tDeceive Active' tagline='...'/></platforms>" +
		"</item>"
}

// InjectRosterItem splices the fake contact into a roster query chunk,
// immediately after the opening query tag. The second return reports whether
// the chunk contained the roster marker at all.
func InjectRosterItem(chunk []byte) ([]byte, bool) {
	c := string(chunk)
	idx := strings.Index(c, RosterMarker)
	if idx < 0 {
		return chunk, false
	}
	cut := idx + len(RosterMarker)
	return []byte(c[:cut] + fakeRosterItem() + c[cut:]), true
}

// FakePresence builds the synthetic contact's initial presence stanza. The
// Valorant payload reuses the party client version captured from the real
// player so the client renders the contact as a valid Valorant session.
func FakePresence(valorantVersion string) []byte {
	if valorantVersion == "" {
		valorantVersion = "unknown"
	}
	payload := fmt.Sprintf(`{"isValid":true,"partyId":"00000000-0000-0000-0000-000000000000","partyClientVersion":%q,"accountLevel":1000}`, valorantVersion)
	valorantPresence := base64.StdEncoding.EncodeToString([]byte(payload))
	ts := time.Now().UnixMilli()

	stanza := fmt.Sprintf(
		"<presence from='%s/%s' id='b-%s'>"+
			"<games>"+
			"<keystone><st>chat</st><s.t>%d</s.t><s.p>keystone</s.p></keystone>"+
			"<league_of_legends><st>chat</st><s.t>%d</s.t><s.p>league_of_legends</s.p><s.c>live</s.c><p>{\"pty\":true}</p></league_of_legends>"+
			"<valorant><st>chat</st><s.t>%d</s.t><s.p>valorant</s.p><s.r>PC</s.r><p>%s</p></valorant>"+
			"<bacon><st>chat</st><s.l>bacon_availability_online</s.l><s.t>%d</s.t><s.p>bacon</s.p></bacon>"+
			"</games>"+
			"<show>chat</show><platform>riot</platform><status/>"+
			"</presence>",
		FakePlayerJID, FakePlayerResource, uuid.NewString(), ts, ts, ts, valorantPresence, ts)
	return []byte(stanza)
}

// FakeMessage builds a chat message from the fake contact carrying text.
func FakeMessage(text string) []byte {
	stamp := time.Now().UTC().Format("2006-01-02 15:04:05.000")
	stanza := fmt.Sprintf(
		"<message from='%s/%s' stamp='%s' id='fake-%s' type='chat'><body>%s</body></message>",
		FakePlayerJID, FakePlayerResource, stamp, stamp, escapeXMLText(text))
	return []byte(stanza)
}

// ExtractMessageBody pulls the text of a chat message chunk, or "" when the
// chunk carries no body.
func ExtractMessageBody(chunk []byte) string {
	m := messageBodyRe.FindSubmatch(chunk)
	if m == nil {
		return ""
	}
	return string(m[1])
}

func escapeXMLText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
