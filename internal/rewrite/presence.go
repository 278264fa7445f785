// Package rewrite implements the streaming XMPP fragment transformer. It
// deliberately avoids XML parsing: the chat stream uses unpredictable
// whitespace and evolves upstream, while every substitution is local to a
// single stanza. Fragments split across chunk boundaries are forwarded
// untouched; hiding presence is best effort, stream integrity is not.
package rewrite

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/league-deceiver/league-deceiver/internal/utils"
)

// Mode is the presence the user wants to show to their friends.
type Mode int

const (
	ModeOffline Mode = iota
	ModeMobile
	ModeOnline
)

// Token returns the wire token used inside <show> and <st> tags.
func (m Mode) Token() string {
	switch m {
	case ModeOffline:
		return "offline"
	case ModeMobile:
		return "mobile"
	default:
		return "chat"
	}
}

// Label returns the human-readable name used in messages to the user.
func (m Mode) Label() string {
	if m == ModeOnline {
		return "online"
	}
	return m.Token()
}

// ParseStatus maps a persisted or CLI status string to a Mode. Both "online"
// and the wire token "chat" select ModeOnline; unknown strings are rejected
// rather than silently defaulting.
func ParseStatus(s string) (Mode, bool) {
	switch strings.ToLower(s) {
	case "offline":
		return ModeOffline, true
	case "mobile":
		return ModeMobile, true
	case "online", "chat":
		return ModeOnline, true
	default:
		return ModeOffline, false
	}
}

var (
	showRe        = regexp.MustCompile(`(?s)<show>.*?</show>`)
	leagueStRe    = regexp.MustCompile(`(?s)(<games>.*?<league_of_legends>.*?)<st>[^<]*</st>`)
	statusRe      = regexp.MustCompile(`(?s)<status>.*?</status>`)
	leagueBlockRe = regexp.MustCompile(`(?s)<league_of_legends>.*?</league_of_legends>`)
	richRe        = regexp.MustCompile(`(?s)<p>.*?</p>`)
	mapRe         = regexp.MustCompile(`(?s)<m>.*?</m>`)
	valorantVerRe = regexp.MustCompile(`(?s)<valorant>.*?<p>([^<]+)</p>`)

	strippedBlockRes = []*regexp.Regexp{
		regexp.MustCompile(`(?s)<valorant>.*?</valorant>`),
		regexp.MustCompile(`(?s)<bacon>.*?</bacon>`),
		regexp.MustCompile(`(?s)<lion>.*?</lion>`),
		regexp.MustCompile(`(?s)<keystone>.*?</keystone>`),
		regexp.MustCompile(`(?s)<riot_client>.*?</riot_client>`),
	}
)

// PresenceRewriter rewrites outbound presence stanzas for one connection. It
// is not safe for concurrent use; each connection owns exactly one.
type PresenceRewriter struct {
	// ConnectToMuc forwards room-addressed presence untouched when true.
	ConnectToMuc bool

	cachedValorantVersion string
}

// CachedValorantVersion returns the party client version extracted from the
// first observed Valorant rich-presence payload, or "" if none was seen yet.
func (r *PresenceRewriter) CachedValorantVersion() string {
	return r.cachedValorantVersion
}

// Rewrite transforms a client presence chunk for the given mode. ModeOnline
// is a pass-through. Any panic inside the substitutions forwards the original
// chunk unchanged.
func (r *PresenceRewriter) Rewrite(chunk []byte, mode Mode) (out []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			utils.LogErrorf("Presence rewrite failed, forwarding original chunk: %v", rec)
			out = chunk
		}
	}()

	if mode == ModeOnline {
		return chunk
	}
	c := string(chunk)
	if r.ConnectToMuc && strings.Contains(c, " to=") {
		// Lobby presence must reach the room or the client drops out of it.
		return chunk
	}

	token := mode.Token()
	c = showRe.ReplaceAllString(c, "<show>"+token+"</show>")
	c = leagueStRe.ReplaceAllString(c, "${1}<st>"+token+"</st>")

	r.captureValorantVersion(c)

	c = statusRe.ReplaceAllString(c, "")
	if mode == ModeMobile {
		// Mobile keeps the League block so the client shows the phone icon,
		// minus the rich-presence payload and map.
		c = leagueBlockRe.ReplaceAllStringFunc(c, func(block string) string {
			block = replaceFirst(richRe, block)
			return replaceFirst(mapRe, block)
		})
	} else {
		c = leagueBlockRe.ReplaceAllString(c, "")
	}
	for _, re := range strippedBlockRes {
		c = re.ReplaceAllString(c, "")
	}
	return []byte(c)
}

func (r *PresenceRewriter) captureValorantVersion(c string) {
	if r.cachedValorantVersion != "" {
		return
	}
	m := valorantVerRe.FindStringSubmatch(c)
	if m == nil {
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(m[1])
	if err != nil {
		return
	}
	v := gjson.GetBytes(decoded, "partyPresenceData.partyClientVersion")
	if v.Type == gjson.String && v.String() != "" {
		r.cachedValorantVersion = v.String()
		utils.LogDebugf("Captured Valorant client version %s", r.cachedValorantVersion)
	}
}

func replaceFirst(re *regexp.Regexp, s string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}
