// Package messages defines the message types exchanged between the chat
// interceptor, the per-connection session actors and the session supervisor.
package messages

import (
	"github.com/asynkron/protoactor-go/actor"

	"github.com/league-deceiver/league-deceiver/internal/rewrite"
)

// RegisterSession is sent (as a request) by the chat interceptor once a
// session actor has been spawned; the supervisor responds with SessionSettings.
type RegisterSession struct {
	PID *actor.PID
}

// SessionSettings is the supervisor's settings snapshot handed to a session
// right after registration.
type SessionSettings struct {
	Mode         rewrite.Mode
	ConnectToMuc bool
}

// SessionClosed notifies the supervisor that a session's sockets are gone.
type SessionClosed struct {
	PID *actor.PID
}

// StartProxy carries the registration settings plus any client bytes buffered
// while the chat target was still unknown. The session starts its socket
// pumps when it receives this.
type StartProxy struct {
	Settings SessionSettings
	Pending  []byte
}

// ClientChunk is a chunk read from the game client socket.
type ClientChunk struct {
	Data []byte
}

// UpstreamChunk is a chunk read from the real chat server socket.
type UpstreamChunk struct {
	Data []byte
}

// ConnError reports a read or write failure on either socket.
type ConnError struct {
	Err error
}

// UpdateStatus tells a session to adopt a new effective mode and replay its
// last observed presence fragment upstream under it.
type UpdateStatus struct {
	Mode rewrite.Mode
}

// SendFromFake tells a session to deliver a chat message from the fake
// contact to its client.
type SendFromFake struct {
	Text string
}

// SetMode asks the supervisor to switch the user-visible presence mode.
type SetMode struct {
	Mode rewrite.Mode
}

// ToggleEnabled asks the supervisor to flip the enabled flag.
type ToggleEnabled struct{}

// SetEnabled asks the supervisor to flip the enabled flag only when it does
// not already have the wanted value.
type SetEnabled struct {
	Enabled bool
}

// ChatCommand carries the body of a chat message the user sent to the fake
// contact.
type ChatCommand struct {
	Content string
}

// BroadcastFake asks the supervisor to send a fake-contact message to every
// live session.
type BroadcastFake struct {
	Text string
}

// IdleTimeout fires when the idle-shutdown timer expires.
type IdleTimeout struct{}

// GetState is a request for the supervisor's current state; answered with
// StateInfo.
type GetState struct{}

// StateInfo describes the supervisor state for UI display.
type StateInfo struct {
	Label   string
	Enabled bool
}
