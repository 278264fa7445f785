package actor

import (
	"net"
	"strings"

	"github.com/asynkron/protoactor-go/actor"

	"github.com/league-deceiver/league-deceiver/internal/actor/messages"
	"github.com/league-deceiver/league-deceiver/internal/rewrite"
	"github.com/league-deceiver/league-deceiver/internal/utils"
)

const readBufferSize = 32 * 1024

// SessionActor owns one proxied connection: the TLS socket accepted from the
// game client and the TLS socket dialed to the real chat server. Both
// directions pass through its mailbox, so writes to each socket are totally
// ordered and the roster splice always reaches the client before the fake
// contact's presence does.
type SessionActor struct {
	system        *actor.ActorSystem
	supervisorPID *actor.PID
	client        net.Conn
	upstream      net.Conn

	mode         rewrite.Mode
	rewriter     rewrite.PresenceRewriter
	lastPresence []byte

	rosterPatched bool
	fakeAnnounced bool
	alive         bool
}

// SessionProps builds the props for a session bound to both sockets.
func SessionProps(system *actor.ActorSystem, supervisorPID *actor.PID, client, upstream net.Conn) *actor.Props {
	return actor.PropsFromProducer(func() actor.Actor {
		return &SessionActor{
			system:        system,
			supervisorPID: supervisorPID,
			client:        client,
			upstream:      upstream,
			alive:         true,
		}
	})
}

func (a *SessionActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		utils.LogDebugf("Session %s started for %s", ctx.Self().Id, a.client.RemoteAddr())

	case *messages.StartProxy:
		a.mode = msg.Settings.Mode
		a.rewriter.ConnectToMuc = msg.Settings.ConnectToMuc
		a.startPumps(ctx.Self())
		if len(msg.Pending) > 0 {
			utils.LogDebugf("Session %s releasing %d buffered client bytes", ctx.Self().Id, len(msg.Pending))
			a.handleIncoming(ctx, msg.Pending)
		}

	case *messages.ClientChunk:
		a.handleIncoming(ctx, msg.Data)

	case *messages.UpstreamChunk:
		a.handleOutgoing(ctx, msg.Data)

	case *messages.UpdateStatus:
		a.mode = msg.Mode
		if a.lastPresence != nil {
			a.writeUpstream(ctx, a.rewriter.Rewrite(a.lastPresence, a.mode))
		}

	case *messages.SendFromFake:
		if a.rosterPatched && a.alive {
			a.writeClient(ctx, rewrite.FakeMessage(msg.Text))
		}

	case *messages.ConnError:
		utils.LogDebugf("Session %s connection error: %v", ctx.Self().Id, msg.Err)
		a.closeConns()
		ctx.Stop(ctx.Self())

	case *actor.Stopping:
		a.closeConns()
		ctx.Send(a.supervisorPID, &messages.SessionClosed{PID: ctx.Self()})
	}
}

// handleIncoming dispatches a client chunk: presence stanzas are rewritten
// for the current mode, messages to the fake contact become commands and are
// never forwarded, everything else passes through verbatim.
func (a *SessionActor) handleIncoming(ctx actor.Context, data []byte) {
	c := string(data)
	switch {
	case strings.Contains(c, "<presence"):
		a.lastPresence = append([]byte(nil), data...)
		a.writeUpstream(ctx, a.rewriter.Rewrite(data, a.mode))

	case strings.Contains(c, rewrite.FakePlayerJID):
		if body := rewrite.ExtractMessageBody(data); body != "" {
			ctx.Send(a.supervisorPID, &messages.ChatCommand{Content: body})
		}

	default:
		a.writeUpstream(ctx, data)
	}

	if a.rosterPatched && !a.fakeAnnounced {
		a.writeClient(ctx, rewrite.FakePresence(a.rewriter.CachedValorantVersion()))
		a.fakeAnnounced = true
	}
}

// handleOutgoing dispatches an upstream chunk: the first roster query gets
// the fake contact spliced in, everything else passes through verbatim.
func (a *SessionActor) handleOutgoing(ctx actor.Context, data []byte) {
	if !a.rosterPatched {
		if out, ok := rewrite.InjectRosterItem(data); ok {
			a.rosterPatched = true
			utils.LogDebugf("Session %s roster patched", ctx.Self().Id)
			a.writeClient(ctx, out)
			return
		}
	}
	a.writeClient(ctx, data)
}

func (a *SessionActor) startPumps(self *actor.PID) {
	go a.pump(a.client, self, func(b []byte) interface{} { return &messages.ClientChunk{Data: b} })
	go a.pump(a.upstream, self, func(b []byte) interface{} { return &messages.UpstreamChunk{Data: b} })
}

func (a *SessionActor) pump(conn net.Conn, self *actor.PID, wrap func([]byte) interface{}) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			a.system.Root.Send(self, wrap(data))
		}
		if err != nil {
			a.system.Root.Send(self, &messages.ConnError{Err: err})
			return
		}
	}
}

func (a *SessionActor) writeClient(ctx actor.Context, data []byte) {
	if !a.alive {
		return
	}
	if _, err := a.client.Write(data); err != nil {
		utils.LogDebugf("Session %s client write failed: %v", ctx.Self().Id, err)
		a.closeConns()
		ctx.Stop(ctx.Self())
	}
}

func (a *SessionActor) writeUpstream(ctx actor.Context, data []byte) {
	if !a.alive {
		return
	}
	if _, err := a.upstream.Write(data); err != nil {
		utils.LogDebugf("Session %s upstream write failed: %v", ctx.Self().Id, err)
		a.closeConns()
		ctx.Stop(ctx.Self())
	}
}

// closeConns closes both endpoints exactly once.
func (a *SessionActor) closeConns() {
	if !a.alive {
		return
	}
	a.alive = false
	a.client.Close()
	a.upstream.Close()
}
