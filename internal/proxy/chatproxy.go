package proxy

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	pactor "github.com/asynkron/protoactor-go/actor"

	internalactor "github.com/league-deceiver/league-deceiver/internal/actor"
	"github.com/league-deceiver/league-deceiver/internal/actor/messages"
	"github.com/league-deceiver/league-deceiver/internal/utils"
)

const (
	// How often a held connection re-checks whether the chat target is known.
	targetPollInterval = 100 * time.Millisecond
	acceptBufferSize   = 32 * 1024
	registerTimeout    = 5 * time.Second
)

// ChatProxy is the loopback TLS listener the rewritten bootstrap config
// points the game client at. Each accepted connection is spliced to the real
// chat server and handed to a session actor.
type ChatProxy struct {
	system        *pactor.ActorSystem
	supervisorPID *pactor.PID
	holder        *TargetHolder

	listener net.Listener
	wg       sync.WaitGroup
	shutdown chan struct{}
}

func NewChatProxy(system *pactor.ActorSystem, supervisorPID *pactor.PID, holder *TargetHolder) *ChatProxy {
	return &ChatProxy{
		system:        system,
		supervisorPID: supervisorPID,
		holder:        holder,
		shutdown:      make(chan struct{}),
	}
}

// Start binds the TLS listener on an ephemeral loopback port and returns the
// bound port.
func (p *ChatProxy) Start(cert tls.Certificate) (int, error) {
	l, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return 0, fmt.Errorf("binding chat proxy listener: %w", err)
	}
	p.listener = l
	port := l.Addr().(*net.TCPAddr).Port
	utils.LogInfof("Chat proxy listening on 127.0.0.1:%d", port)

	p.wg.Add(1)
	go p.acceptConnections()
	return port, nil
}

// Stop closes the listener and waits for in-flight accept handlers. Live
// sessions are owned by the supervisor and stopped through it.
func (p *ChatProxy) Stop() {
	close(p.shutdown)
	if p.listener != nil {
		p.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		utils.LogWarn("Chat proxy shutdown timed out waiting for handlers")
	}
}

func (p *ChatProxy) acceptConnections() {
	defer p.wg.Done()
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-p.shutdown:
				return
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && !ne.Timeout() {
				utils.LogErrorf("Chat proxy accept failed permanently: %v", err)
				return
			}
			utils.LogWarnf("Chat proxy accept error: %v", err)
			continue
		}
		utils.LogDebugf("Accepted chat connection from %s", conn.RemoteAddr())
		p.wg.Add(1)
		go p.handleConnection(conn)
	}
}

func (p *ChatProxy) handleConnection(clientConn net.Conn) {
	defer p.wg.Done()

	pending, target, err := p.awaitTarget(clientConn)
	if err != nil {
		utils.LogWarnf("Dropping chat connection before target known: %v", err)
		clientConn.Close()
		return
	}

	upstream, err := tls.Dial("tcp", net.JoinHostPort(target.Host, strconv.Itoa(target.Port)), &tls.Config{
		// The client was reconfigured to accept our self-signed leaf; we in
		// turn connect upstream without verification, matching it.
		InsecureSkipVerify: true,
	})
	if err != nil {
		utils.LogErrorf("Dialing chat server %s:%d failed: %v", target.Host, target.Port, err)
		clientConn.Close()
		return
	}

	pid := p.system.Root.Spawn(internalactor.SessionProps(p.system, p.supervisorPID, clientConn, upstream))
	res, err := p.system.Root.RequestFuture(p.supervisorPID, &messages.RegisterSession{PID: pid}, registerTimeout).Result()
	settings, ok := res.(*messages.SessionSettings)
	if err != nil || !ok {
		utils.LogErrorf("Registering chat session failed: %v", err)
		p.system.Root.Stop(pid)
		return
	}
	p.system.Root.Send(pid, &messages.StartProxy{Settings: *settings, Pending: pending})
}

// awaitTarget holds the accepted connection until the config interceptor has
// published the real chat endpoint. The client has been seen to write its
// first bytes before the config fetch finishes, so reads continue during the
// wait and are buffered in order.
func (p *ChatProxy) awaitTarget(conn net.Conn) ([]byte, ChatTarget, error) {
	buf := make([]byte, acceptBufferSize)
	var pending []byte
	for {
		if t, ok := p.holder.Get(); ok {
			if err := conn.SetReadDeadline(time.Time{}); err != nil {
				return nil, ChatTarget{}, err
			}
			return pending, t, nil
		}
		select {
		case <-p.shutdown:
			return nil, ChatTarget{}, errors.New("proxy shutting down")
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(targetPollInterval)); err != nil {
			return nil, ChatTarget{}, err
		}
		n, err := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return nil, ChatTarget{}, err
		}
	}
}
