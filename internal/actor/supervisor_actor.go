package actor

import (
	"fmt"
	"strings"
	"time"

	"github.com/asynkron/protoactor-go/actor"

	"github.com/league-deceiver/league-deceiver/internal/actor/messages"
	"github.com/league-deceiver/league-deceiver/internal/rewrite"
	"github.com/league-deceiver/league-deceiver/internal/utils"
)

const (
	defaultIdleShutdownDelay = 60 * time.Second
	defaultIntroDelay        = 10 * time.Second
	defaultIntroGap          = 250 * time.Millisecond
)

// SupervisorActor owns the global session state: the chosen presence mode,
// the enabled flag, the live session set, the idle-shutdown timer and the
// once-per-process intro flag. Every mutation arrives as a message, so
// broadcasts always observe a consistent snapshot.
type SupervisorActor struct {
	system       *actor.ActorSystem
	mode         rewrite.Mode
	enabled      bool
	connectToMuc bool
	sessions     map[string]*actor.PID
	idleTimer    *time.Timer
	introSent    bool
	onIdle       func()

	idleDelay  time.Duration
	introDelay time.Duration
	introGap   time.Duration
}

// SupervisorProps builds the supervisor props. onIdle runs when the idle
// shutdown timer expires with no live sessions left.
func SupervisorProps(system *actor.ActorSystem, initialMode rewrite.Mode, connectToMuc bool, onIdle func()) *actor.Props {
	return actor.PropsFromProducer(func() actor.Actor {
		return &SupervisorActor{
			system:       system,
			mode:         initialMode,
			enabled:      true,
			connectToMuc: connectToMuc,
			sessions:     make(map[string]*actor.PID),
			onIdle:       onIdle,
			idleDelay:    defaultIdleShutdownDelay,
			introDelay:   defaultIntroDelay,
			introGap:     defaultIntroGap,
		}
	})
}

func (s *SupervisorActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		utils.LogInfof("Session supervisor started, appearing %s", s.effectiveMode().Label())

	case *messages.RegisterSession:
		s.sessions[msg.PID.String()] = msg.PID
		s.cancelIdleTimer()
		utils.LogInfof("Chat connection registered (%d live)", len(s.sessions))
		if !s.introSent {
			s.introSent = true
			s.scheduleIntro(ctx.Self())
		}
		ctx.Respond(&messages.SessionSettings{Mode: s.effectiveMode(), ConnectToMuc: s.connectToMuc})

	case *messages.SessionClosed:
		delete(s.sessions, msg.PID.String())
		utils.LogInfof("Chat connection closed (%d live)", len(s.sessions))
		if len(s.sessions) == 0 {
			s.armIdleTimer(ctx.Self())
		}

	case *messages.IdleTimeout:
		if len(s.sessions) == 0 {
			utils.LogInfo("No chat connections for a while, shutting down")
			if s.onIdle != nil {
				s.onIdle()
			}
		}

	case *messages.SetMode:
		s.setMode(ctx, msg.Mode)

	case *messages.ToggleEnabled:
		s.toggleEnabled(ctx)

	case *messages.SetEnabled:
		if s.enabled != msg.Enabled {
			s.toggleEnabled(ctx)
		}

	case *messages.ChatCommand:
		s.handleChatCommand(ctx, msg.Content)

	case *messages.BroadcastFake:
		s.broadcastFake(ctx, msg.Text)

	case *messages.GetState:
		ctx.Respond(&messages.StateInfo{Label: s.effectiveMode().Label(), Enabled: s.enabled})

	case *actor.Stopping:
		s.cancelIdleTimer()
		for _, pid := range s.sessions {
			ctx.Stop(pid)
		}
	}
}

// effectiveMode is what the wire sees: a disabled Deceive behaves as Online
// while remembering the user-chosen mode for later.
func (s *SupervisorActor) effectiveMode() rewrite.Mode {
	if !s.enabled {
		return rewrite.ModeOnline
	}
	return s.mode
}

func (s *SupervisorActor) setMode(ctx actor.Context, m rewrite.Mode) {
	s.mode = m
	s.enabled = true
	utils.LogInfof("Status changed: now appearing %s", m.Label())
	s.broadcastStatus(ctx, m)
	s.broadcastFake(ctx, fmt.Sprintf("You are now appearing %s.", m.Label()))
}

func (s *SupervisorActor) toggleEnabled(ctx actor.Context) {
	s.enabled = !s.enabled
	s.broadcastStatus(ctx, s.effectiveMode())
	if s.enabled {
		utils.LogInfo("Deceive enabled")
		s.broadcastFake(ctx, "Deceive is now enabled.")
	} else {
		utils.LogInfo("Deceive disabled")
		s.broadcastFake(ctx, "Deceive is now disabled.")
	}
}

func (s *SupervisorActor) broadcastStatus(ctx actor.Context, m rewrite.Mode) {
	for _, pid := range s.sessions {
		ctx.Send(pid, &messages.UpdateStatus{Mode: m})
	}
}

func (s *SupervisorActor) broadcastFake(ctx actor.Context, text string) {
	for _, pid := range s.sessions {
		ctx.Send(pid, &messages.SendFromFake{Text: text})
	}
}

type chatCommand int

const (
	cmdNone chatCommand = iota
	cmdOffline
	cmdMobile
	cmdOnline
	cmdEnable
	cmdDisable
	cmdStatus
	cmdHelp
)

// parseChatCommand matches case-insensitive substrings in priority order, so
// "Offline please" works as well as a bare "offline".
func parseChatCommand(content string) chatCommand {
	lc := strings.ToLower(content)
	switch {
	case strings.Contains(lc, "offline"):
		return cmdOffline
	case strings.Contains(lc, "mobile"):
		return cmdMobile
	case strings.Contains(lc, "online"):
		return cmdOnline
	case strings.Contains(lc, "enable"):
		return cmdEnable
	case strings.Contains(lc, "disable"):
		return cmdDisable
	case strings.Contains(lc, "status"):
		return cmdStatus
	case strings.Contains(lc, "help"):
		return cmdHelp
	default:
		return cmdNone
	}
}

func (s *SupervisorActor) handleChatCommand(ctx actor.Context, content string) {
	utils.LogDebugf("Chat command: %q", content)
	switch parseChatCommand(content) {
	case cmdOffline:
		s.setMode(ctx, rewrite.ModeOffline)
	case cmdMobile:
		s.setMode(ctx, rewrite.ModeMobile)
	case cmdOnline:
		s.setMode(ctx, rewrite.ModeOnline)
	case cmdEnable:
		if s.enabled {
			s.broadcastFake(ctx, "Deceive is already enabled.")
		} else {
			s.toggleEnabled(ctx)
		}
	case cmdDisable:
		if !s.enabled {
			s.broadcastFake(ctx, "Deceive is already disabled.")
		} else {
			s.toggleEnabled(ctx)
		}
	case cmdStatus:
		s.broadcastFake(ctx, fmt.Sprintf("You are appearing %s.", s.effectiveMode().Label()))
	case cmdHelp:
		s.broadcastFake(ctx, "Commands: online, offline, mobile, enable, disable, status, help")
	}
}

func (s *SupervisorActor) scheduleIntro(self *actor.PID) {
	label := s.effectiveMode().Label()
	texts := []string{
		fmt.Sprintf("Welcome! Deceive is running and you are currently appearing %s. "+
			"Despite what the game client may indicate, you are appearing offline to your friends "+
			"unless you manually disable Deceive.", label),
		"If you want to invite others while being offline, you may need to disable Deceive for " +
			"them to accept. You can enable Deceive again as soon as they are in your lobby.",
		"To enable or disable Deceive, or to configure other settings, find Deceive in your tray icons.",
		"Have fun!",
	}
	delay, gap := s.introDelay, s.introGap
	go func() {
		time.Sleep(delay)
		for _, text := range texts {
			s.system.Root.Send(self, &messages.BroadcastFake{Text: text})
			time.Sleep(gap)
		}
	}()
}

func (s *SupervisorActor) armIdleTimer(self *actor.PID) {
	s.cancelIdleTimer()
	s.idleTimer = time.AfterFunc(s.idleDelay, func() {
		s.system.Root.Send(self, &messages.IdleTimeout{})
	})
}

func (s *SupervisorActor) cancelIdleTimer() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}
