package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	pactor "github.com/asynkron/protoactor-go/actor"

	"github.com/league-deceiver/league-deceiver/configs"
	internalactor "github.com/league-deceiver/league-deceiver/internal/actor"
	"github.com/league-deceiver/league-deceiver/internal/actor/messages"
	"github.com/league-deceiver/league-deceiver/internal/certs"
	"github.com/league-deceiver/league-deceiver/internal/launcher"
	"github.com/league-deceiver/league-deceiver/internal/proxy"
	"github.com/league-deceiver/league-deceiver/internal/rewrite"
	"github.com/league-deceiver/league-deceiver/internal/update"
	"github.com/league-deceiver/league-deceiver/internal/utils"
)

const version = "v1.0.0"

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: deceiver launch [game] [flags]

Games: lol, valorant, lor, lion, riot-client, prompt (default "prompt")

Flags:
  --status     offline|online|mobile (default "offline")
  --patchline  patchline to launch (default "live")
  --tray       run the interactive console UI (default true)
`)
}

type launchOptions struct {
	status    string
	patchline string
	tray      bool
}

// parseLaunchArgs splits the optional positional game off before flag parsing
// (flag stops at the first non-flag argument, so "launch lol --status online"
// would otherwise silently drop every flag) and rejects anything left over.
func parseLaunchArgs(args []string) (string, launchOptions, error) {
	var game string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		game = args[0]
		args = args[1:]
	}

	var opts launchOptions
	fs := flag.NewFlagSet("launch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.status, "status", "", "initial status: offline, online or mobile")
	fs.StringVar(&opts.patchline, "patchline", "live", "patchline to launch")
	fs.BoolVar(&opts.tray, "tray", true, "run the interactive console UI")
	if err := fs.Parse(args); err != nil {
		return "", opts, err
	}

	rest := fs.Args()
	if game == "" && len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		game = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return "", opts, fmt.Errorf("unexpected arguments: %s", strings.Join(rest, " "))
	}
	return game, opts, nil
}

// resolveGame turns the positional argument into a concrete game choice,
// falling back to the persisted default and finally to prompt. A prompted
// answer is persisted so the next launch skips the question.
func resolveGame(cfg *configs.Config, arg string, prompt func() string) (string, error) {
	game := arg
	if game == "" {
		game = "prompt"
	}
	if game != "prompt" {
		return game, nil
	}
	if cfg.DefaultGame != "" && cfg.DefaultGame != "prompt" {
		return cfg.DefaultGame, nil
	}
	game = prompt()
	if _, err := launcher.ProductFor(game); err != nil {
		return "", err
	}
	cfg.DefaultGame = game
	if err := cfg.Save(); err != nil {
		utils.LogWarnf("Persisting game choice failed: %v", err)
	}
	return game, nil
}

func main() {
	if len(os.Args) < 2 || os.Args[1] != "launch" {
		usage()
		os.Exit(1)
	}

	game, opts, err := parseLaunchArgs(os.Args[2:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
		os.Exit(1)
	}

	dir, err := configs.Dir()
	if err != nil {
		utils.LogErrorf("Resolving config directory failed: %v", err)
		os.Exit(1)
	}
	cfg, err := configs.LoadConfig(filepath.Join(dir, "config.json"))
	if err != nil {
		utils.LogErrorf("Loading configuration failed: %v", err)
		os.Exit(1)
	}
	utils.SetLogLevel(cfg.LogLevel)
	utils.LogInfof("League Deceiver %s starting", version)

	if opts.status == "" {
		opts.status = cfg.DefaultStatus
	}
	mode, ok := rewrite.ParseStatus(opts.status)
	if !ok {
		utils.LogErrorf("Unknown status %q (expected offline, online or mobile)", opts.status)
		os.Exit(1)
	}

	game, err = resolveGame(cfg, game, promptGame)
	if err != nil {
		utils.LogError(err)
		os.Exit(1)
	}
	product, err := launcher.ProductFor(game)
	if err != nil {
		utils.LogError(err)
		os.Exit(1)
	}

	binary, err := launcher.FindRiotClient()
	if err != nil {
		utils.LogErrorf("Riot client not found: %v", err)
		os.Exit(1)
	}

	cert, err := certs.LoadOrGenerate(dir)
	if err != nil {
		utils.LogErrorf("Preparing certificate failed: %v", err)
		os.Exit(1)
	}

	go update.CheckOnce(version, cfg)

	system := pactor.NewActorSystem()
	holder := proxy.NewTargetHolder()
	idle := make(chan struct{}, 1)
	supervisorPID, err := system.Root.SpawnNamed(
		internalactor.SupervisorProps(system, mode, cfg.ConnectToMuc, func() { idle <- struct{}{} }),
		"supervisor")
	if err != nil {
		utils.LogErrorf("Spawning supervisor failed: %v", err)
		os.Exit(1)
	}

	chatProxy := proxy.NewChatProxy(system, supervisorPID, holder)
	chatPort, err := chatProxy.Start(cert)
	if err != nil {
		utils.LogError(err)
		os.Exit(1)
	}
	configProxy := proxy.NewConfigProxy(chatPort, holder)
	configPort, err := configProxy.Start()
	if err != nil {
		utils.LogError(err)
		chatProxy.Stop()
		os.Exit(1)
	}

	launcher.StopRiotProcesses()
	if _, err := launcher.Launch(binary, configPort, product, opts.patchline); err != nil {
		utils.LogError(err)
		chatProxy.Stop()
		configProxy.Stop()
		os.Exit(1)
	}

	if opts.tray {
		go runConsoleUI(system, supervisorPID)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
		utils.LogInfo("Interrupted, shutting down")
	case <-idle:
	}

	if f := system.Root.StopFuture(supervisorPID); f != nil {
		f.Wait()
	}
	chatProxy.Stop()
	configProxy.Stop()
	utils.LogInfo("Goodbye")
	os.Exit(0)
}

func promptGame() string {
	games := launcher.Games()
	fmt.Printf("Which game should be launched? [%s]: ", strings.Join(games, ", "))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "riot-client"
	}
	choice := strings.TrimSpace(line)
	if choice == "" {
		return "riot-client"
	}
	return choice
}

// runConsoleUI is the CLI stand-in for the tray icon: it reads commands from
// stdin and feeds them to the supervisor.
func runConsoleUI(system *pactor.ActorSystem, supervisorPID *pactor.PID) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Commands: offline, mobile, online, enable, disable, status, quit")
	for scanner.Scan() {
		switch cmd := strings.ToLower(strings.TrimSpace(scanner.Text())); cmd {
		case "":
		case "offline":
			system.Root.Send(supervisorPID, &messages.SetMode{Mode: rewrite.ModeOffline})
		case "mobile":
			system.Root.Send(supervisorPID, &messages.SetMode{Mode: rewrite.ModeMobile})
		case "online":
			system.Root.Send(supervisorPID, &messages.SetMode{Mode: rewrite.ModeOnline})
		case "enable":
			system.Root.Send(supervisorPID, &messages.SetEnabled{Enabled: true})
		case "disable":
			system.Root.Send(supervisorPID, &messages.SetEnabled{Enabled: false})
		case "status":
			res, err := system.Root.RequestFuture(supervisorPID, &messages.GetState{}, time.Second).Result()
			if state, ok := res.(*messages.StateInfo); err == nil && ok {
				fmt.Printf("Appearing %s (enabled: %t)\n", state.Label, state.Enabled)
			}
		case "quit", "exit":
			p, _ := os.FindProcess(os.Getpid())
			p.Signal(os.Interrupt)
			return
		default:
			fmt.Printf("Unknown command %q\n", cmd)
		}
	}
}
