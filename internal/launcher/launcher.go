// Package launcher locates, stops and starts the Riot client so its bootstrap
// config fetch lands on the local interceptor.
package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/tidwall/gjson"

	"github.com/league-deceiver/league-deceiver/internal/utils"
)

// Product codes understood by the Riot client. Launching the bare client
// (riot-client) omits the product flags entirely.
var products = map[string]string{
	"lol":         "league_of_legends",
	"lor":         "bacon",
	"valorant":    "valorant",
	"lion":        "lion",
	"riot-client": "",
}

// Games returns the accepted game arguments.
func Games() []string {
	return []string{"lol", "valorant", "lor", "lion", "riot-client"}
}

// ProductFor maps a CLI game name to the client's --launch-product code.
func ProductFor(game string) (string, error) {
	code, ok := products[game]
	if !ok {
		return "", fmt.Errorf("unknown game %q (expected one of lol, valorant, lor, lion, riot-client)", game)
	}
	return code, nil
}

const windowsInstallsPath = `C:\ProgramData\Riot Games\RiotClientInstalls.json`

// FindRiotClient locates the Riot client services binary on disk. A missing
// binary is a startup-fatal condition for the caller.
func FindRiotClient() (string, error) {
	switch runtime.GOOS {
	case "windows":
		data, err := os.ReadFile(windowsInstallsPath)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", windowsInstallsPath, err)
		}
		for _, key := range []string{"rc_default", "rc_live", "rc_beta"} {
			candidate := gjson.GetBytes(data, key).String()
			if candidate == "" {
				continue
			}
			if _, statErr := os.Stat(candidate); statErr == nil {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("no usable install listed in %s", windowsInstallsPath)
	case "darwin":
		path := "/Applications/Riot Client.app/Contents/MacOS/RiotClientServices"
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("riot client not found at %s: %w", path, err)
		}
		return path, nil
	default:
		return "", fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
}

var clientProcessNames = []string{
	"RiotClientServices",
	"RiotClientUx",
	"LeagueClient",
	"LeagueClientUx",
	"VALORANT",
	"LoR",
}

// StopRiotProcesses kills any running client so the relaunch picks up the
// interceptor flags. Failures are expected (nothing running) and only logged
// at debug level.
func StopRiotProcesses() {
	for _, name := range clientProcessNames {
		var cmd *exec.Cmd
		if runtime.GOOS == "windows" {
			cmd = exec.Command("taskkill", "/F", "/IM", name+".exe")
		} else {
			cmd = exec.Command("pkill", "-x", name)
		}
		if err := cmd.Run(); err != nil {
			utils.LogDebugf("Stopping %s: %v", name, err)
		} else {
			utils.LogInfof("Stopped running process %s", name)
		}
	}
	// Give the client a moment to release its lockfiles.
	time.Sleep(2 * time.Second)
}

// Launch starts the client binary pointed at the local config interceptor.
func Launch(binary string, configPort int, product, patchline string) (*exec.Cmd, error) {
	args := []string{fmt.Sprintf("--client-config-url=http://127.0.0.1:%d", configPort)}
	if product != "" {
		args = append(args, "--launch-product="+product, "--launch-patchline="+patchline)
	}
	cmd := exec.Command(binary, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launching %s: %w", binary, err)
	}
	// Reap the child when it exits so it never lingers as a zombie.
	go cmd.Wait()
	utils.LogInfof("Launched %s %v", binary, args)
	return cmd, nil
}
