// Package update performs a best-effort check for a newer release. Every
// failure is silent; the check must never delay or break a launch.
package update

import (
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/league-deceiver/league-deceiver/configs"
	"github.com/league-deceiver/league-deceiver/internal/utils"
)

const latestReleaseURL = "https://api.github.com/repos/league-deceiver/league-deceiver/releases/latest"

var client = &http.Client{Timeout: 2 * time.Second}

// CheckOnce fetches the latest release tag and logs a prompt when it differs
// from the running version. The tag is persisted so each release prompts at
// most once.
func CheckOnce(current string, cfg *configs.Config) {
	req, err := http.NewRequest(http.MethodGet, latestReleaseURL, nil)
	if err != nil {
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		utils.LogDebugf("Update check failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		utils.LogDebugf("Update check returned status %d", resp.StatusCode)
		return
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}

	tag := gjson.GetBytes(body, "tag_name").String()
	if tag == "" || tag == current || tag == cfg.LastPromptedVersion {
		return
	}
	utils.LogInfof("A newer release (%s) is available, you are running %s", tag, current)
	cfg.LastPromptedVersion = tag
	if err := cfg.Save(); err != nil {
		utils.LogWarnf("Persisting update prompt marker failed: %v", err)
	}
}
